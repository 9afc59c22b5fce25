package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/nimbusdrive/nimbus-cli/internal/config"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
	"github.com/nimbusdrive/nimbus-cli/internal/session"
)

// Client is the typed gateway over the Nimbus service. Every call is
// authenticated through the session manager, which resolves 401s with a
// single refresh-and-replay before errors reach this layer.
type Client struct {
	sessions *session.Manager
	logger   *logging.Logger
	baseURL  string
}

// NewClient creates a gateway client.
func NewClient(cfg *config.Config, sessions *session.Manager, logger *logging.Logger) *Client {
	return &Client{
		sessions: sessions,
		logger:   logger,
		baseURL:  strings.TrimSuffix(cfg.APIBaseURL, "/"),
	}
}

// doRequest performs an authenticated request with a JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.sessions.Do(req)
}

// translateStatus maps a non-2xx response into the closed error set.
// The response body is consumed.
func translateStatus(resp *nethttp.Response) error {
	detail, _ := io.ReadAll(resp.Body)
	detailStr := strings.TrimSpace(string(detail))

	switch resp.StatusCode {
	case nethttp.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detailStr)
	case nethttp.StatusConflict:
		return fmt.Errorf("%w: %s", ErrDuplicateName, detailStr)
	default:
		return &ServerError{Status: resp.StatusCode, Detail: detailStr}
	}
}

// ListFiles retrieves the full file list, following pagination. An empty
// kind returns every entry, including soft-deleted ones; the catalog
// filters views client-side.
func (c *Client) ListFiles(ctx context.Context, kind models.FileKind) ([]models.FileEntry, error) {
	var all []models.FileEntry
	nextURL := "/media?limit=200"
	if kind != "" {
		nextURL += "&kind=" + url.QueryEscape(string(kind))
	}

	for nextURL != "" {
		resp, err := c.doRequest(ctx, "GET", nextURL, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != nethttp.StatusOK {
			defer resp.Body.Close()
			return nil, translateStatus(resp)
		}

		var page models.FileListResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode file list: %w", err)
		}

		all = append(all, page.Results...)

		if page.Next != nil && *page.Next != "" {
			nextURL = strings.TrimPrefix(*page.Next, c.baseURL)
		} else {
			nextURL = ""
		}
	}

	return all, nil
}

// GetFile retrieves one entry by id.
func (c *Client) GetFile(ctx context.Context, id string) (*models.FileEntry, error) {
	resp, err := c.doRequest(ctx, "GET", "/media/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, translateStatus(resp)
	}

	var entry models.FileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}
	return &entry, nil
}

// SoftDeleteFile moves an entry to the recycle bin.
func (c *Client) SoftDeleteFile(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, "DELETE", "/media/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusNoContent {
		return translateStatus(resp)
	}
	return nil
}

// PurgeFile permanently removes an entry. Irreversible.
func (c *Client) PurgeFile(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, "DELETE", "/media/"+url.PathEscape(id)+"/purge", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusNoContent {
		return translateStatus(resp)
	}
	return nil
}

// RestoreFile brings a soft-deleted entry back.
func (c *Client) RestoreFile(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, "POST", "/media/"+url.PathEscape(id)+"/restore", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusNoContent {
		return translateStatus(resp)
	}
	return nil
}

// FileUpdate is a partial update applied by UpdateFile. Nil fields are
// left untouched.
type FileUpdate struct {
	Name       *string `json:"name,omitempty"`
	ParentID   *string `json:"parentId,omitempty"`
	FolderPath *string `json:"folderPath,omitempty"`
	IsFavorite *bool   `json:"isFavorite,omitempty"`
	OpenedAt   *string `json:"openedAt,omitempty"`
}

// UpdateFile patches entry fields: rename, move, favorite toggle.
func (c *Client) UpdateFile(ctx context.Context, id string, update FileUpdate) (*models.FileEntry, error) {
	resp, err := c.doRequest(ctx, "PATCH", "/media/"+url.PathEscape(id), update)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, translateStatus(resp)
	}

	var entry models.FileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode updated file: %w", err)
	}
	return &entry, nil
}

// CreateFolder creates a folder entry under the given logical path.
func (c *Client) CreateFolder(ctx context.Context, name, parentPath string) (*models.FileEntry, error) {
	body := map[string]string{
		"name":       name,
		"parentPath": parentPath,
	}
	resp, err := c.doRequest(ctx, "POST", "/folders", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusCreated && resp.StatusCode != nethttp.StatusOK {
		return nil, translateStatus(resp)
	}

	var entry models.FileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode folder: %w", err)
	}
	return &entry, nil
}

// SignedURL is a time-limited download reference.
type SignedURL struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// GetSignedURL retrieves a time-limited download URL for an entry.
func (c *Client) GetSignedURL(ctx context.Context, id string) (*SignedURL, error) {
	resp, err := c.doRequest(ctx, "GET", "/media/"+url.PathEscape(id)+"/url", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, translateStatus(resp)
	}

	var signed SignedURL
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return nil, fmt.Errorf("failed to decode signed url: %w", err)
	}
	return &signed, nil
}

// GetThumbnailURL retrieves the thumbnail reference for an entry.
func (c *Client) GetThumbnailURL(ctx context.Context, id string) (*SignedURL, error) {
	resp, err := c.doRequest(ctx, "GET", "/media/"+url.PathEscape(id)+"/thumbnail", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, translateStatus(resp)
	}

	var signed SignedURL
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail url: %w", err)
	}
	return &signed, nil
}

// SearchText runs a text search over the library.
func (c *Client) SearchText(ctx context.Context, query string, topK int) ([]models.FileEntry, error) {
	if topK <= 0 {
		topK = 10
	}
	body := map[string]interface{}{
		"query": query,
		"topK":  topK,
	}
	resp, err := c.doRequest(ctx, "POST", "/search/text", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, translateStatus(resp)
	}

	var result struct {
		Results []models.FileEntry `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return result.Results, nil
}

// Health probes the backend health endpoint. A nil error means healthy.
// Health is unauthenticated: a down identity provider must not mask a
// live service.
func (c *Client) Health(ctx context.Context, httpClient *nethttp.Client) error {
	req, err := nethttp.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &session.NetworkError{Op: "GET /health", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return &ServerError{Status: resp.StatusCode, Detail: "health check failed"}
	}
	return nil
}

// UploadFile posts one file as multipart form data and returns the
// registered entry. The body is buffered so the session layer can replay
// the request after a token refresh.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader, folderPath, batchName string) (*models.FileEntry, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if folderPath != "" {
		if err := writer.WriteField("folderPath", folderPath); err != nil {
			return nil, err
		}
	}
	if batchName != "" {
		if err := writer.WriteField("batchName", batchName); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := nethttp.NewRequestWithContext(ctx, "POST", c.baseURL+"/upload", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.sessions.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusCreated {
		return nil, translateStatus(resp)
	}

	var entry models.FileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &entry, nil
}
