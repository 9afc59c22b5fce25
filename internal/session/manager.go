// Package session owns the authentication token pair: persistence across
// restarts, transparent refresh on authorization failure, and the bearer
// transport used by the gateway.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/config"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
	"github.com/nimbusdrive/nimbus-cli/internal/store"
)

// Manager owns the session and user identity. The invariant: user and
// session are both set or both nil, always changed together under mu.
type Manager struct {
	cfg     *config.Config
	store   *store.Store
	http    *nethttp.Client
	bus     *events.EventBus
	logger  *logging.Logger
	baseURL string

	mu      sync.RWMutex
	session *models.Session
	user    *models.User

	// refreshMu serializes token refreshes; refreshGen lets callers that
	// queued behind an in-flight refresh detect that the work is already
	// done and share its outcome instead of refreshing again.
	refreshMu  sync.Mutex
	refreshGen uint64
}

// NewManager creates a session manager. The HTTP client should be the
// shared retry-wrapped client; the manager never routes its own auth
// calls through itself.
func NewManager(cfg *config.Config, st *store.Store, httpClient *nethttp.Client, bus *events.EventBus, logger *logging.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   st,
		http:    httpClient,
		bus:     bus,
		logger:  logger,
		baseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
	}
}

// Initialize loads a persisted session, if any, and makes it active
// without server validation. The first authorized request validates it
// lazily; a stale token is healed by the normal refresh path.
func (m *Manager) Initialize(ctx context.Context) error {
	access, err := m.store.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := m.store.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		return err
	}
	if access == "" || refresh == "" {
		return nil
	}

	sess := &models.Session{AccessToken: access, RefreshToken: refresh}
	if raw, err := m.store.Get(ctx, store.KeyTokenExpiresAt); err == nil && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			sess.ExpiresAt = time.Unix(unix, 0)
		}
	}

	email, _ := m.store.Get(ctx, store.KeyUserEmail)
	id, _ := m.store.Get(ctx, store.KeyUserID)
	name, _ := m.store.Get(ctx, store.KeyUserName)
	if email == "" {
		// A token pair without an identity is a partial write from an
		// older version; treat it as signed out.
		m.logger.Warn().Msg("Persisted tokens without identity, discarding")
		return m.store.Clear(ctx)
	}

	user := models.FallbackUser(email)
	if id != "" {
		user.ID = id
	}
	if name != "" {
		user.DisplayName = name
	}

	m.mu.Lock()
	m.session = sess
	m.user = &user
	m.mu.Unlock()

	m.logger.Info().Str("email", email).Msg("Session restored")
	return nil
}

// SignedIn reports whether a session is active.
func (m *Manager) SignedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// User returns the authenticated identity, or nil.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// AccessToken returns the current access token, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.AccessToken
}

// RequestMagicLink asks the backend to mail a passwordless sign-in link
// scoped to this email and the configured callback address.
func (m *Manager) RequestMagicLink(ctx context.Context, email string) error {
	body := map[string]string{
		"email":       email,
		"callbackUrl": m.cfg.CallbackURL,
	}
	resp, err := m.postJSON(ctx, "/auth/magic-link", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusAccepted {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("magic link request rejected: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// CompleteSignIn is called once the client holds a token pair (from the
// magic-link callback). It fetches the identity profile and persists the
// session. If the profile fetch fails, nothing is persisted.
func (m *Manager) CompleteSignIn(ctx context.Context, accessToken, refreshToken string) error {
	user, err := m.fetchProfile(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityFetch, err)
	}

	sess := &models.Session{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := m.persist(ctx, sess, user); err != nil {
		return err
	}

	m.mu.Lock()
	m.session = sess
	m.user = user
	m.mu.Unlock()

	m.logger.Info().Str("email", user.Email).Msg("Signed in")
	if m.bus != nil {
		m.bus.PublishSessionChanged(true, user.Email)
	}
	return nil
}

// SignOut notifies the backend best-effort, then unconditionally clears
// all persisted session state. Local cleanup is never blocked by network
// failure.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.RLock()
	token := ""
	if m.session != nil {
		token = m.session.AccessToken
	}
	m.mu.RUnlock()

	if token != "" {
		if resp, err := m.postJSON(ctx, "/auth/signout", nil, token); err != nil {
			m.logger.Warn().Err(err).Msg("Sign-out notify failed, clearing local state anyway")
		} else {
			resp.Body.Close()
		}
	}

	m.mu.Lock()
	m.session = nil
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}

	m.logger.Info().Msg("Signed out")
	if m.bus != nil {
		m.bus.PublishSessionChanged(false, "")
	}
	return nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// coalesce: whoever queues behind an in-flight refresh observes the bumped
// generation and returns without a second exchange. On a rejected refresh
// the session is cleared and ErrSessionExpired returned.
func (m *Manager) Refresh(ctx context.Context) error {
	gen := m.generation()

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if m.refreshGen != gen {
		// Someone refreshed while we waited; share their outcome.
		if !m.SignedIn() {
			return ErrSessionExpired
		}
		return nil
	}

	// The token is read only while holding refreshMu, after the generation
	// check, so an exchange can never start with a token a completed
	// refresh already consumed.
	m.mu.RLock()
	if m.session == nil {
		m.mu.RUnlock()
		return ErrNotAuthenticated
	}
	refreshToken := m.session.RefreshToken
	m.mu.RUnlock()

	pair, err := m.exchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		m.refreshGen++
		m.logger.Warn().Err(err).Msg("Token refresh failed, signing out")
		if soErr := m.SignOut(context.WithoutCancel(ctx)); soErr != nil {
			m.logger.Error().Err(soErr).Msg("Failed to clear session after refresh failure")
		}
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	sess := &models.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
	if pair.ExpiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}

	m.mu.Lock()
	if m.session == nil {
		// Signed out while the exchange was in flight; the fresh pair is
		// discarded rather than resurrecting a session without a user.
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	user := m.user
	m.session = sess
	m.mu.Unlock()
	m.refreshGen++

	if err := m.persist(ctx, sess, user); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to persist refreshed tokens")
	}

	m.logger.Debug().Msg("Token pair refreshed")
	return nil
}

// Do sends an authorized request. On a 401 it refreshes exactly once and
// replays the request; a second 401 surfaces ErrSessionExpired. The
// request must have GetBody set when it carries a body (true for requests
// built from byte readers).
func (m *Manager) Do(req *nethttp.Request) (*nethttp.Response, error) {
	token := m.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	if resp.StatusCode != nethttp.StatusUnauthorized {
		return resp, nil
	}

	// Token rejected: refresh once and replay.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := m.Refresh(req.Context()); err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+m.AccessToken())

	resp, err = m.http.Do(retry)
	if err != nil {
		return nil, &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	if resp.StatusCode == nethttp.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func cloneRequest(req *nethttp.Request) (*nethttp.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot replay request without GetBody: %s %s", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	retry.Body = body
	return retry, nil
}

func (m *Manager) generation() uint64 {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.refreshGen
}

func (m *Manager) exchangeRefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	resp, err := m.postJSON(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("refresh rejected: status %d: %s", resp.StatusCode, string(detail))
	}

	var pair models.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to decode token pair: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("refresh response missing tokens")
	}
	return &pair, nil
}

func (m *Manager) fetchProfile(ctx context.Context, accessToken string) (*models.User, error) {
	req, err := nethttp.NewRequestWithContext(ctx, "GET", m.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "GET /auth/me", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("profile fetch failed: status %d: %s", resp.StatusCode, string(detail))
	}

	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if user.Email == "" {
		return nil, fmt.Errorf("profile response missing email")
	}
	if user.DisplayName == "" {
		// Legacy identity responses carry only the email.
		fallback := models.FallbackUser(user.Email)
		user.DisplayName = fallback.DisplayName
		if user.ID == "" {
			user.ID = fallback.ID
		}
	}
	return &user, nil
}

func (m *Manager) persist(ctx context.Context, sess *models.Session, user *models.User) error {
	values := map[string]string{
		store.KeyAccessToken:  sess.AccessToken,
		store.KeyRefreshToken: sess.RefreshToken,
	}
	if !sess.ExpiresAt.IsZero() {
		values[store.KeyTokenExpiresAt] = strconv.FormatInt(sess.ExpiresAt.Unix(), 10)
	}
	if user != nil {
		values[store.KeyUserID] = user.ID
		values[store.KeyUserEmail] = user.Email
		values[store.KeyUserName] = user.DisplayName
	}
	return m.store.SetAll(ctx, values)
}

func (m *Manager) postJSON(ctx context.Context, path string, body interface{}, bearer string) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := nethttp.NewRequestWithContext(ctx, "POST", m.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "POST " + path, Err: err}
	}
	return resp, nil
}
