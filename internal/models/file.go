package models

import (
	"path"
	"strings"
	"time"
)

// FileKind categorizes an entry for filtering and view routing.
type FileKind string

const (
	KindImage    FileKind = "image"
	KindVideo    FileKind = "video"
	KindAudio    FileKind = "audio"
	KindDocument FileKind = "document"
	KindCode     FileKind = "code"
	KindGeneric  FileKind = "generic"
	KindFolder   FileKind = "folder"
)

// FileEntry represents a file or folder in the catalog's unified namespace.
// Folders are flat in the remote model: hierarchy is carried by FolderPath,
// a slash-delimited logical path where "" means root.
type FileEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       FileKind  `json:"kind"`
	IsFolder   bool      `json:"isFolder"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType,omitempty"`
	StorageKey string    `json:"storageKey,omitempty"`
	FolderPath string    `json:"folderPath"`
	ParentID   string    `json:"parentId,omitempty"` // Empty means root
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	OpenedAt   time.Time `json:"openedAt,omitempty"`
	Deleted    bool      `json:"deleted"`
	DeletedAt  time.Time `json:"deletedAt,omitempty"`
	IsFavorite bool      `json:"isFavorite"`

	// PriorFolderPath records where a soft-deleted entry lived so restore
	// can put it back.
	PriorFolderPath string `json:"priorFolderPath,omitempty"`
}

// Active reports whether the entry belongs in active views.
func (e *FileEntry) Active() bool {
	return !e.Deleted
}

// ActivityTime returns the timestamp recent-activity views sort by:
// the later of creation and last open.
func (e *FileEntry) ActivityTime() time.Time {
	if e.OpenedAt.After(e.CreatedAt) {
		return e.OpenedAt
	}
	return e.CreatedAt
}

// FileListResponse is the paginated list response from the backend.
type FileListResponse struct {
	Count   int         `json:"count"`
	Next    *string     `json:"next"`
	Results []FileEntry `json:"results"`
}

var kindByExt = map[string]FileKind{
	".jpg": KindImage, ".jpeg": KindImage, ".png": KindImage, ".gif": KindImage,
	".webp": KindImage, ".bmp": KindImage, ".svg": KindImage, ".heic": KindImage,
	".mp4": KindVideo, ".mov": KindVideo, ".avi": KindVideo, ".mkv": KindVideo,
	".webm": KindVideo,
	".mp3": KindAudio, ".wav": KindAudio, ".flac": KindAudio, ".ogg": KindAudio,
	".m4a": KindAudio,
	".pdf": KindDocument, ".txt": KindDocument, ".doc": KindDocument,
	".docx": KindDocument, ".md": KindDocument, ".rtf": KindDocument,
	".go": KindCode, ".py": KindCode, ".js": KindCode, ".ts": KindCode,
	".java": KindCode, ".c": KindCode, ".cpp": KindCode, ".rs": KindCode,
	".sh": KindCode, ".rb": KindCode,
}

// ClassifyKind derives a FileKind from a filename and optional MIME type.
// The extension wins when known; the MIME type's major part breaks ties.
func ClassifyKind(name, mimeType string) FileKind {
	if kind, ok := kindByExt[strings.ToLower(path.Ext(name))]; ok {
		return kind
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "text/"):
		return KindDocument
	default:
		return KindGeneric
	}
}

// JoinFolderPath appends a name to a slash-delimited logical folder path.
func JoinFolderPath(parent, name string) string {
	parent = strings.Trim(parent, "/")
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
