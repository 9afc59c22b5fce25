package upload

import "fmt"

// UploadError ties a transfer failure to the file it belongs to so batch
// callers can report per-file causes.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
