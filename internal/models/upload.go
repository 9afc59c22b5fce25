package models

import "path"

// UploadItem is one file in a batch upload. RelativePath is set when the
// selection carried folder structure (e.g. a dragged directory); the
// destination folder is derived from it by stripping the filename.
type UploadItem struct {
	LocalPath    string
	RelativePath string
	Size         int64
}

// DestinationFolder resolves where the item lands. Items carrying a
// relative path nest under targetFolder by that path's directory part;
// items without one upload directly to targetFolder.
func (i UploadItem) DestinationFolder(targetFolder string) string {
	if i.RelativePath == "" {
		return targetFolder
	}
	dir := path.Dir(i.RelativePath)
	if dir == "." || dir == "/" {
		return targetFolder
	}
	return JoinFolderPath(targetFolder, dir)
}

// FileOutcome records the result of one file within a batch.
type FileOutcome struct {
	Name   string
	Folder string
	Entry  *FileEntry // Set on success
	Err    error      // Set on failure
}

// BatchResult summarizes a batch upload. Per-file failures never abort the
// batch; every item appears in Outcomes exactly once.
type BatchResult struct {
	BatchID    string
	BatchName  string
	Total      int
	Successful int
	Failed     int
	Outcomes   []FileOutcome
}
