package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nimbusdrive/nimbus-cli/internal/constants"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// Uploader is the slice of the gateway the pipeline sends files through.
type Uploader interface {
	UploadFile(ctx context.Context, filename string, content io.Reader, folderPath, batchName string) (*models.FileEntry, error)
}

// Refresher refetches the catalog after a batch lands.
type Refresher interface {
	RefreshFromRemote(ctx context.Context) error
}

// Pipeline uploads files with bounded concurrency. Each file succeeds or
// fails on its own; a batch always runs to completion.
type Pipeline struct {
	uploader    Uploader
	refresher   Refresher
	bus         *events.EventBus
	logger      *logging.Logger
	concurrency int64
}

// NewPipeline creates a pipeline. Concurrency at or below zero falls back
// to the default. The refresher may be nil.
func NewPipeline(uploader Uploader, refresher Refresher, bus *events.EventBus, logger *logging.Logger, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = constants.DefaultUploadConcurrency
	}
	return &Pipeline{
		uploader:    uploader,
		refresher:   refresher,
		bus:         bus,
		logger:      logger,
		concurrency: int64(concurrency),
	}
}

// UploadOne transfers a single file into targetFolder, stepping the task
// through the coarse progress milestones.
func (p *Pipeline) UploadOne(ctx context.Context, item models.UploadItem, targetFolder, batchName, batchID string) models.FileOutcome {
	name := filepath.Base(item.LocalPath)
	folder := item.DestinationFolder(targetFolder)
	task := NewTask(name, item.LocalPath, folder, item.Size)
	task.BatchID = batchID
	task.BatchLabel = batchName

	p.publish(events.EventTransferQueued, task, nil)

	f, err := os.Open(item.LocalPath)
	if err != nil {
		err = fmt.Errorf("open %s: %w", item.LocalPath, err)
		task.SetError(err)
		p.publish(events.EventTransferFailed, task, err)
		return models.FileOutcome{Name: name, Folder: folder, Err: &UploadError{FileName: name, Err: err}}
	}
	defer f.Close()

	task.SetState(TaskActive)
	task.SetProgress(constants.ProgressStarted)
	p.publish(events.EventTransferStarted, task, nil)

	task.SetProgress(constants.ProgressTransfer)
	p.publish(events.EventTransferProgress, task, nil)

	entry, err := p.uploader.UploadFile(ctx, name, f, folder, batchName)
	if err != nil {
		task.SetError(err)
		p.publish(events.EventTransferFailed, task, err)
		p.logger.Error().Err(err).Str("file", name).Str("folder", folder).Msg("Upload failed")
		return models.FileOutcome{Name: name, Folder: folder, Err: &UploadError{FileName: name, Err: err}}
	}

	task.SetProgress(constants.ProgressRegister)
	p.publish(events.EventTransferProgress, task, nil)

	task.SetProgress(constants.ProgressComplete)
	task.SetState(TaskCompleted)
	p.publish(events.EventTransferCompleted, task, nil)

	p.logger.Info().Str("file", name).Str("folder", folder).Int64("size", item.Size).Msg("Upload complete")
	return models.FileOutcome{Name: name, Folder: folder, Entry: entry}
}

// UploadBatch transfers the items into targetFolder with bounded
// concurrency. Outcomes come back in item order; the batch result counts
// successes and failures but never aborts early for one bad file. After
// the last item the catalog refreshes so new entries appear immediately.
func (p *Pipeline) UploadBatch(ctx context.Context, items []models.UploadItem, targetFolder string) (*models.BatchResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	result := &models.BatchResult{
		BatchID:   uuid.NewString(),
		BatchName: batchName(items),
		Total:     len(items),
		Outcomes:  make([]models.FileOutcome, len(items)),
	}

	p.logger.Info().
		Str("batch", result.BatchName).
		Int("files", len(items)).
		Int64("concurrency", p.concurrency).
		Msg("Batch upload starting")

	sem := semaphore.NewWeighted(p.concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled; mark the rest as failed without starting them.
			for j := i; j < len(items); j++ {
				name := filepath.Base(items[j].LocalPath)
				folder := items[j].DestinationFolder(targetFolder)
				result.Outcomes[j] = models.FileOutcome{Name: name, Folder: folder, Err: &UploadError{FileName: name, Err: err}}
			}
			break
		}

		wg.Add(1)
		go func(i int, item models.UploadItem) {
			defer wg.Done()
			defer sem.Release(1)
			result.Outcomes[i] = p.UploadOne(ctx, item, targetFolder, result.BatchName, result.BatchID)
		}(i, item)
	}

	wg.Wait()

	for _, o := range result.Outcomes {
		if o.Err != nil {
			result.Failed++
		} else {
			result.Successful++
		}
	}

	p.logger.Info().
		Str("batch", result.BatchName).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("Batch upload finished")

	if p.refresher != nil && result.Successful > 0 {
		if err := p.refresher.RefreshFromRemote(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("Post-upload refresh failed")
		}
	}

	return result, nil
}

// CollectDir walks a local directory into upload items whose relative
// paths preserve the folder structure under the directory's own name.
func CollectDir(root string) ([]models.UploadItem, error) {
	base := filepath.Base(filepath.Clean(root))

	var items []models.UploadItem
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		items = append(items, models.UploadItem{
			LocalPath:    p,
			RelativePath: path.Join(base, filepath.ToSlash(rel)),
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return items, nil
}

// batchName labels a batch after the common top-level folder when the
// items carry one, else by timestamp.
func batchName(items []models.UploadItem) string {
	top := ""
	for _, item := range items {
		if item.RelativePath == "" {
			top = ""
			break
		}
		first := item.RelativePath
		if i := strings.IndexByte(first, '/'); i >= 0 {
			first = first[:i]
		}
		if top == "" {
			top = first
		} else if top != first {
			top = ""
			break
		}
	}
	if top != "" {
		return top
	}
	return "Upload " + time.Now().Format("Jan 2 15:04")
}

func (p *Pipeline) publish(eventType events.EventType, task *Task, err error) {
	if p.bus == nil {
		return
	}
	p.bus.PublishTransfer(eventType, task.ID, task.Name, task.Size, task.GetProgress(), task.BatchID, err)
}
