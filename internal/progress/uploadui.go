// Package progress renders upload progress bars for batch transfers.
// Bars step through coarse milestones rather than byte counts, and fall
// back to plain text when stderr is not a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/nimbusdrive/nimbus-cli/internal/events"
)

// UploadUI renders one bar per in-flight transfer, driven by the event
// bus. Each bar runs 0-100 over the pipeline's milestones.
type UploadUI struct {
	progress   *mpb.Progress
	isTerminal bool
	totalFiles int

	mu      sync.Mutex
	bars    map[string]*mpb.Bar
	index   int
	started bool

	sub  <-chan events.Event
	bus  *events.EventBus
	done chan struct{}
}

// NewUploadUI creates a UI for a batch of totalFiles transfers.
func NewUploadUI(totalFiles int) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
		bars:       make(map[string]*mpb.Bar),
		done:       make(chan struct{}),
	}
}

// Attach subscribes to transfer events and starts rendering. Call Wait
// after the batch finishes to drain and close the display.
func (u *UploadUI) Attach(bus *events.EventBus) {
	u.bus = bus
	u.sub = bus.SubscribeAll()
	go u.consume()
}

func (u *UploadUI) consume() {
	defer close(u.done)
	for ev := range u.sub {
		switch e := ev.(type) {
		case *events.TransferEvent:
			u.handle(e)
		}
	}
}

func (u *UploadUI) handle(e *events.TransferEvent) {
	switch e.Type() {
	case events.EventTransferStarted:
		u.addBar(e)
	case events.EventTransferProgress:
		u.setProgress(e.TaskID, e.Progress)
	case events.EventTransferCompleted:
		u.complete(e)
	case events.EventTransferFailed:
		u.fail(e)
	}
}

func (u *UploadUI) addBar(e *events.TransferEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.index++
	label := fmt.Sprintf("[%d/%d] %s (%.1f MiB)",
		u.index, u.totalFiles, e.Name, float64(e.Size)/(1024*1024))

	if !u.isTerminal {
		fmt.Printf("Uploading %s\n", label)
		return
	}

	bar := u.progress.New(100,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	bar.SetCurrent(int64(e.Progress))
	u.bars[e.TaskID] = bar
}

func (u *UploadUI) setProgress(taskID string, progress int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if bar, ok := u.bars[taskID]; ok {
		bar.SetCurrent(int64(progress))
	}
}

func (u *UploadUI) complete(e *events.TransferEvent) {
	u.mu.Lock()
	bar, ok := u.bars[e.TaskID]
	delete(u.bars, e.TaskID)
	u.mu.Unlock()

	if ok {
		bar.SetCurrent(100)
		bar.SetTotal(100, true)
	}

	msg := fmt.Sprintf("✓ %s (%.1f MiB)\n", e.Name, float64(e.Size)/(1024*1024))
	u.write(msg)
}

func (u *UploadUI) fail(e *events.TransferEvent) {
	u.mu.Lock()
	bar, ok := u.bars[e.TaskID]
	delete(u.bars, e.TaskID)
	u.mu.Unlock()

	if ok {
		bar.Abort(false)
	}

	msg := fmt.Sprintf("✗ %s: %v\n", e.Name, e.Error)
	u.write(msg)
}

// write routes text through mpb's writer when bars are live so summary
// lines interleave cleanly with redraws.
func (u *UploadUI) write(msg string) {
	if u.isTerminal && u.progress != nil {
		u.progress.Write([]byte(msg))
	} else {
		fmt.Print(msg)
	}
}

// Wait unsubscribes, drains pending events and closes the display.
func (u *UploadUI) Wait() {
	if u.bus != nil && u.sub != nil {
		u.bus.UnsubscribeAll(u.sub)
		<-u.done
	}
	if u.progress != nil {
		u.progress.Wait()
	}
}
