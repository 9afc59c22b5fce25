package syncer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/catalog"
	"github.com/nimbusdrive/nimbus-cli/internal/constants"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// fakeRemote serves a mutable listing and a switchable health verdict.
type fakeRemote struct {
	listing   []models.FileEntry
	healthErr error
	listCalls int
}

func (f *fakeRemote) ListFiles(ctx context.Context, kind models.FileKind) ([]models.FileEntry, error) {
	f.listCalls++
	return f.listing, nil
}

func (f *fakeRemote) Health(ctx context.Context, httpClient *http.Client) error {
	return f.healthErr
}

func entries(n int) []models.FileEntry {
	out := make([]models.FileEntry, n)
	for i := range out {
		out[i] = models.FileEntry{
			ID:        string(rune('a' + i)),
			Name:      "file",
			Kind:      models.KindGeneric,
			CreatedAt: time.Now(),
		}
	}
	return out
}

func newTestSyncer(remote *fakeRemote, bus *events.EventBus) *Syncer {
	logger := logging.NewDefaultLogger()
	cat := catalog.New(nil, nil, logger)
	return New(DefaultConfig(), remote, cat, &http.Client{}, bus, logger)
}

func TestNewItemsDetectedAfterBaseline(t *testing.T) {
	remote := &fakeRemote{listing: entries(3)}
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventNewItemsDetected)

	s := newTestSyncer(remote, bus)
	ctx := context.Background()

	// First poll establishes the baseline; growth from zero is initial
	// population, not new items.
	s.poll(ctx)
	select {
	case <-ch:
		t.Fatal("Initial population must not announce new items")
	case <-time.After(50 * time.Millisecond):
	}

	remote.listing = entries(5)
	s.poll(ctx)

	select {
	case ev := <-ch:
		ni := ev.(*events.NewItemsDetectedEvent)
		if ni.NewCount != 2 || ni.Total != 5 {
			t.Errorf("Expected 2 new of 5 total, got %+v", ni)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected new items event")
	}
}

func TestShrinkingListingIsNotNewItems(t *testing.T) {
	remote := &fakeRemote{listing: entries(5)}
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventNewItemsDetected)

	s := newTestSyncer(remote, bus)
	ctx := context.Background()

	s.poll(ctx)
	remote.listing = entries(2)
	s.poll(ctx)

	select {
	case <-ch:
		t.Fatal("Shrinking listing must not announce new items")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnhealthyAfterThresholdFailures(t *testing.T) {
	remote := &fakeRemote{healthErr: errors.New("connection refused")}
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventHealthChanged)

	s := newTestSyncer(remote, bus)
	ctx := context.Background()

	for i := 0; i < constants.HealthFailureThreshold-1; i++ {
		s.probe(ctx)
		if !s.Healthy() {
			t.Fatalf("Should still be healthy after %d failure(s)", i+1)
		}
	}

	s.probe(ctx)
	if s.Healthy() {
		t.Fatal("Expected unhealthy after threshold failures")
	}

	select {
	case ev := <-ch:
		hc := ev.(*events.HealthChangedEvent)
		if hc.Healthy {
			t.Error("Expected unhealthy event")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected health changed event")
	}
}

func TestSingleSuccessRestoresHealth(t *testing.T) {
	remote := &fakeRemote{healthErr: errors.New("connection refused")}
	s := newTestSyncer(remote, nil)
	ctx := context.Background()

	for i := 0; i < constants.HealthFailureThreshold; i++ {
		s.probe(ctx)
	}
	if s.Healthy() {
		t.Fatal("Expected unhealthy")
	}

	remote.healthErr = nil
	s.probe(ctx)
	if !s.Healthy() {
		t.Error("One successful probe should restore health")
	}
}

func TestPollSkippedWhileUnhealthy(t *testing.T) {
	remote := &fakeRemote{healthErr: errors.New("connection refused"), listing: entries(3)}
	s := newTestSyncer(remote, nil)
	ctx := context.Background()

	for i := 0; i < constants.HealthFailureThreshold; i++ {
		s.probe(ctx)
	}

	before := remote.listCalls
	s.poll(ctx)
	if remote.listCalls != before {
		t.Error("Poll must not fetch while the backend is unhealthy")
	}

	remote.healthErr = nil
	s.probe(ctx)
	s.poll(ctx)
	if remote.listCalls != before+1 {
		t.Error("Poll should resume after recovery")
	}
}

func TestStartStopRestart(t *testing.T) {
	remote := &fakeRemote{listing: entries(1)}
	s := newTestSyncer(remote, nil)
	s.cfg.PollInterval = 10 * time.Millisecond
	s.cfg.HealthInterval = 10 * time.Millisecond

	ctx := context.Background()
	s.Start(ctx)
	if !s.IsRunning() {
		t.Fatal("Expected running after Start")
	}
	s.Start(ctx) // Second start is a no-op.

	s.Stop()
	if s.IsRunning() {
		t.Fatal("Expected stopped after Stop")
	}
	s.Stop() // Second stop is a no-op.

	// Restart works and begins with fresh baselines.
	s.Start(ctx)
	if !s.IsRunning() {
		t.Fatal("Expected running after restart")
	}
	s.Stop()
}
