// Package syncer keeps the local catalog aligned with the backend by
// periodic polling, and tracks backend health with a separate probe loop.
package syncer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/catalog"
	"github.com/nimbusdrive/nimbus-cli/internal/constants"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// Remote is what the sync engine needs from the gateway.
type Remote interface {
	ListFiles(ctx context.Context, kind models.FileKind) ([]models.FileEntry, error)
	Health(ctx context.Context, httpClient *http.Client) error
}

// Config holds the sync engine's loop intervals.
type Config struct {
	PollInterval   time.Duration
	HealthInterval time.Duration
}

// DefaultConfig returns the standard intervals.
func DefaultConfig() Config {
	return Config{
		PollInterval:   constants.DefaultPollInterval,
		HealthInterval: constants.DefaultHealthInterval,
	}
}

// Syncer runs the poll and health loops. Start it after sign-in and stop
// it on sign-out; it is restartable.
type Syncer struct {
	cfg     Config
	remote  Remote
	catalog *catalog.Catalog
	bus     *events.EventBus
	logger  *logging.Logger

	// Health probes go out on a plain client so they bypass the session
	// layer and its refresh machinery.
	healthClient *http.Client

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.RWMutex

	healthy  bool
	failures int

	// lastCount is the active entry count from the previous completed
	// poll. Zero means no baseline yet, so growth from zero is initial
	// population rather than new items.
	lastCount int
}

// New creates a sync engine. Intervals at or below zero fall back to the
// defaults.
func New(cfg Config, remote Remote, cat *catalog.Catalog, healthClient *http.Client, bus *events.EventBus, logger *logging.Logger) *Syncer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = constants.DefaultHealthInterval
	}
	if healthClient == nil {
		healthClient = &http.Client{Timeout: constants.HealthProbeTimeout}
	}
	return &Syncer{
		cfg:          cfg,
		remote:       remote,
		catalog:      cat,
		bus:          bus,
		logger:       logger,
		healthClient: healthClient,
		healthy:      true,
	}
}

// Start launches both loops, running an immediate poll and probe first.
// Starting a running syncer is a no-op.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Str("poll_interval", s.cfg.PollInterval.String()).
		Str("health_interval", s.cfg.HealthInterval.String()).
		Msg("Sync engine starting")

	s.probe(ctx)
	s.poll(ctx)

	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.healthLoop(ctx)
}

// Stop signals both loops and waits for them to exit. The health and
// item-count baselines reset so a later Start begins fresh.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stopChan
	s.mu.Unlock()

	close(stop)
	s.wg.Wait()

	s.mu.Lock()
	s.healthy = true
	s.failures = 0
	s.lastCount = 0
	s.mu.Unlock()

	s.logger.Info().Msg("Sync engine stopped")
}

// IsRunning reports whether the loops are active.
func (s *Syncer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Healthy reports the current backend health verdict.
func (s *Syncer) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Syncer) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Poll loop cancelled by context")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Syncer) healthLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Health loop cancelled by context")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// poll fetches the full listing and replaces the catalog snapshot. Ticks
// are skipped while the backend is unhealthy; the health loop decides
// when polling resumes.
func (s *Syncer) poll(ctx context.Context) {
	if !s.Healthy() {
		s.logger.Debug().Msg("Skipping poll while backend unhealthy")
		return
	}

	fetched, err := s.remote.ListFiles(ctx, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("Poll failed")
		return
	}

	_, total := s.catalog.ReplaceSnapshot(fetched)

	s.mu.Lock()
	baseline := s.lastCount
	s.lastCount = total
	s.mu.Unlock()

	if baseline > 0 && total > baseline {
		newCount := total - baseline
		s.logger.Info().Int("new", newCount).Int("total", total).Msg("New items detected")
		if s.bus != nil {
			s.bus.PublishNewItems(newCount, total)
		}
	}
}

// probe performs one health check and updates the verdict. The backend
// flips to unhealthy after consecutive failures reach the threshold; a
// single success restores it.
func (s *Syncer) probe(ctx context.Context) {
	err := s.remote.Health(ctx, s.healthClient)

	s.mu.Lock()
	wasHealthy := s.healthy
	if err != nil {
		s.failures++
		if s.failures >= constants.HealthFailureThreshold {
			s.healthy = false
		}
	} else {
		s.failures = 0
		s.healthy = true
	}
	nowHealthy := s.healthy
	failures := s.failures
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Int("consecutive_failures", failures).Msg("Health probe failed")
	}

	if nowHealthy != wasHealthy {
		if nowHealthy {
			s.logger.Info().Msg("Backend recovered")
		} else {
			s.logger.Warn().Int("consecutive_failures", failures).Msg("Backend marked unhealthy")
		}
		if s.bus != nil {
			s.bus.PublishHealthChanged(nowHealthy, failures)
		}
	}
}
