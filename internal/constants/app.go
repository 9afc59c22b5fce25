package constants

import (
	"time"
)

// Synchronization intervals
const (
	// DefaultPollInterval - how often the sync engine refetches the remote
	// file list while a session is active.
	DefaultPollInterval = 2 * time.Second

	// DefaultHealthInterval - how often the backend health endpoint is probed.
	// Deliberately slower than the poll loop; a down backend is detected by
	// the health loop and the poll loop skips its ticks until recovery.
	DefaultHealthInterval = 10 * time.Second

	// HealthFailureThreshold - consecutive probe failures before the backend
	// is marked unhealthy. One lost probe must not flap the flag.
	HealthFailureThreshold = 3

	// HealthProbeTimeout - per-request deadline for health probes. Probes
	// must fail fast rather than queue behind a stalled backend.
	HealthProbeTimeout = 5 * time.Second
)

// Upload pipeline
const (
	// DefaultUploadConcurrency - maximum in-flight transfers in a batch.
	DefaultUploadConcurrency = 4

	// Coarse progress milestones reported by single-file uploads.
	// The transport gives no fine-grained progress events, so uploads
	// report discrete stages instead of byte-accurate fractions.
	ProgressQueued    = 0
	ProgressStarted   = 25
	ProgressTransfer  = 60
	ProgressRegister  = 90
	ProgressComplete  = 100
)

// Recent-activity windows
const (
	// RecentCreatedWindow - entries created within this window count as recent.
	RecentCreatedWindow = 2 * time.Hour

	// RecentOpenedWindow - entries opened within this window count as recent.
	RecentOpenedWindow = 24 * time.Hour
)

// HTTP client tuning
const (
	HTTPIdleConnTimeout        = 90 * time.Second
	HTTPTLSHandshakeTimeout    = 30 * time.Second
	HTTPExpectContinueTimeout  = 5 * time.Second
	HTTPRequestTimeout         = 60 * time.Second
	HTTPRetryMax               = 4
	HTTPRetryWaitMin           = 1 * time.Second
	HTTPRetryWaitMax           = 15 * time.Second
)

// Event bus buffers
const (
	EventBusDefaultBuffer = 1000
	EventBusMaxBuffer     = 10000
)
