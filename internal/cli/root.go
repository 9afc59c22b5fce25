// Package cli provides the command-line interface for nimbus.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusdrive/nimbus-cli/internal/api"
	"github.com/nimbusdrive/nimbus-cli/internal/catalog"
	"github.com/nimbusdrive/nimbus-cli/internal/config"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/httpx"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/session"
	"github.com/nimbusdrive/nimbus-cli/internal/store"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	verbose    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by main package at startup
var (
	Version   = "v1.0.0-dev"
	BuildTime = "2026-09-01"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nimbus",
		Short: "NimbusDrive - personal cloud file management",
		Long: `NimbusDrive ` + Version + ` - Built: ` + BuildTime + `
Command-line client for NimbusDrive cloud storage: browse, organize
and upload files, manage the recycle bin and favorites, and keep a
live local view of your drive.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultLogger()
			if verbose {
				logging.SetGlobalLevel(-1)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newAlbumsCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() int {
	rootContext, cancelFunc = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFunc()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(rootContext); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// app bundles the wired-up client stack for command handlers.
type app struct {
	cfg      *config.Config
	store    *store.Store
	bus      *events.EventBus
	sessions *session.Manager
	client   *api.Client
	catalog  *catalog.Catalog
}

// newApp builds the stack: config, token store, HTTP client, session
// manager (restoring any persisted session) and the typed API client.
func newApp(ctx context.Context) (*app, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}

	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	st, err := store.Open(config.StateDBPath())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	httpClient, err := httpx.NewClient(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	retryClient := httpx.NewRetryClient(httpClient)

	bus := events.NewEventBus(0)
	sessions := session.NewManager(cfg, st, retryClient, bus, logger)
	if err := sessions.Initialize(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not restore saved session")
	}

	client := api.NewClient(cfg, sessions, logger)
	cat := catalog.New(client, bus, logger)

	return &app{
		cfg:      cfg,
		store:    st,
		bus:      bus,
		sessions: sessions,
		client:   client,
		catalog:  cat,
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	a.bus.Close()
	a.store.Close()
}

// requireSession fails fast for commands that need a signed-in user.
func (a *app) requireSession() error {
	if !a.sessions.SignedIn() {
		return fmt.Errorf("not signed in; run 'nimbus auth login <email>' first")
	}
	return nil
}

// loadCatalog populates the catalog with a fresh listing.
func (a *app) loadCatalog(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.catalog.RefreshFromRemote(ctx)
}
