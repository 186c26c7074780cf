// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/flowbeat/internal/api/connect"
	"github.com/osa030/flowbeat/internal/api/ws"
	"github.com/osa030/flowbeat/internal/app/catalog"
	"github.com/osa030/flowbeat/internal/app/filter"
	"github.com/osa030/flowbeat/internal/app/notification"
	"github.com/osa030/flowbeat/internal/app/player"
	"github.com/osa030/flowbeat/internal/app/report"
	"github.com/osa030/flowbeat/internal/infra/config"
	"github.com/osa030/flowbeat/internal/infra/flowbeat"
	"github.com/osa030/flowbeat/internal/infra/logger"
	"github.com/osa030/flowbeat/internal/infra/prefs"
	"github.com/osa030/flowbeat/internal/infra/spotify"
	"github.com/osa030/flowbeat/internal/infra/stream"
)

var (
	app        = kingpin.New("flowbeat-server", "FlowBeat playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	jsonLogs   = app.Flag("json-logs", "Write JSON log lines to stdout").Bool()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		JSON:   *jsonLogs,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run server (defer ensures cleanup runs before exit)
	err = run(cfg)
	if err != nil {
		zlog.Error().Msgf("Server error: %v", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	if err := validateFilterConfig(cfg); err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flowbeatClient, err := flowbeat.New(ctx, flowbeat.Config{
		BaseURL:  cfg.FlowBeat.BaseURL,
		Username: cfg.FlowBeat.Username,
		Password: cfg.FlowBeat.Password,
		Timeout:  cfg.FlowBeatTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create FlowBeat client: %w", err)
	}

	// Spotify is optional
	var spotifyClient catalog.SpotifyClient
	if cfg.Spotify.Enabled() {
		c, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		spotifyClient = c
	} else {
		zlog.Info().Msg("Spotify not configured, spotify catalogs are unavailable")
	}

	catalogs, err := catalog.NewRegistryFromConfig(cfg, flowbeatClient, spotifyClient)
	if err != nil {
		return fmt.Errorf("failed to create catalogs: %w", err)
	}
	if err := validateCatalogs(ctx, catalogs); err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}

	reporter := report.New(flowbeatClient, report.Config{
		QueueSize: cfg.FlowBeat.ReportQueueSize,
		Timeout:   cfg.FlowBeatTimeout(),
	})
	defer reporter.Close()

	notifier := notification.NewManager(notification.WithBufferSize(cfg.Notification.BufferSize))

	backend := stream.NewBackend(stream.Config{
		Tick:         time.Duration(cfg.Stream.TickMs) * time.Millisecond,
		ReadTimeout:  time.Duration(cfg.Stream.ReadTimeoutSec) * time.Second,
		ChunkBytes:   cfg.Stream.ChunkBytes,
		FallbackKbps: cfg.Stream.FallbackKbps,
		UserAgent:    cfg.Stream.UserAgent,
	})

	p := player.New(cfg, backend, player.Options{
		Reporter: reporter,
		Notifier: notifier,
		Prefs:    prefs.NewStore(cfg.Player.PrefsPath),
	})
	go p.Run(ctx)

	mux := http.NewServeMux()

	playerService := apiconnect.NewPlayerService(p, catalogs, notifier)
	path, handler := playerService.Handler(
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg)),
	)
	mux.Handle(path, handler)
	mux.Handle("GET /ws", ws.NewHandler(p, notifier))

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-p.Done():
		zlog.Info().Msg("Player stopped, shutting down...")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Stop playback first so streams see the player finish
	if err := p.Close(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to close player: %v", err)
	}
	notifier.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			// Some filters are created with dependencies, skip validation
			continue
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return fmt.Errorf("filter %s: %w", filterName, err)
		}
	}

	return nil
}

// validateCatalogs checks that configured catalogs are reachable, retrying
// transient errors during startup.
func validateCatalogs(ctx context.Context, catalogs *catalog.Registry) error {
	maxRetries := 5
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying catalog validation in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := catalogs.Check(ctx); err != nil {
			lastErr = err
			zlog.Warn().Msgf("Failed to validate catalogs (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		zlog.Info().Msgf("Catalogs validated: count=%d", len(catalogs.List()))
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %v", maxRetries, lastErr)
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
