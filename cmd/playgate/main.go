package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/playgate/internal/arbiter"
	"github.com/friendsincode/playgate/internal/config"
	"github.com/friendsincode/playgate/internal/jellyfin"
	"github.com/friendsincode/playgate/internal/logging"
	"github.com/friendsincode/playgate/internal/sabnzbd"
	"github.com/friendsincode/playgate/internal/server"
	"github.com/friendsincode/playgate/internal/telemetry"
	"github.com/friendsincode/playgate/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	configPath string

	flagJellyfinURL    string
	flagJellyfinAPIKey string
	flagSabURL         string
	flagSabAPIKey      string
	flagInterval       int
	flagResumeCooldown int
	flagIncludePaused  bool
	flagVerifyTLS      bool
	flagRequestTimeout int
	flagLogLevel       string
	flagHTTPPort       int
)

var rootCmd = &cobra.Command{
	Use:   "playgate",
	Short: "Playgate - playback-aware SABnzbd gate",
	Long:  "Playgate watches Jellyfin for active playback sessions and pauses the SABnzbd download queue while anyone is watching, resuming it after a quiet period.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the poll loop and status server",
	Long:  "Start the Jellyfin/SABnzbd poll loop plus the HTTP status and metrics server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")

	serveCmd.Flags().StringVar(&flagJellyfinURL, "jellyfin-url", "", "Jellyfin base URL")
	serveCmd.Flags().StringVar(&flagJellyfinAPIKey, "jellyfin-api-key", "", "Jellyfin API key")
	serveCmd.Flags().StringVar(&flagSabURL, "sab-url", "", "SABnzbd base URL")
	serveCmd.Flags().StringVar(&flagSabAPIKey, "sab-api-key", "", "SABnzbd API key")
	serveCmd.Flags().IntVar(&flagInterval, "interval", 0, "Poll interval in seconds")
	serveCmd.Flags().IntVar(&flagResumeCooldown, "resume-cooldown", 0, "Idle seconds before resuming the queue")
	serveCmd.Flags().BoolVar(&flagIncludePaused, "include-paused", false, "Count paused/buffering sessions as active")
	serveCmd.Flags().BoolVar(&flagVerifyTLS, "verify-tls", true, "Verify TLS certificates on outbound requests")
	serveCmd.Flags().IntVar(&flagRequestTimeout, "request-timeout", 0, "Per-request timeout in seconds")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().IntVar(&flagHTTPPort, "http-port", 0, "Status server port")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.LogLevel)

	for _, w := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(w)
	}
	return nil
}

// applyServeFlags pushes explicitly set flags onto the config env keys,
// so flag > env > file > default without a second precedence mechanism.
func applyServeFlags(cmd *cobra.Command) {
	set := func(flag, key, value string) {
		if cmd.Flags().Changed(flag) {
			os.Setenv(key, value)
		}
	}
	set("jellyfin-url", "PLAYGATE_JELLYFIN_URL", flagJellyfinURL)
	set("jellyfin-api-key", "PLAYGATE_JELLYFIN_API_KEY", flagJellyfinAPIKey)
	set("sab-url", "PLAYGATE_SAB_URL", flagSabURL)
	set("sab-api-key", "PLAYGATE_SAB_API_KEY", flagSabAPIKey)
	set("interval", "PLAYGATE_INTERVAL", strconv.Itoa(flagInterval))
	set("resume-cooldown", "PLAYGATE_RESUME_COOLDOWN", strconv.Itoa(flagResumeCooldown))
	set("include-paused", "PLAYGATE_INCLUDE_PAUSED", strconv.FormatBool(flagIncludePaused))
	set("verify-tls", "PLAYGATE_VERIFY_TLS", strconv.FormatBool(flagVerifyTLS))
	set("request-timeout", "PLAYGATE_REQUEST_TIMEOUT", strconv.Itoa(flagRequestTimeout))
	set("log-level", "PLAYGATE_LOG_LEVEL", flagLogLevel)
	set("http-port", "PLAYGATE_HTTP_PORT", strconv.Itoa(flagHTTPPort))
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeFlags(cmd)
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("version", version.Version).
		Str("instance_id", cfg.InstanceID).
		Str("jellyfin_url", cfg.JellyfinURL).
		Str("sab_url", cfg.SabURL).
		Dur("interval", cfg.Interval).
		Dur("resume_cooldown", cfg.ResumeCooldown).
		Bool("include_paused", cfg.IncludePaused).
		Msg("Playgate starting")

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "playgate",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	jf := jellyfin.NewClient(cfg.JellyfinURL, cfg.JellyfinAPIKey, cfg.RequestTimeout, cfg.VerifyTLS, logger)
	sab := sabnzbd.NewClient(cfg.SabURL, cfg.SabAPIKey, cfg.RequestTimeout, cfg.VerifyTLS, logger)
	engine := arbiter.NewEngine(cfg.Interval, cfg.ResumeCooldown)
	runner := arbiter.NewRunner(jf, sab, engine, cfg.Interval, cfg.IncludePaused, cfg.InstanceID, logger)

	srv := server.New(cfg.HTTPBind, cfg.HTTPPort, runner, logger)
	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = runner.Run(loopCtx)
	}()

	updates := version.NewChecker(logger)
	updates.Start(loopCtx)
	defer updates.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	stopLoop()
	<-loopDone

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("Playgate stopped")
	return nil
}
