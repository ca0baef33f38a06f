// Command dispatch-ai runs the AI query core for the freight TMS: the chat
// orchestrator, the query router, and the cost ledger behind a thin HTTP
// surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freightdesk/dispatch-ai/internal/access"
	"github.com/freightdesk/dispatch-ai/internal/config"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
	"github.com/freightdesk/dispatch-ai/internal/llm"
	"github.com/freightdesk/dispatch-ai/internal/orchestrator"
	"github.com/freightdesk/dispatch-ai/internal/registry"
	"github.com/freightdesk/dispatch-ai/internal/router"
	"github.com/freightdesk/dispatch-ai/internal/storage/sqlite"
	"github.com/freightdesk/dispatch-ai/internal/telemetry"
	"github.com/freightdesk/dispatch-ai/internal/tools"
	"github.com/freightdesk/dispatch-ai/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("dispatch-ai exited")
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	log.Info().
		Str("openai_key", utils.MaskKey(cfg.Providers.OpenAI.APIKey)).
		Str("anthropic_key", utils.MaskKey(cfg.Providers.Anthropic.APIKey)).
		Float64("monthly_budget_usd", cfg.Budget.MonthlyUSD).
		Msg("configuration loaded")

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	tracker, err := telemetry.NewTracker(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = tracker.Close() }()

	reg := registry.New(cfg)
	if len(reg.ListAvailable()) == 0 {
		log.Warn().Msg("no provider credentials configured; all model calls will fail")
	}

	clients := llm.NewFactory(cfg.Providers)
	led := ledger.New(store, tracker, cfg.Budget)
	rtr := router.New(reg, clients, led, tracker)
	executor := tools.NewExecutor(access.New(store))
	orch := orchestrator.New(reg, clients, executor, led, store)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newHandler(orch, rtr, led, executor),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("dispatch-ai listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
