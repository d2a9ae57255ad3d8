package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rybuilt/humelink/internal/config"
	"github.com/rybuilt/humelink/internal/logger"
	"github.com/rybuilt/humelink/pkg/httpapi"
	"github.com/rybuilt/humelink/pkg/model"
	"github.com/rybuilt/humelink/pkg/orchestrator"
	"github.com/rybuilt/humelink/pkg/persona"
	"github.com/rybuilt/humelink/pkg/session"
	"github.com/rybuilt/humelink/pkg/tools"
	"github.com/rybuilt/humelink/pkg/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server",
	Long: `Start the HumeLink proxy server. The server exposes the OpenAI-compatible
chat completions endpoint, memory sync endpoints, a WebSocket transport, and
health and metrics endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()
	zl := appLogger.GetZerolog()

	// Session store with optional sqlite archive for evicted sessions.
	storeOpts := []session.Option{session.WithIdleTimeout(cfg.Session.IdleTimeout)}
	if cfg.Session.ArchivePath != "" {
		archiver, err := session.NewSQLiteArchiver(cfg.Session.ArchivePath)
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		defer archiver.Close()
		storeOpts = append(storeOpts, session.WithArchiver(archiver))
	}
	store := session.NewStore(storeOpts...)

	sweeper := session.NewSweeper(store, cfg.Session.SweepInterval)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	defer sweeper.Stop()

	weatherSvc := weather.NewService(
		weather.WithEndpoint(cfg.Weather.Endpoint),
		weather.WithCacheTTL(cfg.Weather.CacheTTL),
		weather.WithHTTPClient(&http.Client{Timeout: cfg.Weather.FetchTimeout}),
	)

	executor, err := tools.NewExecutor(store, weatherSvc)
	if err != nil {
		return fmt.Errorf("failed to create tool executor: %w", err)
	}

	personaOpts := []persona.Option{persona.WithLogger(zl)}
	if cfg.Persona.PromptFile != "" {
		personaOpts = append(personaOpts, persona.WithFile(cfg.Persona.PromptFile))
	}
	prompter, err := persona.NewProvider(personaOpts...)
	if err != nil {
		return fmt.Errorf("failed to create persona provider: %w", err)
	}
	if cfg.Persona.Watch && cfg.Persona.PromptFile != "" {
		if err := prompter.Watch(); err != nil {
			return fmt.Errorf("failed to watch prompt file: %w", err)
		}
	}
	defer prompter.Close()

	backend := model.NewAnthropicBackend(cfg.Anthropic.APIKey)

	orch, err := orchestrator.New(orchestrator.Config{
		Backend:      backend,
		Executor:     executor,
		Persona:      prompter,
		DefaultModel: cfg.Anthropic.Model,
		MaxTokens:    cfg.Anthropic.MaxTokens,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Port:         cfg.Server.Port,
		Host:         cfg.Server.Host,
		DefaultModel: cfg.Anthropic.Model,
	}, orch, store, zl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zl.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	return server.Stop()
}
