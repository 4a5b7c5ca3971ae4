package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/twin/internal/chat"
	"github.com/efebarandurmaz/twin/internal/config"
	"github.com/efebarandurmaz/twin/internal/llm"
	"github.com/efebarandurmaz/twin/internal/llmutil"
	"github.com/efebarandurmaz/twin/internal/observability"
	"github.com/efebarandurmaz/twin/internal/persona"
	"github.com/efebarandurmaz/twin/internal/server"
	"github.com/efebarandurmaz/twin/web"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	var opts config.Options

	rootCmd := &cobra.Command{
		Use:           "twin",
		Short:         "Digital twin chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.File, "config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	preambleCmd := &cobra.Command{
		Use:   "preamble",
		Short: "Print the system preamble built from the character file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreamble(cmd.OutOrStdout(), opts)
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message to the configured provider and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), opts, strings.Join(args, " "))
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List the supported providers and show which one is selected",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProviders(cmd.OutOrStdout(), opts)
		},
	}

	rootCmd.AddCommand(serveCmd, preambleCmd, askCmd, providersCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	preamble persona.Preamble
	selected llm.ProviderConfig
}

func bootstrap(opts config.Options, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(logOut, observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	slog.SetDefault(logger)

	for _, warning := range cfg.Validate() {
		logger.Warn(warning)
	}

	p, err := persona.Load(cfg.Character)
	if err != nil {
		return nil, err
	}
	preamble := persona.NewPreamble(p)

	selected := llm.Select(cfg.Credentials())
	selected.Instructions = preamble.String()

	return &app{
		cfg:      cfg,
		logger:   logger,
		preamble: preamble,
		selected: selected,
	}, nil
}

func (a *app) relay(metrics *observability.ChatMetrics) (*chat.Relay, error) {
	provider, err := llmutil.NewProvider(a.selected)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	provider = llm.WithRateLimit(provider, llm.RateLimitConfig{
		RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute,
		BurstSize:         a.cfg.RateLimit.Burst,
	})
	opts := []chat.Option{chat.WithLogger(a.logger)}
	if metrics != nil {
		opts = append(opts, chat.WithMetrics(metrics))
	}
	return chat.NewRelay(provider, a.preamble, opts...), nil
}

func runServe(ctx context.Context, opts config.Options) error {
	a, err := bootstrap(opts, os.Stderr)
	if err != nil {
		return err
	}

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.ServiceVersion = version
	tracingCfg.OTLPEndpoint = a.cfg.Telemetry.OTLPEndpoint
	tracingCfg.SampleRate = a.cfg.Telemetry.SampleRate
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	metrics := observability.NewChatMetrics()
	relay, err := a.relay(metrics)
	if err != nil {
		return err
	}

	static := web.Static()
	if a.cfg.PublicDir != "" {
		static = os.DirFS(a.cfg.PublicDir)
	}

	health := server.NewHealthServer(version)
	health.RegisterCheck("provider", server.ProviderHealthChecker(relay.ProviderName(), a.selected.Kind.String(), relay.Configured()))
	health.RegisterCheck("persona", server.PersonaHealthChecker(a.cfg.Character, len(a.preamble.String())))

	srv := server.New(&server.Config{
		Addr:    a.cfg.Addr(),
		Version: version,
		Static:  static,
		Logger:  a.logger,
	}, relay, health, metrics)

	shutdownCfg := server.DefaultShutdownConfig()
	shutdownCfg.Logger = a.logger
	shutdown := server.NewShutdownHandler(shutdownCfg)
	shutdown.AddHook(server.HTTPServerShutdownHook("chat-server", srv.Stop))
	shutdown.AddHook(server.TracingShutdownHook(tp.Shutdown))
	shutdown.AddHook(server.MetricsShutdownHook(func(ctx context.Context) error {
		a.logger.Info("Final chat metrics",
			"requests", metrics.ChatRequestsTotal.Value(),
			"rejected", metrics.ChatRejectedTotal.Value(),
			"errors", metrics.ChatErrorsTotal.Value(),
			"upstream_calls", metrics.LLMRequestDuration.Count(),
		)
		return nil
	}))
	shutdown.Start()

	go func() {
		<-shutdown.ShutdownCh()
		health.SetReady(false)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	health.SetReady(true)

	select {
	case err := <-errCh:
		// Start returns nil only once the shutdown hooks have closed it.
		if err != nil {
			shutdown.Shutdown()
			shutdown.Wait()
			return err
		}
		return shutdown.Wait()
	case <-shutdown.Done():
		return shutdown.Wait()
	}
}

func runPreamble(out io.Writer, opts config.Options) error {
	a, err := bootstrap(opts, os.Stderr)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, a.preamble.String())
	return err
}

func runAsk(ctx context.Context, out io.Writer, opts config.Options, message string) error {
	a, err := bootstrap(opts, os.Stderr)
	if err != nil {
		return err
	}
	relay, err := a.relay(nil)
	if err != nil {
		return err
	}

	start := time.Now()
	reply, err := relay.Reply(ctx, message)
	if err != nil {
		return err
	}
	a.logger.Debug("Reply received", "provider", relay.ProviderName(), "duration", time.Since(start))
	_, err = fmt.Fprintln(out, reply)
	return err
}

func runProviders(out io.Writer, opts config.Options) error {
	a, err := bootstrap(opts, io.Discard)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(llm.KnownProviders))
	for name := range llm.KnownProviders {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "Available LLM providers (GROQ_API_KEY takes precedence):")
	fmt.Fprintln(out)
	for _, name := range names {
		fmt.Fprintf(out, "  %-8s %s\n", name, llm.KnownProviders[name])
	}
	fmt.Fprintln(out)
	if a.selected.Kind == llm.KindNone {
		fmt.Fprintln(out, "Selected: none (set GROQ_API_KEY or OPENAI_API_KEY)")
		return nil
	}
	fmt.Fprintf(out, "Selected: %s (%s, model %s)\n", a.selected.Provider, a.selected.Kind, a.selected.Model)
	return nil
}
