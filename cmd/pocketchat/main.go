package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"PocketChat/internal/backend"
	"PocketChat/internal/cache"
	"PocketChat/internal/chatbot"
	"PocketChat/internal/config"
	"PocketChat/internal/ledger"
	"PocketChat/internal/telemetry"
	"PocketChat/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// API keys may live in a local .env file instead of the shell.
	godotenv.Load()

	configPath := flag.String("config", "", "Path to a TOML config file")
	backendName := flag.String("backend", "",
		fmt.Sprintf("LLM backend (%s)", strings.Join(backend.Names(), "|")))
	model := flag.String("model", "", "Model override for the selected backend")
	addr := flag.String("addr", "", "Web UI listen address")
	system := flag.String("system", "", "Default system instruction")
	ollamaModel := flag.String("ollama-model", "", "Ollama model specification (format: model:version)")
	interactive := flag.Bool("interactive", false, "Run the terminal chat loop instead of the web UI")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags the user actually set override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendName
		case "model":
			cfg.Model = *model
		case "addr":
			cfg.Addr = *addr
		case "system":
			cfg.SystemInstruction = *system
		case "ollama-model":
			cfg.OllamaModel = *ollamaModel
		case "interactive":
			cfg.Interactive = *interactive
		case "debug":
			cfg.Debug = *debug
		}
	})
	if cfg.Backend == backend.NameOllama && cfg.Model == "" {
		cfg.Model = cfg.OllamaModel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := buildCache(cfg)
	if err != nil {
		return err
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}

	bot, err := chatbot.New(cfg,
		chatbot.WithLogger(logger),
		chatbot.WithTelemetry(tracer, meter),
		chatbot.WithCache(store),
		chatbot.WithLedger(led),
	)
	if err != nil {
		return err
	}
	defer bot.Close()

	if cfg.Interactive {
		return bot.Run(ctx)
	}

	srv := web.NewServer(cfg.Addr, bot, logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down server", "error", err)
		}
	}()

	fmt.Printf("PocketChat web UI on http://localhost%s (backend: %s)\n", displayAddr(cfg.Addr), cfg.Backend)
	return srv.Start()
}

// buildCache constructs the configured response cache, nil when off.
func buildCache(cfg config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheMemory:
		return cache.NewMemory(), nil
	case config.CacheRedis:
		return cache.NewRedis(cache.RedisOptions{
			URL: cfg.RedisURL,
			TTL: cfg.CacheTTLDuration(),
		})
	default:
		return nil, nil
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}
