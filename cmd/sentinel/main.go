// Command sentinel runs the adaptive threat-detection engine: an HTTP service
// in serve mode, or a one-shot detection from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/luminasec/sentinel/pkg/archive"
	"github.com/luminasec/sentinel/pkg/classify"
	"github.com/luminasec/sentinel/pkg/config"
	"github.com/luminasec/sentinel/pkg/engine"
	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/logging"
	"github.com/luminasec/sentinel/pkg/monitor"
	"github.com/luminasec/sentinel/pkg/policy"
	"github.com/luminasec/sentinel/pkg/screen"
	"github.com/luminasec/sentinel/pkg/store"
)

const Version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		configPath := os.Getenv("SENTINEL_CONFIG")
		if len(os.Args) > 2 {
			configPath = os.Args[2]
		}
		if err := runServe(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
			os.Exit(1)
		}
	case "detect":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: sentinel detect <text>")
			os.Exit(1)
		}
		if err := runDetect(strings.Join(os.Args[2:], " ")); err != nil {
			fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("sentinel v%s\n", Version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("sentinel v%s - adaptive threat detection engine\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  sentinel serve [config.yaml]  Start the detection service")
	fmt.Println("  sentinel detect <text>        One-shot detection, JSON to stdout")
	fmt.Println("  sentinel version              Show version")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  SENTINEL_CONFIG       Config file path for serve mode")
	fmt.Println("  SENTINEL_SERVER_ADDR  Override server.addr, and so on for any key")
}

// buildEngine wires the pipeline from config. The returned cleanup closes
// persisters and the archive.
func buildEngine(ctx context.Context, cfg config.Config, mon engine.TierSource) (*engine.Engine, *store.Store, store.Persister, func(), error) {
	registry := families.Get()

	var packSeeds []families.PackSeed
	if cfg.PatternPack != "" {
		pack, err := families.LoadPack(cfg.PatternPack)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("pattern pack: %w", err)
		}
		if err := registry.Merge(pack); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("pattern pack: %w", err)
		}
		packSeeds = pack.Seeds
		logging.Info().Str("path", cfg.PatternPack).Int("patterns", len(pack.Patterns)).Msg("pattern pack loaded")
	}

	screener := screen.New(cfg.Screening, registry)
	policyEngine := policy.New(policy.DefaultConfig())

	fallback := classify.NewRuleClassifier(cfg.Deep, registry)
	var primary classify.Classifier
	embedder := classify.NewBreakerEmbedder(
		classify.NewOllamaEmbedder(cfg.Deep.EmbedderURL, cfg.Deep.EmbedderModel, 30*time.Second))
	semantic, err := classify.NewSemanticClassifier(cfg.Deep, embedder)
	if err == nil {
		loadCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		if lerr := semantic.LoadExemplars(loadCtx, packSeeds); lerr != nil {
			logging.Warn().Err(lerr).Msg("semantic classifier disabled, rule fallback only")
		} else {
			primary = semantic
			logging.Info().Str("embedder", cfg.Deep.EmbedderURL).Msg("semantic classifier ready")
		}
		cancel()
	}
	classifier := classify.NewTiered(primary, fallback)

	patterns := store.New(cfg.Store)

	var persister store.Persister = store.NopPersister{}
	switch cfg.Persist.Backend {
	case config.PersistBadger:
		p, err := store.NewBadgerPersister(cfg.Persist.BadgerDir)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		persister = p
	case config.PersistRedis:
		p, err := store.NewRedisPersister(ctx, cfg.Persist.RedisAddr, cfg.Persist.RedisPassword, cfg.Persist.RedisDB)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		persister = p
	}
	if entries, err := persister.Load(ctx); err != nil {
		logging.Warn().Err(err).Msg("pattern restore failed, starting empty")
	} else if len(entries) > 0 {
		patterns.Restore(entries)
		logging.Info().Int("entries", len(entries)).Msg("pattern store restored")
	}

	var arch engine.Archiver
	var closeArchive func()
	if cfg.Archive.Enabled {
		a, err := archive.New(ctx, cfg.Archive.DSN, cfg.Archive.MaxInflight)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		arch = a
		closeArchive = a.Close
	}

	eng, err := engine.New(engine.Options{
		Policy:     policyEngine,
		Screener:   screener,
		Classifier: classifier,
		Monitor:    mon,
		Store:      patterns,
		Ladder:     cfg.Ladder,
		Archive:    arch,
		CacheSize:  cfg.VerdictCacheSize,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		if err := persister.Close(); err != nil {
			logging.Error().Err(err).Msg("persister close failed")
		}
		if closeArchive != nil {
			closeArchive()
		}
	}
	return eng, patterns, persister, cleanup, nil
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon := monitor.New(cfg.Monitor, monitor.NewSystemSampler(cfg.Monitor.ThermalHighCelsius))

	eng, patterns, persister, cleanup, err := buildEngine(ctx, cfg, mon)
	if err != nil {
		return err
	}
	defer cleanup()

	supervisor := suture.NewSimple("sentinel")
	supervisor.Add(mon)
	supervisor.Add(store.NewJanitor(patterns, persister, cfg.Persist.SweepInterval))
	supervisorDone := supervisor.ServeBackground(ctx)

	app := newApp(cfg, eng, mon)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	logging.Info().Str("addr", cfg.Server.Addr).Str("version", Version).Msg("sentinel listening")
	if err := app.Listen(cfg.Server.Addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	<-supervisorDone
	return nil
}

type detectRequest struct {
	Text    string              `json:"text"`
	URLs    []string            `json:"urls,omitempty"`
	Amount  *float64            `json:"amount,omitempty"`
	Sender  string              `json:"sender,omitempty"`
	Context string              `json:"context"`
	Profile feature.UserProfile `json:"profile"`
	// FastOnly skips the deep tier for latency-bound callers.
	FastOnly bool `json:"fast_only,omitempty"`
}

type feedbackRequest struct {
	VerdictID      string `json:"verdict_id"`
	AssertedThreat bool   `json:"asserted_threat"`
}

func newApp(cfg config.Config, eng *engine.Engine, mon *monitor.Monitor) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "sentinel",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	app.Get("/health", func(c fiber.Ctx) error {
		snap := mon.LastSnapshot()
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": Version,
			"tier":    string(mon.Tier()),
			"cpu":     snap.CPUFraction,
			"memory":  snap.MemoryFraction,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/v1/detect", func(c fiber.Ctx) error {
		var req detectRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		in := feature.FeatureInput{
			Text:      req.Text,
			URLs:      req.URLs,
			Amount:    req.Amount,
			Sender:    req.Sender,
			Timestamp: time.Now(),
			Context:   feature.ContextTag(req.Context),
		}
		verdict, err := eng.DetectWithOptions(c.Context(), in, req.Profile, engine.DetectOptions{FastOnly: req.FastOnly})
		if err != nil {
			if isInvalid(err) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "detection failed"})
		}
		return c.JSON(verdict)
	})

	app.Post("/v1/feedback", func(c fiber.Ctx) error {
		var req feedbackRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.VerdictID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "verdict_id is required"})
		}
		if err := eng.ProvideFeedback(c.Context(), req.VerdictID, req.AssertedThreat); err != nil {
			if isUnknownVerdict(err) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "feedback failed"})
		}
		return c.JSON(fiber.Map{"status": "recorded"})
	})

	app.Get("/v1/metrics", func(c fiber.Ctx) error {
		return c.JSON(eng.Metrics(c.Context()))
	})

	return app
}

func runDetect(text string) error {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Persist.Backend = config.PersistNone
	logging.Init(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// One-shot mode runs unsupervised: full tier, rule classifier only.
	mon := monitor.New(cfg.Monitor, monitor.NewSystemSampler(0))
	eng, _, _, cleanup, err := buildEngine(ctx, cfg, mon)
	if err != nil {
		return err
	}
	defer cleanup()

	in := feature.FeatureInput{
		Text:      text,
		Timestamp: time.Now(),
		Context:   feature.ContextConversation,
	}
	verdict, err := eng.Detect(ctx, in, feature.UserProfile{})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func isInvalid(err error) bool {
	return errors.Is(err, feature.ErrInputInvalid)
}

func isUnknownVerdict(err error) bool {
	return errors.Is(err, feature.ErrUnknownVerdict)
}
