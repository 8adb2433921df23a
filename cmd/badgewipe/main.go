package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appcfg "github.com/badgewipe/badgewipe/internal/config"
	"github.com/badgewipe/badgewipe/internal/detection"
	"github.com/badgewipe/badgewipe/internal/inpaint"
	"github.com/badgewipe/badgewipe/internal/models"
	"github.com/badgewipe/badgewipe/internal/onnx"
	"github.com/badgewipe/badgewipe/internal/worker"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		srcPath     = flag.String("src", "", "input image path")
		dstPath     = flag.String("dst", "", "output image path")
		mode        = flag.String("mode", "auto", "operation: detect, auto, or fixed")
		configPath  = flag.String("config", "", "path to YAML config file")
		modelPath   = flag.String("model", "", "local .onnx model file (overrides config)")
		serve       = flag.Bool("serve", false, "run as a JSON-RPC worker over stdin/stdout")
		debug       = flag.Bool("debug", false, "enable debug logging")
		showVersion = flag.Bool("version", false, "print version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("badgewipe %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	// .env feeds the BADGEWIPE_* variables; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	if *debug {
		cfg.Debug = true
	}

	// Logs go to stderr; stdout carries the RPC protocol in serve mode and
	// stays clean in CLI mode.
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	if *serve {
		log.Info().Str("version", Version).Msg("starting worker")
		w := worker.New(cfg)
		if err := w.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("worker terminated")
		}
		return
	}

	if err := runOnce(cfg, *mode, *srcPath, *dstPath); err != nil {
		log.Fatal().Err(err).Msg("operation failed")
	}
}

// runOnce executes a single CLI operation against one image file.
func runOnce(cfg appcfg.Config, mode, srcPath, dstPath string) error {
	if srcPath == "" {
		return fmt.Errorf("missing -src: input image path is required")
	}
	imageBytes, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read input image: %w", err)
	}

	var tmpl *detection.Template
	if cfg.TemplatePath != "" {
		tmpl, err = detection.CachedTemplate(cfg.TemplatePath)
		if err != nil {
			return err
		}
	}

	// The engine goes through the process-wide handle so detection-only runs
	// never touch the runtime and repeated calls share one session.
	pipeline, err := inpaint.NewPipeline(func() (onnx.Engine, error) {
		modelBytes, err := resolveModel(cfg)
		if err != nil {
			return nil, err
		}
		return onnx.Acquire(modelBytes, nil)
	}, tmpl, cfg.Detection, cfg.Inpaint)
	if err != nil {
		return err
	}
	defer onnx.Dispose()
	defer pipeline.Cleanup()

	ctx := context.Background()
	switch mode {
	case "detect":
		result, err := pipeline.DetectBadge(ctx, imageBytes)
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Println("no badge found")
			return nil
		}
		fmt.Printf("badge at (%d,%d) %dx%d, confidence %.3f\n",
			result.X, result.Y, result.Width, result.Height, result.Confidence)
		return nil
	case "auto":
		out, err := pipeline.InpaintAtDetection(ctx, imageBytes, nil)
		if err != nil {
			return err
		}
		return writeOutput(dstPath, out)
	case "fixed":
		out, err := pipeline.InpaintFixedPosition(ctx, imageBytes)
		if err != nil {
			return err
		}
		return writeOutput(dstPath, out)
	default:
		return fmt.Errorf("unknown mode %q, want detect, auto, or fixed", mode)
	}
}

// resolveModel loads model bytes from the local path or the download cache.
func resolveModel(cfg appcfg.Config) ([]byte, error) {
	if cfg.ModelPath != "" {
		return cfg.ModelBytes()
	}
	if cfg.ModelURL == "" {
		return nil, fmt.Errorf("no model source configured: set -model, model_path, or model_url")
	}
	provider := models.NewProvider(cfg.CacheDir)
	return provider.FetchBytes(context.Background(), cfg.ModelURL, func(p models.Progress) {
		if p.Percentage >= 0 {
			log.Info().Int64("loaded", p.Loaded).Int64("total", p.Total).
				Float64("percent", p.Percentage).Msg("downloading model")
		} else {
			log.Info().Int64("loaded", p.Loaded).Msg("downloading model")
		}
	})
}

func writeOutput(dstPath string, data []byte) error {
	if dstPath == "" {
		return fmt.Errorf("missing -dst: output image path is required")
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output image: %w", err)
	}
	log.Info().Str("path", dstPath).Int("bytes", len(data)).Msg("wrote output image")
	return nil
}
