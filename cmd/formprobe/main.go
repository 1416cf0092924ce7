package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/formprobe/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "formprobe",
	Short: "Browser checks for the softpro.ua consultation and newsletter forms",
	Long: "formprobe drives the consultation form and the newsletter field in a real browser.\n" +
		"Requests to the site API are intercepted and answered locally unless RUN_PROD_REAL=true.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(c.LogLevel, c.LogFile); err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}
	cfg = c
	slog.Debug("formprobe config loaded",
		"base_url", cfg.BaseURL,
		"run_prod_real", cfg.RunProdReal,
		"api_pattern", cfg.APIPattern,
		"browser_mode", cfg.BrowserMode,
		"headless", cfg.Headless,
		"artifacts_dir", cfg.ArtifactsDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)
	return nil
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
