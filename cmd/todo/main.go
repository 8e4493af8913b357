package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/cli"
	"github.com/idilsaglam/cloudtodo/internal/config"
	"github.com/idilsaglam/cloudtodo/internal/logging"
	"github.com/idilsaglam/cloudtodo/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	configPath := flag.String("config", "", "path to a YAML config file")
	theme := flag.String("theme", "", "color theme: classic, neon or mono")
	locale := flag.String("locale", "", "display language, e.g. en or fr")
	flag.Parse()

	os.Exit(run(*configPath, *theme, *locale, flag.Args()))
}

func run(configPath, theme, locale string, args []string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	if theme != "" {
		cfg.Theme = theme
	}
	if locale != "" {
		cfg.Locale = locale
	}
	ui.SetTheme(cfg.Theme)

	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := cli.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		ui.Fail(os.Stderr, err.Error())
		return 1
	}

	code := r.Run(ctx, args)
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	return code
}
