// Command vmarket runs the sports prediction market backend: the admin and
// market API, the cron scheduler, or a one-shot fetch/create/resolve/claim
// job, depending on -mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/app"
	"github.com/vmarket/vmarket/internal/config"
	"github.com/vmarket/vmarket/internal/domain"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (server, scheduler, full, fetch, create, resolve, claim)")
	league := flag.String("league", "", "one-shot jobs: limit to this league (NBA, NFL, EPL, CL)")
	date := flag.String("date", "", "one-shot jobs: local date YYYY-MM-DD (default today)")
	room := flag.String("room", "", "one-shot jobs: limit to this room")
	market := flag.Int64("market", 0, "claim: limit to this market id")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	args, err := parseJobArgs(*league, *date, *room, *market)
	if err != nil {
		logger.Error("invalid flags", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger.Info("vmarket starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, args, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("vmarket stopped")
}

func parseJobArgs(league, date, room string, market int64) (app.JobArgs, error) {
	var args app.JobArgs
	if league != "" {
		l, err := domain.ParseLeague(league)
		if err != nil {
			return args, err
		}
		args.League = l
	}
	if date != "" {
		d, err := civil.ParseDate(date)
		if err != nil {
			return args, fmt.Errorf("-date: %w", err)
		}
		args.Date = d
	}
	if market < 0 {
		return args, fmt.Errorf("-market must be >= 0, got %d", market)
	}
	args.Room = domain.Room(room)
	args.MarketID = market
	return args, nil
}
