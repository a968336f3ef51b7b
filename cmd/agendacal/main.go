package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"agendacal/internal/app"
	"agendacal/internal/config"
	appLog "agendacal/internal/log"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("agendacal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.Refresh,
		"display_style", conf.DisplayStyle,
		"default_mode", conf.DefaultMode,
		"max_days_to_show", conf.MaxDaysToShow,
		"source_count", len(conf.Sources),
		"once", flags.once,
	)

	a, err := app.New(conf)
	if err != nil {
		appLog.Error("failed to initialize", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		res, err := a.RunOnce(ctx)
		if err != nil {
			appLog.Error("pipeline run failed", err)
			os.Exit(1)
		}
		appLog.Info("pipeline run complete",
			"mode", res.Mode.String(),
			"day_count", len(res.Buckets),
			"hidden", res.Hidden,
		)
		return
	}

	if err := a.Run(ctx); err != nil {
		appLog.Error("service exited with error", err)
		os.Exit(1)
	}
	appLog.Info("agendacal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/agendacal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one pipeline pass, log the result and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
