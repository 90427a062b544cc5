package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calwidget/internal/config"
	appLog "calwidget/internal/log"
	"calwidget/internal/notify"
	"calwidget/internal/remind"
	"calwidget/internal/seed"
	"calwidget/internal/store"
	"calwidget/internal/web"
)

// flagConfig holds CLI flag values; flags override the config file.
type flagConfig struct {
	configPath string
	listen     string
	seedURL    string
	debug      bool
}

func main() {
	appLog.Info("calwidget starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.seedURL != "" {
		conf.SeedURL = flags.seedURL
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"data_dir", conf.DataDir,
		"seed_url", conf.SeedURL,
		"popup_seconds", conf.PopupSeconds,
		"watch_state", conf.WatchState,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st := store.Open(store.OpenKV(conf.StatePath()))

	presenter := notify.New(notify.FileSound(conf.SoundPath), conf.PopupTTL())
	scheduler := remind.New(presenter.Notify, conf.Location())
	defer scheduler.Stop()

	// Every store change rebuilds the reminder timer set from scratch.
	st.OnChange(func() {
		scheduler.Rearm(st.Snapshot())
	})
	scheduler.Rearm(st.Snapshot())

	// Seed merge runs in the background so the API is up immediately;
	// a failed fetch degrades to whatever was persisted locally.
	if conf.SeedURL != "" {
		go func() {
			entries, err := seed.NewFetcher(conf.SeedCacheDir()).Fetch(ctx, conf.SeedURL)
			if err != nil {
				appLog.Error("seed fetch failed, continuing without seed", err, "url", conf.SeedURL)
				return
			}
			st.MergeSeed(entries)
			appLog.Info("seed merged", "entries", len(entries))
		}()
	}

	if conf.WatchState {
		go func() {
			if err := st.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("state watch stopped", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(st, presenter, conf.Location()).Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
	}()

	appLog.Info("serving", "listen", "http://"+conf.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}

	appLog.Info("calwidget exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.seedURL, "seed-url", "", "Seed events URL (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
