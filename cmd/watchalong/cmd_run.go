package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"watchalong/internal/bot"
	"watchalong/internal/browser"
	"watchalong/internal/chat"
	"watchalong/internal/config"
	"watchalong/internal/logging"
	"watchalong/internal/media"
	"watchalong/internal/search"
	"watchalong/internal/session"
	"watchalong/internal/store"
)

const shutdownTimeout = 10 * time.Second

// runServe wires every component and blocks until a signal arrives or a
// component fails.
func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := browser.NewManager(cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	logging.Boot("browser attached at %s", mgr.ControlURL())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logging.BootWarn("browser shutdown: %v", err)
		}
	}()

	page, err := mgr.NewPage(ctx)
	if err != nil {
		return err
	}

	selectors, watcher, err := selectorSource(cfg)
	if err != nil {
		return err
	}
	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	ctrl := session.New(page, selectors, cfg.SessionOptions())
	defer ctrl.Close()

	var persister search.Persister
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		logging.Boot("search store at %s (%s)", st.Path(), cfg.Store.Driver)
		persister = st
	}
	cache := search.NewCache(persister)
	if n, err := cache.Restore(ctx); err != nil {
		logging.BootWarn("%v", err)
	} else if n > 0 {
		logging.Boot("restored %d searches", n)
	}

	client, err := chat.New(cfg.Discord.Token, cfg.Discord.Status)
	if err != nil {
		return err
	}

	relay := media.NewVoiceRelay()
	var source media.Source
	if len(cfg.Stream.CaptureCommand) > 0 {
		source = media.CommandSource{Command: cfg.Stream.CaptureCommand}
	}

	b, err := bot.New(bot.Deps{
		Session:   ctrl,
		Messenger: client,
		Voice:     client,
		Relay:     relay,
		Source:    source,
		Cache:     cache,
	}, bot.Options{
		Prefix:            cfg.Discord.Prefix,
		PageSize:          cfg.Search.PageSize,
		Retry:             cfg.RetryPolicy(),
		AutoSelectProfile: cfg.Site.AutoSelectProfile,
	})
	if err != nil {
		return err
	}
	b.Watch(ctx)
	client.Handle(b)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx)
	})
	g.Go(func() error {
		creds := session.Credentials{Email: cfg.Account.Email, Password: cfg.Account.Password}
		if err := b.Bootstrap(gctx, creds); err != nil {
			return err
		}
		logging.Boot("session ready")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if relay.Running() {
			if err := relay.Stop(); err != nil {
				logging.StreamWarn("stop relay: %v", err)
			}
		}
		return nil
	})

	logging.Boot("watchalong running with prefix %q", cfg.Discord.Prefix)
	err = g.Wait()
	interrupted := ctx.Err() != nil
	// Cancel before the deferred closes so in-flight retries stop waiting.
	stop()
	b.Close()
	logging.Boot("shutting down")
	if err != nil && !interrupted {
		return fmt.Errorf("watchalong stopped: %w", err)
	}
	return nil
}

// selectorSource returns a hot-reloading source when a selectors file is
// configured, otherwise the config's selectors.
func selectorSource(c *config.Config) (session.SelectorSource, *config.SelectorWatcher, error) {
	if c.SelectorsFile == "" {
		return session.StaticSelectors(c.Selectors), nil, nil
	}
	w, err := config.NewSelectorWatcher(c.SelectorsFile, c.Selectors)
	if err != nil {
		return nil, nil, err
	}
	return w, w, nil
}
