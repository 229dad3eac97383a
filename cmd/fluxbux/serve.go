package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/fluxbux/cmd/fluxbux/shared"
	"github.com/lox/fluxbux/internal/game"
	"github.com/lox/fluxbux/internal/server"
	"github.com/lox/fluxbux/internal/store"
)

// bootstrapInterval is how often the current week is recomputed and a
// snapshot enqueued.
const bootstrapInterval = 15 * time.Second

// ServeCmd runs the gateway, the persistence loop and the week bootstrap.
type ServeCmd struct {
	Config string `kong:"default='fluxbux.hcl',help='Path to HCL config file'"`
	Addr   string `kong:"help='Listen address override, e.g. :8080'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	addr := cfg.ListenAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	st := store.New(cfg.Game.DataFile, cfg.Game.BackupDir, logger,
		store.WithInterval(time.Duration(cfg.Game.SnapshotSeconds)*time.Second))

	snap, err := st.Load()
	if err != nil {
		return err
	}
	g := game.FromSnapshot(snap, logger, game.WithClaimBonus(cfg.Game.ClaimBonus))
	if snap == nil {
		logger.Info("started a new game")
	} else {
		logger.Info("loaded game", "participants", len(snap.Users), "weeks", len(snap.Weeks))
	}

	handler := server.NewHandler(g, cfg.Game.Operators, logger)
	srv := server.NewServer(addr, handler, logger)

	ctx := shared.SetupSignalHandler(logger)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Start()
	})
	group.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})
	group.Go(func() error {
		return st.Run(ctx)
	})
	group.Go(func() error {
		return runBootstrap(ctx, g, st)
	})

	logger.Info("fluxbux gateway running", "addr", addr,
		"data_file", cfg.Game.DataFile, "operators", len(cfg.Game.Operators))

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runBootstrap keeps the current week's round alive and feeds the store
// with fresh snapshots.
func runBootstrap(ctx context.Context, g *game.Game, st *store.Store) error {
	ticker := time.NewTicker(bootstrapInterval)
	defer ticker.Stop()

	g.Bootstrap(g.CurrentPeriod())
	st.Enqueue(g.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Bootstrap(g.CurrentPeriod())
			st.Enqueue(g.Snapshot())
		}
	}
}
