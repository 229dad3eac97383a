package main

import (
	"fmt"

	"github.com/lox/fluxbux/cmd/fluxbux/shared"
	"github.com/lox/fluxbux/internal/game"
	"github.com/lox/fluxbux/internal/render"
	"github.com/lox/fluxbux/internal/store"
)

// InspectCmd prints the status of a saved game without running the
// gateway.
type InspectCmd struct {
	DataFile string `kong:"default='database.json',help='Path to the saved game'"`
	Week     string `kong:"help='Week to inspect, defaults to the current week'"`
	Results  bool   `kong:"help='Show the settlement results instead of the status'"`
}

func (c *InspectCmd) Run() error {
	logger := shared.SetupLogger(false)

	st := store.New(c.DataFile, "", logger)
	snap, err := st.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no saved game at %s", c.DataFile)
	}

	g := game.FromSnapshot(snap, logger)
	week := c.Week
	if week == "" {
		week = g.CurrentPeriod()
	}

	if c.Results {
		summary, err := g.Results(week)
		if err != nil {
			return err
		}
		fmt.Println(render.Results(week, summary))
		return nil
	}

	fmt.Println(render.Status(g.Status(week)))
	return nil
}
