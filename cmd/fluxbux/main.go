package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the fluxbux gateway"`
	Inspect InspectCmd       `cmd:"" help:"Print the state of a saved game"`
	Client  ClientCmd        `cmd:"" help:"Send a command to a running gateway"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fluxbux"),
		kong.Description("Weekly pari-mutuel fluxbux betting ledger"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
