package main

import (
	"github.com/alecthomas/kong"

	"github.com/biblecomputer/bible/cmd/biblebuild/commands"
	"github.com/biblecomputer/bible/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("biblebuild"),
		kong.Description("Build orchestrator for the Bible web client: wasm compilation, style generation, asset packaging, and the development server."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	err := ctx.Run(&commands.Global{})
	ctx.FatalIfErrorf(err)
}
