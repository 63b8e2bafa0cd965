package main

import (
	"github.com/alecthomas/kong"

	"github.com/saxlab/saxfuzz.go/saxreplay/core"
)

// CLI defines the saxreplay command-line interface.
//
// saxreplay feeds corpus files through the harness against the stub
// engine, for triaging fuzzer findings and inspecting how a test case
// replays. Three input formats are supported, chosen by extension in
// auto mode: ".cbor" corpus files, ".toml" hand-written seeds, and
// anything else as raw fuzzer bytes.
//
// A harness detection (invariant violation, engine misuse) surfaces as
// a panic with a stack trace, exactly as it would under the fuzzer.
type CLI struct {
	Paths   []string `arg:"" type:"existingfile" help:"Corpus files to replay, in order."`
	Format  string   `short:"f" enum:"auto,cbor,toml,raw" default:"auto" help:"Input format (auto: by file extension)."`
	Verbose bool     `short:"v" help:"Enable verbose diagnostics"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("saxreplay"),
		kong.Description("Replay structured fuzz test cases through the SAX harness."),
	)

	err := core.Run(core.Options{
		Paths:   cli.Paths,
		Format:  cli.Format,
		Verbose: cli.Verbose,
	})
	ctx.FatalIfErrorf(err)
}
