package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/saxlab/saxfuzz.go/harness"
	"github.com/saxlab/saxfuzz.go/saxtest"
	"github.com/saxlab/saxfuzz.go/testcase"
)

// Options configures a replay run.
type Options struct {
	Paths []string
	// Format is "auto", "cbor", "toml" or "raw".
	Format  string
	Verbose bool
}

// Run replays each corpus file through a fresh-state harness over the
// stub engine, in order. After every file it checks the engine's leak
// accounting; a leaked content model or parser is a replay failure
// even when the harness itself did not trip.
func Run(opts Options) error {
	logger := zap.NewNop()
	if opts.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	defer logger.Sync()

	eng := saxtest.NewEngine()
	h := harness.New(eng)

	for _, path := range opts.Paths {
		tc, err := load(path, opts.Format)
		if err != nil {
			return err
		}
		logger.Info("replaying",
			zap.String("file", path),
			zap.String("encoding", tc.Encoding.Label()),
			zap.Int("actions", len(tc.Actions)),
			zap.Ints("fail_allocations", tc.FailAllocations))

		start := time.Now()
		h.Run(tc)

		logger.Info("replayed",
			zap.String("file", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("events", len(eng.Events())),
			zap.Int("suspensions", eng.Suspensions()))

		if n := eng.OutstandingModels(); n != 0 {
			return fmt.Errorf("replay %q: %d content models leaked", path, n)
		}
		if n := eng.LiveParsers(); n != 0 {
			return fmt.Errorf("replay %q: %d parsers leaked", path, n)
		}
		eng.ClearEvents()
	}
	return nil
}

func load(path, format string) (*testcase.Testcase, error) {
	if format == "auto" {
		switch filepath.Ext(path) {
		case ".toml":
			format = "toml"
		case ".cbor":
			format = "cbor"
		default:
			format = "raw"
		}
	}

	switch format {
	case "toml":
		return testcase.DecodeTOMLFile(path)
	case "cbor":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return testcase.Decode(data)
	case "raw":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return testcase.FromFuzzBytes(data), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
