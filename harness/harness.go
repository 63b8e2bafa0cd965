// Package harness replays structured test cases against a streaming
// sax.Engine, instrumenting every callback to surface engine bugs as
// hard failures: each string or buffer argument is fully read the
// moment it is delivered, content-model trees are shape-checked and
// released exactly once, allocation failures are injected at chosen
// indices, and every suspension is driven to completion.
//
// The harness performs no parsing of its own. On success it produces no
// output; defects in the engine under test surface as panics (or as
// faults under race/memory instrumentation), which is the detection
// signal a fuzzing driver watches for.
package harness

import (
	"slices"

	"github.com/saxlab/saxfuzz.go/sax"
	"github.com/saxlab/saxfuzz.go/testcase"
)

const (
	// nsSeparator splits namespace URI from local name in qualified
	// names reported by the engine.
	nsSeparator = '|'

	// hashSalt keeps the engine's hash tables deterministic across
	// runs so that failures reproduce byte-for-byte.
	hashSalt = 0x41414141

	// maxEntityParses bounds nested external-entity parses per test
	// case. The pending buffer can itself contain entity references, so
	// without a cap a self-referential buffer would recurse until the
	// stack runs out.
	maxEntityParses = 64
)

// Harness owns all per-test-case state: the allocation counter and
// fail list, the pending external-entity buffer, the chosen encoding
// label, and the touch-verifier sink. A Harness is single-threaded and
// processes one test case at a time; Run fully resets the mutable state
// on entry, so instances may be reused across test cases.
type Harness struct {
	engine sax.Engine

	// encoding is the label for the current test case, reused for
	// resets and nested external-entity parsers.
	encoding string

	allocCount    int
	failAllocs    []int
	pendingEntity []byte
	entityBudget  int

	// sink accumulates every byte the touch verifier reads. Reads into
	// it cannot be elided, which is what turns a dangling or mis-sized
	// callback argument into an immediate fault under instrumentation.
	sink uint64
}

// New returns a Harness that drives parsers constructed by engine.
func New(engine sax.Engine) *Harness {
	return &Harness{engine: engine}
}

// Sink exposes the touch accumulator. Its value is meaningless; tests
// use it to confirm the verifier actually read callback arguments.
func (h *Harness) Sink() uint64 { return h.sink }

// Run replays one test case. A test case with no actions is a no-op:
// no parser is constructed. Parse errors on non-final chunks are
// recovered with a forced reset and replay continues; injected
// allocation failures flow through the engine as ordinary out-of-memory
// errors. The parser is freed exactly once on every path.
func (h *Harness) Run(tc *testcase.Testcase) {
	if tc == nil || len(tc.Actions) == 0 {
		return
	}

	h.pendingEntity = nil
	h.entityBudget = maxEntityParses
	h.allocCount = 0
	h.failAllocs = slices.Clone(tc.FailAllocations)
	h.encoding = tc.Encoding.Label()

	p := h.engine.NewParser(h.encoding, h.allocator(), nsSeparator)
	if p == nil {
		// The very first allocation was forced to fail, so there is no
		// parser to drive. (The C ancestor of this harness would march
		// on into the library with a null parser; a nil Go interface
		// cannot be called, so construction failure ends the case.)
		return
	}
	defer p.Free()
	h.initializeParser(p)

	for _, act := range tc.Actions {
		switch act.Kind {
		case testcase.ActionChunk:
			if h.parse(p, act.Data, false) == sax.StatusError {
				// Force a reset after a parse error. Callbacks are
				// deliberately NOT re-registered here: the error-path
				// reset differs from an explicit Reset action so that
				// both post-reset modes get exercised.
				p.Reset(h.encoding)
			}

		case testcase.ActionLastChunk:
			h.parse(p, act.Data, true)
			p.Reset(h.encoding)
			h.initializeParser(p)

		case testcase.ActionReset:
			p.Reset(h.encoding)
			h.initializeParser(p)

		case testcase.ActionExternalEntity:
			h.pendingEntity = act.Data
		}
	}
}

// parse feeds one chunk and transparently drives any cooperative
// suspension to completion, so the caller always sees a terminal
// status. The loop has no iteration cap; termination relies on the
// engine making progress on every Resume, which the contract requires.
func (h *Harness) parse(p sax.Parser, data []byte, final bool) sax.Status {
	status := p.Parse(data, final)
	for status == sax.StatusSuspended {
		status = p.Resume()
	}
	return status
}

// initializeParser applies the fixed configuration and installs the
// full callback table. Called after construction and after every
// explicit reset, since resets clear registrations.
func (h *Harness) initializeParser(p sax.Parser) {
	p.SetHashSalt(hashSalt)
	p.SetParamEntityParsing(sax.ParamEntityParsingAlways)
	p.SetHandlers(h.handlers(p))
}

// allocator builds the injected allocation triple. When the current
// allocation index is on the fail list the hook reports failure without
// counting it or allocating, so the corpus can name exactly which Nth
// allocation dies. Free passes through.
func (h *Harness) allocator() *sax.Allocator {
	return &sax.Allocator{
		Alloc: func(size int) []byte {
			if slices.Contains(h.failAllocs, h.allocCount) {
				return nil
			}
			h.allocCount++
			return make([]byte, size)
		},
		Realloc: func(buf []byte, size int) []byte {
			if slices.Contains(h.failAllocs, h.allocCount) {
				return nil
			}
			h.allocCount++
			if size <= cap(buf) {
				return buf[:size]
			}
			grown := make([]byte, size)
			copy(grown, buf)
			return grown
		},
		Free: func(buf []byte) {},
	}
}
