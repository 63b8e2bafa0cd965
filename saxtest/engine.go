// Package saxtest provides a stub sax.Engine for exercising harness and
// driver code without a real parser library. The scanner inside is
// deliberately small and non-conformant: it recognizes just enough
// markup to light up every callback slot and every protocol path a
// driver cares about: chunked feeding with partial tokens held across
// calls, suspension via Stop with later Resume, reset semantics that
// drop handler registrations, allocator-routed memory so injected
// failures surface as ordinary out-of-memory errors, content models for
// <!ELEMENT> declarations, and nested parsers for external entities.
//
// It is test tooling. Do not mistake it for an XML parser.
package saxtest

import (
	"errors"
	"fmt"

	"github.com/saxlab/saxfuzz.go/sax"
)

var (
	// ErrNoMemory is the parse error after the allocator refuses an
	// allocation.
	ErrNoMemory = errors.New("saxtest: out of memory")

	// ErrAborted is the parse error after Stop(false).
	ErrAborted = errors.New("saxtest: parsing aborted")

	// ErrSuspended is returned by Parse while the parser is suspended.
	ErrSuspended = errors.New("saxtest: parser suspended")

	// ErrFinished is returned by Parse after a final chunk completed.
	ErrFinished = errors.New("saxtest: parsing finished")

	// ErrUnknownEncoding is the parse error for an unrecognized
	// encoding label that no handler resolved.
	ErrUnknownEncoding = errors.New("saxtest: unknown encoding")
)

// knownEncodings are the labels the stub accepts without consulting
// Handlers.UnknownEncoding. "" means auto-detect.
var knownEncodings = map[string]bool{
	"":           true,
	"UTF-8":      true,
	"UTF-16":     true,
	"ISO-8859-1": true,
	"US-ASCII":   true,
}

// Engine implements sax.Engine and keeps cross-parser bookkeeping so
// tests can assert on engine/driver interaction: a log of delivered
// callbacks and protocol calls, live-parser and live-content-model
// accounting, and a suspension counter.
type Engine struct {
	events      []string
	liveParsers int
	liveModels  map[*sax.Content]bool
	suspensions int
}

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{liveModels: make(map[*sax.Content]bool)}
}

// Events returns the log of delivered callbacks and protocol calls, in
// order. Only callbacks with a registered handler are logged, so a
// parser running without handlers leaves no trace here.
func (e *Engine) Events() []string { return e.events }

// ClearEvents drops the event log.
func (e *Engine) ClearEvents() { e.events = nil }

// LiveParsers reports parsers constructed and not yet freed.
func (e *Engine) LiveParsers() int { return e.liveParsers }

// OutstandingModels reports content models delivered to ElementDecl and
// not yet released.
func (e *Engine) OutstandingModels() int { return len(e.liveModels) }

// Suspensions reports how many times a handler suspended a parse.
func (e *Engine) Suspensions() int { return e.suspensions }

func (e *Engine) log(format string, args ...any) {
	e.events = append(e.events, fmt.Sprintf(format, args...))
}

// NewParser implements sax.Engine. It returns nil when the allocator
// refuses the construction allocation.
func (e *Engine) NewParser(encoding string, mem *sax.Allocator, nsSep byte) sax.Parser {
	if mem == nil || mem.Alloc == nil || mem.Realloc == nil || mem.Free == nil {
		panic("saxtest: incomplete allocator")
	}
	scratch := mem.Alloc(parserScratchSize)
	if scratch == nil {
		return nil
	}
	mem.Free(scratch)

	e.liveParsers++
	return &parser{
		eng:      e,
		mem:      mem,
		nsSep:    nsSep,
		encoding: encoding,
	}
}

// parserScratchSize is the construction allocation, charged so that a
// fail list naming index 0 kills parser creation.
const parserScratchSize = 64

type parser struct {
	eng      *Engine
	mem      *sax.Allocator
	nsSep    byte
	encoding string

	handlers *sax.Handlers
	hashSalt uint64
	peMode   sax.ParamEntityParsing

	buf       []byte // working input buffer, allocator-backed
	off       int    // scan position within buf
	final     bool
	finished  bool
	suspended bool
	aborted   bool
	err       error
	freed     bool

	encChecked bool
	rootSeen   bool
	standalone int // from the XML declaration; -1 when absent

	openElems []string
	nsStack   []nsBinding

	external bool
}

type nsBinding struct {
	prefix string
	uri    string
	depth  int // element depth the binding was declared at
}

func (p *parser) SetHandlers(h *sax.Handlers) {
	p.checkLive()
	p.handlers = h
}

func (p *parser) SetHashSalt(salt uint64) {
	p.checkLive()
	p.hashSalt = salt
}

func (p *parser) SetParamEntityParsing(mode sax.ParamEntityParsing) {
	p.checkLive()
	p.peMode = mode
}

func (p *parser) Err() error { return p.err }

func (p *parser) Parse(data []byte, final bool) sax.Status {
	p.checkLive()
	if p.suspended {
		p.err = ErrSuspended
		return sax.StatusError
	}
	if p.finished {
		p.err = ErrFinished
		return sax.StatusError
	}
	if p.err != nil {
		return sax.StatusError
	}
	if !p.encChecked {
		if st := p.checkEncoding(); st != sax.StatusOK {
			return st
		}
	}
	if !p.grow(data) {
		return p.oom()
	}
	if final {
		p.final = true
	}
	return p.scan()
}

func (p *parser) Resume() sax.Status {
	p.checkLive()
	if !p.suspended {
		p.err = errors.New("saxtest: resume without suspension")
		return sax.StatusError
	}
	p.suspended = false
	// A Parse attempted during the suspension left ErrSuspended behind;
	// resuming clears it.
	p.err = nil
	p.eng.log("Resume")
	return p.scan()
}

func (p *parser) Stop(resumable bool) sax.Status {
	p.checkLive()
	if resumable {
		p.suspended = true
		p.eng.suspensions++
		p.eng.log("Stop(resumable)")
	} else {
		p.aborted = true
		p.eng.log("Stop(abort)")
	}
	return sax.StatusOK
}

// Reset drops buffered input, error state, the element and namespace
// stacks, and all handler registrations. The allocator, separator and
// hash salt survive; the encoding is replaced.
func (p *parser) Reset(encoding string) {
	p.checkLive()
	if p.external {
		panic("saxtest: reset of an external entity parser")
	}
	if p.buf != nil {
		p.mem.Free(p.buf)
	}
	p.encoding = encoding
	p.handlers = nil
	p.buf = nil
	p.off = 0
	p.final = false
	p.finished = false
	p.suspended = false
	p.aborted = false
	p.err = nil
	p.encChecked = false
	p.rootSeen = false
	p.standalone = -1
	p.openElems = nil
	p.nsStack = nil
}

func (p *parser) FreeContentModel(m *sax.Content) {
	p.checkLive()
	if m == nil {
		panic("saxtest: free of nil content model")
	}
	if !p.eng.liveModels[m] {
		panic("saxtest: double free or foreign content model")
	}
	delete(p.eng.liveModels, m)
}

// ExternalParser derives a nested parser that inherits the handler
// table, allocator and separator of its parent.
func (p *parser) ExternalParser(context, encoding string) sax.Parser {
	p.checkLive()
	scratch := p.mem.Alloc(parserScratchSize)
	if scratch == nil {
		return nil
	}
	p.mem.Free(scratch)

	p.eng.liveParsers++
	return &parser{
		eng:        p.eng,
		mem:        p.mem,
		nsSep:      p.nsSep,
		encoding:   encoding,
		handlers:   p.handlers,
		hashSalt:   p.hashSalt,
		peMode:     p.peMode,
		standalone: -1,
		external:   true,
	}
}

func (p *parser) Free() {
	if p.freed {
		panic("saxtest: double free of parser")
	}
	p.freed = true
	if p.buf != nil {
		p.mem.Free(p.buf)
	}
	p.eng.liveParsers--
}

func (p *parser) checkLive() {
	if p.freed {
		panic("saxtest: parser used after Free")
	}
}

// checkEncoding resolves the encoding label once per (re)start,
// consulting Handlers.UnknownEncoding for labels the stub does not
// know.
func (p *parser) checkEncoding() sax.Status {
	p.encChecked = true
	p.standalone = -1
	if knownEncodings[p.encoding] {
		return sax.StatusOK
	}
	if p.handlers != nil && p.handlers.UnknownEncoding != nil {
		p.eng.log("UnknownEncoding(%s)", p.encoding)
		if p.handlers.UnknownEncoding(p.encoding) == sax.StatusOK {
			return sax.StatusOK
		}
	}
	p.err = ErrUnknownEncoding
	return sax.StatusError
}

// grow appends data to the working buffer through the allocator so
// that injected failures hit buffer growth like any other allocation.
func (p *parser) grow(data []byte) bool {
	if p.off > 0 {
		// Compact consumed input before appending.
		n := copy(p.buf, p.buf[p.off:])
		p.buf = p.buf[:n]
		p.off = 0
	}
	if len(data) == 0 {
		return true
	}
	need := len(p.buf) + len(data)
	if p.buf == nil {
		b := p.mem.Alloc(need)
		if b == nil {
			return false
		}
		p.buf = b[:0]
	} else if need > cap(p.buf) {
		b := p.mem.Realloc(p.buf, need)
		if b == nil {
			return false
		}
		p.buf = b[:len(p.buf)]
	}
	p.buf = append(p.buf, data...)
	return true
}

// charge simulates one internal allocation of n bytes, giving the fail
// list something to hit for every delivered event.
func (p *parser) charge(n int) bool {
	if n < 1 {
		n = 1
	}
	b := p.mem.Alloc(n)
	if b == nil {
		return false
	}
	p.mem.Free(b)
	return true
}

func (p *parser) oom() sax.Status {
	p.err = ErrNoMemory
	return sax.StatusError
}

func (p *parser) fail(format string, args ...any) sax.Status {
	p.err = fmt.Errorf("saxtest: "+format, args...)
	return sax.StatusError
}
