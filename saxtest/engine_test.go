package saxtest

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/saxlab/saxfuzz.go/sax"
)

func plainAllocator() *sax.Allocator {
	return &sax.Allocator{
		Alloc: func(size int) []byte { return make([]byte, size) },
		Realloc: func(buf []byte, size int) []byte {
			if size <= cap(buf) {
				return buf[:size]
			}
			b := make([]byte, size)
			copy(b, buf)
			return b
		},
		Free: func([]byte) {},
	}
}

// failingAllocator counts allocations and refuses the listed indices
// without counting them, mirroring the harness injection rule.
func failingAllocator(fail ...int) *sax.Allocator {
	count := 0
	hit := func() bool {
		if slices.Contains(fail, count) {
			return true
		}
		count++
		return false
	}
	return &sax.Allocator{
		Alloc: func(size int) []byte {
			if hit() {
				return nil
			}
			return make([]byte, size)
		},
		Realloc: func(buf []byte, size int) []byte {
			if hit() {
				return nil
			}
			b := make([]byte, size)
			copy(b, buf)
			return b
		},
		Free: func([]byte) {},
	}
}

// fullHandlers registers every callback slot so each delivery reaches
// the engine's event log. Content models are released immediately.
func fullHandlers(p sax.Parser) *sax.Handlers {
	return &sax.Handlers{
		XMLDecl:     func(version, encoding string, standalone int) {},
		ElementDecl: func(name string, model *sax.Content) { p.FreeContentModel(model) },
		AttlistDecl: func(elname, attname, atttype, dflt string, required bool) {},
		StartElement: func(name string, attrs []sax.Attribute) {
		},
		EndElement:            func(name string) {},
		CharacterData:         func(data []byte) {},
		ProcessingInstruction: func(target, data string) {},
		Comment:               func(data string) {},
		StartCDATA:            func() {},
		EndCDATA:              func() {},
		Default:               func(data []byte) {},
		StartDoctype:          func(name, sysid, pubid string, hasInternalSubset bool) {},
		EndDoctype:            func() {},
		EntityDecl: func(name string, isParam bool, value []byte, base, sysid, pubid, notation string) {
		},
		NotationDecl:   func(name, base, sysid, pubid string) {},
		StartNamespace: func(prefix, uri string) {},
		EndNamespace:   func(prefix string) {},
		NotStandalone:  func() sax.Status { return sax.StatusOK },
		ExternalEntityRef: func(p sax.Parser, context, base, sysid, pubid string) sax.Status {
			return sax.StatusOK
		},
		SkippedEntity:   func(name string, isParam bool) {},
		UnknownEncoding: func(name string) sax.Status { return sax.StatusError },
	}
}

// parseDoc runs a whole document through a fresh parser with the full
// handler table and returns the engine for event assertions.
func parseDoc(t *testing.T, doc string) *Engine {
	t.Helper()
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	p.SetParamEntityParsing(sax.ParamEntityParsingAlways)
	p.SetHandlers(fullHandlers(p))
	if st := p.Parse([]byte(doc), true); st != sax.StatusOK {
		t.Fatalf("Parse(%q) = %v, err %v", doc, st, p.Err())
	}
	p.Free()
	if n := eng.LiveParsers(); n != 0 {
		t.Fatalf("%d parsers leaked", n)
	}
	return eng
}

func TestParserLifecycleAccounting(t *testing.T) {
	eng := NewEngine()
	p1 := eng.NewParser("UTF-8", plainAllocator(), '|')
	p2 := eng.NewParser("UTF-8", plainAllocator(), '|')
	if got := eng.LiveParsers(); got != 2 {
		t.Fatalf("LiveParsers = %d, want 2", got)
	}
	p1.Free()
	p2.Free()
	if got := eng.LiveParsers(); got != 0 {
		t.Fatalf("LiveParsers = %d, want 0", got)
	}
}

func TestConstructionChargesAllocator(t *testing.T) {
	eng := NewEngine()
	if p := eng.NewParser("UTF-8", failingAllocator(0), '|'); p != nil {
		t.Fatal("construction must fail when allocation 0 is refused")
	}
	if got := eng.LiveParsers(); got != 0 {
		t.Fatalf("LiveParsers = %d after failed construction", got)
	}
}

func TestEventChargeHitsFailList(t *testing.T) {
	eng := NewEngine()
	// Index 0: construction scratch. Index 1: input buffer growth.
	// Index 2: the StartElement delivery charge.
	p := eng.NewParser("UTF-8", failingAllocator(2), '|')
	p.SetHandlers(fullHandlers(p))

	if st := p.Parse([]byte("<a/>"), true); st != sax.StatusError {
		t.Fatalf("status = %v, want ERROR", st)
	}
	if !errors.Is(p.Err(), ErrNoMemory) {
		t.Fatalf("err = %v, want ErrNoMemory", p.Err())
	}
	p.Free()
}

func TestSuspendAndResume(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	h := fullHandlers(p)
	h.Comment = func(data string) { p.Stop(true) }
	p.SetHandlers(h)

	if st := p.Parse([]byte("<a><!--s-->tail</a>"), true); st != sax.StatusSuspended {
		t.Fatalf("status = %v, want SUSPENDED", st)
	}
	// Feeding while suspended is an error that does not stick.
	if st := p.Parse([]byte("x"), false); st != sax.StatusError {
		t.Fatalf("parse while suspended = %v, want ERROR", st)
	}
	if st := p.Resume(); st != sax.StatusOK {
		t.Fatalf("resume = %v, err %v", st, p.Err())
	}
	p.Free()

	if got := eng.Suspensions(); got != 1 {
		t.Errorf("Suspensions = %d, want 1", got)
	}
	want := []string{
		"StartElement(a)",
		"Comment(s)",
		"Stop(resumable)",
		"Resume",
		"CharacterData(tail)",
		"EndElement(a)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestStopAbortIsTerminal(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	h := fullHandlers(p)
	h.CharacterData = func(data []byte) { p.Stop(false) }
	p.SetHandlers(h)

	if st := p.Parse([]byte("<a>x</a>"), true); st != sax.StatusError {
		t.Fatalf("status = %v, want ERROR", st)
	}
	if !errors.Is(p.Err(), ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", p.Err())
	}
	p.Free()
}

func TestResumeWithoutSuspensionFails(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	if st := p.Resume(); st != sax.StatusError {
		t.Fatalf("resume = %v, want ERROR", st)
	}
	p.Free()
}

func TestParseAfterFinishFails(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	p.SetHandlers(fullHandlers(p))
	if st := p.Parse([]byte("<a/>"), true); st != sax.StatusOK {
		t.Fatalf("parse: %v, err %v", st, p.Err())
	}
	if st := p.Parse([]byte("<b/>"), true); st != sax.StatusError {
		t.Fatalf("parse after finish = %v, want ERROR", st)
	}
	if !errors.Is(p.Err(), ErrFinished) {
		t.Fatalf("err = %v, want ErrFinished", p.Err())
	}
	p.Free()
}

func TestResetClearsHandlersAndState(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	p.SetHandlers(fullHandlers(p))
	if st := p.Parse([]byte("<a/>"), true); st != sax.StatusOK {
		t.Fatalf("first parse: %v, err %v", st, p.Err())
	}
	before := len(eng.Events())

	p.Reset("UTF-8")
	if st := p.Parse([]byte("<b/>"), true); st != sax.StatusOK {
		t.Fatalf("parse after reset: %v, err %v", st, p.Err())
	}
	if got := len(eng.Events()); got != before {
		t.Errorf("a reset parser without handlers logged %d new events", got-before)
	}
	p.Free()
}

func TestResetRecoversFromError(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	p.SetHandlers(fullHandlers(p))
	if st := p.Parse([]byte("<a></b>"), false); st != sax.StatusError {
		t.Fatal("mismatched end tag must fail")
	}
	// Errors stick until a reset.
	if st := p.Parse([]byte("<c/>"), false); st != sax.StatusError {
		t.Fatal("error state must be sticky")
	}

	p.Reset("")
	p.SetHandlers(fullHandlers(p))
	if st := p.Parse([]byte("<c/>"), true); st != sax.StatusOK {
		t.Fatalf("parse after reset: %v, err %v", st, p.Err())
	}
	p.Free()
}

func TestUnknownEncoding(t *testing.T) {
	t.Run("no handler", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("UNKNOWN", plainAllocator(), '|')
		if st := p.Parse([]byte("<a/>"), true); st != sax.StatusError {
			t.Fatalf("status = %v, want ERROR", st)
		}
		if !errors.Is(p.Err(), ErrUnknownEncoding) {
			t.Fatalf("err = %v, want ErrUnknownEncoding", p.Err())
		}
		p.Free()
	})

	t.Run("handler rejects", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("UNKNOWN", plainAllocator(), '|')
		p.SetHandlers(fullHandlers(p))
		if st := p.Parse([]byte("<a/>"), true); st != sax.StatusError {
			t.Fatalf("status = %v, want ERROR", st)
		}
		want := "UnknownEncoding(UNKNOWN)"
		if evs := eng.Events(); len(evs) != 1 || evs[0] != want {
			t.Fatalf("events = %v, want [%s]", evs, want)
		}
		p.Free()
	})

	t.Run("handler accepts", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("X-CUSTOM", plainAllocator(), '|')
		h := fullHandlers(p)
		h.UnknownEncoding = func(name string) sax.Status { return sax.StatusOK }
		p.SetHandlers(h)
		if st := p.Parse([]byte("<a/>"), true); st != sax.StatusOK {
			t.Fatalf("status = %v, err %v", st, p.Err())
		}
		p.Free()
	})

	t.Run("reset replaces encoding", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("UNKNOWN", plainAllocator(), '|')
		if st := p.Parse([]byte("<a/>"), false); st != sax.StatusError {
			t.Fatal("unknown encoding must fail")
		}
		p.Reset("UTF-8")
		if st := p.Parse([]byte("<a/>"), true); st != sax.StatusOK {
			t.Fatalf("status after reset = %v, err %v", st, p.Err())
		}
		p.Free()
	})
}

func TestExternalParserInheritsConfiguration(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("UTF-8", plainAllocator(), '|')
	p.SetHandlers(fullHandlers(p))

	ext := p.ExternalParser("ctx", "UTF-8")
	if ext == nil {
		t.Fatal("ExternalParser returned nil")
	}
	if st := ext.Parse([]byte("<e>x</e>"), true); st != sax.StatusOK {
		t.Fatalf("nested parse: %v, err %v", st, ext.Err())
	}
	ext.Free()
	p.Free()

	want := []string{
		"StartElement(e)",
		"CharacterData(x)",
		"EndElement(e)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestExternalParserResetPanics(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("UTF-8", plainAllocator(), '|')
	ext := p.ExternalParser("ctx", "")
	defer func() {
		if recover() == nil {
			t.Fatal("reset of an external parser must panic")
		}
		ext.Free()
		p.Free()
	}()
	ext.Reset("UTF-8")
}

func TestUseAfterFreePanics(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("UTF-8", plainAllocator(), '|')
	p.Free()

	t.Run("double free", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("double free must panic")
			}
		}()
		p.Free()
	})

	t.Run("parse after free", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("parse after free must panic")
			}
		}()
		p.Parse([]byte("<a/>"), false)
	})
}

func TestFreeContentModelPanics(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	defer p.Free()

	var model *sax.Content
	h := fullHandlers(p)
	h.ElementDecl = func(name string, m *sax.Content) { model = m }
	p.SetHandlers(h)
	if st := p.Parse([]byte("<!DOCTYPE r [<!ELEMENT r EMPTY>]><r/>"), true); st != sax.StatusOK {
		t.Fatalf("parse: %v, err %v", st, p.Err())
	}
	if model == nil {
		t.Fatal("no content model delivered")
	}
	if got := eng.OutstandingModels(); got != 1 {
		t.Fatalf("OutstandingModels = %d, want 1", got)
	}

	p.FreeContentModel(model)
	if got := eng.OutstandingModels(); got != 0 {
		t.Fatalf("OutstandingModels = %d, want 0", got)
	}

	t.Run("double free", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("double free of a content model must panic")
			}
		}()
		p.FreeContentModel(model)
	})

	t.Run("foreign model", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("free of a foreign content model must panic")
			}
		}()
		p.FreeContentModel(&sax.Content{Type: sax.CTypeEmpty})
	})

	t.Run("nil model", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("free of a nil content model must panic")
			}
		}()
		p.FreeContentModel(nil)
	})
}
