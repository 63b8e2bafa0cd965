package harness

import (
	"errors"
	"fmt"

	"github.com/saxlab/saxfuzz.go/sax"
)

// touchString reads every byte of s into the sink. Under race or
// memory instrumentation an engine that handed out a string backed by
// recycled or mis-sized storage (e.g. via an unsafe zero-copy cast)
// faults here, immediately and reproducibly, instead of corrupting
// silently later.
func (h *Harness) touchString(s string) {
	for i := 0; i < len(s); i++ {
		h.sink += uint64(s[i])
	}
}

// touchBytes is touchString for explicit-length buffers.
func (h *Harness) touchBytes(b []byte) {
	for _, c := range b {
		h.sink += uint64(c)
	}
}

// touchContent shape-checks a delivered content model and reads every
// name in it. A violation is fatal: it means the engine delivered a
// malformed tree, which is exactly the class of defect the harness
// exists to catch.
func (h *Harness) touchContent(m *sax.Content) {
	if err := VerifyContent(m); err != nil {
		panic("harness: " + err.Error())
	}
	h.touchContentNames(m)
}

func (h *Harness) touchContentNames(m *sax.Content) {
	h.touchString(m.Name)
	for _, c := range m.Children {
		h.touchContentNames(c)
	}
}

// VerifyContent checks the shape invariants of a content-model tree:
//
//	EMPTY, ANY:  no quantifier, no name, no children
//	MIXED:       quantifier none or '*', no name, children NAME-only
//	             and childless
//	NAME:        non-empty name, no children
//	CHOICE, SEQ: no name, children checked recursively
//
// Any other node type is itself a violation. The check is pure so it
// can serve both as the harness's crash trigger and as a plain
// assertion in property tests.
func VerifyContent(m *sax.Content) error {
	if m == nil {
		return errors.New("content model: nil node")
	}
	switch m.Type {
	case sax.CTypeEmpty, sax.CTypeAny:
		if m.Quant != sax.QuantNone {
			return fmt.Errorf("content model: %v node with quantifier %v", m.Type, m.Quant)
		}
		if m.Name != "" {
			return fmt.Errorf("content model: %v node with name %q", m.Type, m.Name)
		}
		if len(m.Children) != 0 {
			return fmt.Errorf("content model: %v node with %d children", m.Type, len(m.Children))
		}

	case sax.CTypeMixed:
		if m.Quant != sax.QuantNone && m.Quant != sax.QuantRep {
			return fmt.Errorf("content model: MIXED node with quantifier %v", m.Quant)
		}
		if m.Name != "" {
			return fmt.Errorf("content model: MIXED node with name %q", m.Name)
		}
		for _, c := range m.Children {
			if c == nil {
				return errors.New("content model: MIXED node with nil child")
			}
			if c.Type != sax.CTypeName {
				return fmt.Errorf("content model: MIXED child of type %v", c.Type)
			}
			if len(c.Children) != 0 {
				return fmt.Errorf("content model: MIXED NAME child with %d children", len(c.Children))
			}
		}

	case sax.CTypeName:
		if m.Name == "" {
			return errors.New("content model: NAME node without a name")
		}
		if len(m.Children) != 0 {
			return fmt.Errorf("content model: NAME node with %d children", len(m.Children))
		}

	case sax.CTypeChoice, sax.CTypeSeq:
		if m.Name != "" {
			return fmt.Errorf("content model: %v node with name %q", m.Type, m.Name)
		}
		for _, c := range m.Children {
			if err := VerifyContent(c); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("content model: unknown node type %d", int(m.Type))
	}
	return nil
}
