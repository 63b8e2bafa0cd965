package saxtest

import (
	"errors"
	"fmt"

	"github.com/saxlab/saxfuzz.go/sax"
)

// contentNodeSize approximates the engine-side allocation for one
// content-model node, charged against the injected allocator.
const contentNodeSize = 32

// cmDepthLimit bounds group nesting in content specs.
const cmDepthLimit = 32

var errCMDepth = errors.New("content model nested too deeply")

// parseContentModel builds the tree for an <!ELEMENT> content spec:
// EMPTY, ANY, a mixed group (#PCDATA...), or a choice/sequence group
// with optional quantifiers. Node allocation is charged, so a fail
// list can kill model construction partway through; the partial tree
// is simply dropped in that case.
func (p *parser) parseContentModel(s string) (*sax.Content, error) {
	c := &cmParser{p: p, cur: cursor{s: s}}
	c.cur.skipWS()

	var node *sax.Content
	var err error
	switch {
	case c.cur.consumeWord("EMPTY"):
		node, err = c.newNode(sax.CTypeEmpty)
	case c.cur.consumeWord("ANY"):
		node, err = c.newNode(sax.CTypeAny)
	case c.cur.peek() == '(':
		node, err = c.parseGroup(0)
	default:
		return nil, fmt.Errorf("malformed content spec %q", s)
	}
	if err != nil {
		return nil, err
	}
	c.cur.skipWS()
	if !c.cur.done() {
		return nil, fmt.Errorf("trailing data in content spec %q", s)
	}
	return node, nil
}

type cmParser struct {
	p   *parser
	cur cursor
}

func (c *cmParser) newNode(t sax.ContentType) (*sax.Content, error) {
	if !c.p.charge(contentNodeSize) {
		return nil, ErrNoMemory
	}
	return &sax.Content{Type: t}, nil
}

// parseGroup parses a parenthesized group: either a mixed-content
// group starting with #PCDATA, or a choice/sequence of content
// particles.
func (c *cmParser) parseGroup(depth int) (*sax.Content, error) {
	if depth > cmDepthLimit {
		return nil, errCMDepth
	}
	if !c.cur.consume("(") {
		return nil, errors.New("expected group")
	}
	c.cur.skipWS()

	if c.cur.consumeWord("#PCDATA") {
		return c.parseMixed()
	}

	group, err := c.newNode(sax.CTypeSeq)
	if err != nil {
		return nil, err
	}
	var sep byte
	for {
		c.cur.skipWS()
		var child *sax.Content
		if c.cur.peek() == '(' {
			child, err = c.parseGroup(depth + 1)
		} else {
			child, err = c.parseName()
		}
		if err != nil {
			return nil, err
		}
		child.Quant = c.readQuant()
		group.Children = append(group.Children, child)

		c.cur.skipWS()
		switch c.cur.peek() {
		case '|', ',':
			b := c.cur.peek()
			if sep != 0 && sep != b {
				return nil, errors.New("mixed separators in content group")
			}
			sep = b
			c.cur.i++
		case ')':
			c.cur.i++
			if sep == '|' {
				group.Type = sax.CTypeChoice
			}
			group.Quant = c.readQuant()
			return group, nil
		default:
			return nil, errors.New("malformed content group")
		}
	}
}

// parseMixed handles the remainder of a (#PCDATA|a|b)* group; #PCDATA
// has already been consumed.
func (c *cmParser) parseMixed() (*sax.Content, error) {
	mixed, err := c.newNode(sax.CTypeMixed)
	if err != nil {
		return nil, err
	}
	for {
		c.cur.skipWS()
		if c.cur.consume(")") {
			if c.cur.consume("*") {
				mixed.Quant = sax.QuantRep
			} else if len(mixed.Children) > 0 {
				return nil, errors.New("mixed content with names requires '*'")
			}
			return mixed, nil
		}
		if !c.cur.consume("|") {
			return nil, errors.New("malformed mixed content group")
		}
		c.cur.skipWS()
		child, err := c.parseName()
		if err != nil {
			return nil, err
		}
		mixed.Children = append(mixed.Children, child)
	}
}

func (c *cmParser) parseName() (*sax.Content, error) {
	name := c.cur.readName()
	if name == "" {
		return nil, errors.New("expected name in content group")
	}
	node, err := c.newNode(sax.CTypeName)
	if err != nil {
		return nil, err
	}
	node.Name = name
	return node, nil
}

func (c *cmParser) readQuant() sax.Quant {
	switch c.cur.peek() {
	case '?':
		c.cur.i++
		return sax.QuantOpt
	case '*':
		c.cur.i++
		return sax.QuantRep
	case '+':
		c.cur.i++
		return sax.QuantPlus
	default:
		return sax.QuantNone
	}
}
