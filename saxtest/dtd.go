package saxtest

import (
	"strings"

	"github.com/saxlab/saxfuzz.go/sax"
)

// cursor is a tiny scanner over the body of an already-complete
// construct (doctype, declaration, tag). Unlike the chunk scanner it
// never has to handle partial input.
type cursor struct {
	s string
	i int
}

func (c *cursor) done() bool { return c.i >= len(c.s) }

func (c *cursor) rest() string { return c.s[c.i:] }

func (c *cursor) peek() byte {
	if c.done() {
		return 0
	}
	return c.s[c.i]
}

func (c *cursor) skipWS() {
	for !c.done() {
		switch c.s[c.i] {
		case ' ', '\t', '\r', '\n':
			c.i++
		default:
			return
		}
	}
}

func (c *cursor) readName() string {
	start := c.i
	for !c.done() && isNameByte(c.s[c.i]) {
		c.i++
	}
	return c.s[start:c.i]
}

// consume advances over tok when it is next.
func (c *cursor) consume(tok string) bool {
	if strings.HasPrefix(c.rest(), tok) {
		c.i += len(tok)
		return true
	}
	return false
}

// consumeWord is consume with a word boundary: the token must not be
// immediately followed by a name byte.
func (c *cursor) consumeWord(tok string) bool {
	rest := c.rest()
	if !strings.HasPrefix(rest, tok) {
		return false
	}
	if len(rest) > len(tok) && isNameByte(rest[len(tok)]) {
		return false
	}
	c.i += len(tok)
	return true
}

func (c *cursor) readQuoted() (string, bool) {
	q := c.peek()
	if q != '"' && q != '\'' {
		return "", false
	}
	end := strings.IndexByte(c.s[c.i+1:], q)
	if end == -1 {
		return "", false
	}
	v := c.s[c.i+1 : c.i+1+end]
	c.i += end + 2
	return v, true
}

// parseTag splits the inside of a start tag into its element name and
// attribute list.
func parseTag(content string) (string, []sax.Attribute, bool) {
	c := &cursor{s: content}
	c.skipWS()
	name := c.readName()
	if name == "" {
		return "", nil, false
	}
	attrs, ok := parseAttrCursor(c)
	if !ok {
		return "", nil, false
	}
	return name, attrs, true
}

// parseAttrList parses a bare name="value" sequence (as found in an
// XML declaration body).
func parseAttrList(s string) ([]sax.Attribute, bool) {
	return parseAttrCursor(&cursor{s: s})
}

func parseAttrCursor(c *cursor) ([]sax.Attribute, bool) {
	var attrs []sax.Attribute
	for {
		c.skipWS()
		if c.done() {
			return attrs, true
		}
		name := c.readName()
		if name == "" {
			return nil, false
		}
		c.skipWS()
		if !c.consume("=") {
			return nil, false
		}
		c.skipWS()
		value, ok := c.readQuoted()
		if !ok {
			return nil, false
		}
		attrs = append(attrs, sax.Attribute{Name: name, Value: value})
	}
}

// handleDoctype processes the body of a complete <!DOCTYPE ...>
// construct: the name, an optional external ID, and an optional
// internal subset whose declarations fire individually.
func (p *parser) handleDoctype(body string) sax.Status {
	c := &cursor{s: body}
	c.skipWS()
	name := c.readName()
	if name == "" {
		return p.fail("malformed doctype")
	}

	var pubid, sysid string
	var ok bool
	c.skipWS()
	switch {
	case c.consumeWord("PUBLIC"):
		c.skipWS()
		if pubid, ok = c.readQuoted(); !ok {
			return p.fail("malformed doctype public id")
		}
		c.skipWS()
		if sysid, ok = c.readQuoted(); !ok {
			return p.fail("malformed doctype system id")
		}
	case c.consumeWord("SYSTEM"):
		c.skipWS()
		if sysid, ok = c.readQuoted(); !ok {
			return p.fail("malformed doctype system id")
		}
	}

	c.skipWS()
	subset := ""
	hasSubset := false
	if c.peek() == '[' {
		end := strings.IndexByte(c.rest(), ']')
		if end == -1 {
			return p.fail("unterminated internal subset")
		}
		subset = c.rest()[1:end]
		c.i += end + 1
		hasSubset = true
	}
	c.skipWS()
	if !c.done() {
		return p.fail("malformed doctype")
	}

	if !p.emitStartDoctype(name, sysid, pubid, hasSubset) {
		return p.oom()
	}

	// A document that references an external subset and is not marked
	// standalone consults the not-standalone predicate; a veto is a
	// parse error.
	if sysid != "" && p.standalone != 1 {
		h := p.handlers
		if h != nil && h.NotStandalone != nil {
			p.eng.log("NotStandalone")
			if h.NotStandalone() != sax.StatusOK {
				return p.fail("not-standalone veto")
			}
		}
	}

	if hasSubset {
		if st := p.scanSubset(subset); st != sax.StatusOK {
			return st
		}
	}
	if !p.emitEndDoctype() {
		return p.oom()
	}
	return sax.StatusOK
}

// scanSubset walks the internal subset: markup declarations, parameter
// entity references (reported as skipped), comments and PIs.
func (p *parser) scanSubset(s string) sax.Status {
	c := &cursor{s: s}
	for {
		c.skipWS()
		if c.done() {
			return sax.StatusOK
		}
		rest := c.rest()
		switch {
		case strings.HasPrefix(rest, "%"):
			c.i++
			name := c.readName()
			if name == "" || !c.consume(";") {
				return p.fail("malformed parameter entity reference")
			}
			if p.peMode != sax.ParamEntityParsingNever {
				if !p.emitSkippedEntity(name, true) {
					return p.oom()
				}
			}

		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest[4:], "-->")
			if end == -1 {
				return p.fail("unterminated comment in internal subset")
			}
			// Subset comments are swallowed without an event so that a
			// suspension cannot strand half-processed declarations.
			c.i += 4 + end + 3

		case strings.HasPrefix(rest, "<?"):
			end := strings.Index(rest[2:], "?>")
			if end == -1 {
				return p.fail("unterminated processing instruction in internal subset")
			}
			if st := p.handlePI(rest[2 : 2+end]); st != sax.StatusOK {
				return st
			}
			c.i += 2 + end + 2

		case strings.HasPrefix(rest, "<!"):
			end := declEnd(rest)
			if end == -1 {
				return p.fail("unterminated declaration in internal subset")
			}
			if st := p.handleDecl(rest[:end]); st != sax.StatusOK {
				return st
			}
			c.i += end + 1

		default:
			return p.fail("malformed internal subset")
		}
	}
}

// declEnd finds '>' outside quoted literals, or -1.
func declEnd(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i
		}
	}
	return -1
}

func (p *parser) handleDecl(decl string) sax.Status {
	switch {
	case strings.HasPrefix(decl, "<!ELEMENT"):
		return p.handleElementDecl(decl[len("<!ELEMENT"):])
	case strings.HasPrefix(decl, "<!ATTLIST"):
		return p.handleAttlistDecl(decl[len("<!ATTLIST"):])
	case strings.HasPrefix(decl, "<!ENTITY"):
		return p.handleEntityDecl(decl[len("<!ENTITY"):])
	case strings.HasPrefix(decl, "<!NOTATION"):
		return p.handleNotationDecl(decl[len("<!NOTATION"):])
	default:
		return p.fail("unknown declaration in internal subset")
	}
}

func (p *parser) handleElementDecl(body string) sax.Status {
	c := &cursor{s: body}
	c.skipWS()
	name := c.readName()
	if name == "" {
		return p.fail("malformed element declaration")
	}
	c.skipWS()
	modelText := strings.TrimSpace(c.rest())
	if modelText == "" {
		return p.fail("element declaration without content spec")
	}

	h := p.handlers
	if h == nil || h.ElementDecl == nil {
		// No consumer; validate nothing, build nothing.
		return sax.StatusOK
	}
	model, err := p.parseContentModel(modelText)
	if err == ErrNoMemory {
		return p.oom()
	}
	if err != nil {
		return p.fail("%v", err)
	}
	if !p.charge(len(name)) {
		return p.oom()
	}
	// The model is owned by the handler from here on and must come
	// back through FreeContentModel exactly once.
	p.eng.liveModels[model] = true
	p.eng.log("ElementDecl(%s)", name)
	h.ElementDecl(name, model)
	return sax.StatusOK
}

func (p *parser) handleAttlistDecl(body string) sax.Status {
	c := &cursor{s: body}
	c.skipWS()
	elname := c.readName()
	if elname == "" {
		return p.fail("malformed attlist declaration")
	}
	for {
		c.skipWS()
		if c.done() {
			return sax.StatusOK
		}
		attname := c.readName()
		if attname == "" {
			return p.fail("malformed attlist attribute name")
		}

		c.skipWS()
		var atttype string
		if c.peek() == '(' {
			end := strings.IndexByte(c.rest(), ')')
			if end == -1 {
				return p.fail("unterminated enumeration in attlist")
			}
			atttype = c.rest()[:end+1]
			c.i += end + 1
		} else {
			atttype = c.readName()
			if atttype == "" {
				return p.fail("malformed attlist attribute type")
			}
			if atttype == "NOTATION" {
				c.skipWS()
				end := strings.IndexByte(c.rest(), ')')
				if c.peek() != '(' || end == -1 {
					return p.fail("malformed notation attribute type")
				}
				atttype += " " + c.rest()[:end+1]
				c.i += end + 1
			}
		}

		c.skipWS()
		dflt := ""
		required := false
		var ok bool
		switch {
		case c.consumeWord("#REQUIRED"):
			required = true
		case c.consumeWord("#IMPLIED"):
		case c.consumeWord("#FIXED"):
			c.skipWS()
			if dflt, ok = c.readQuoted(); !ok {
				return p.fail("malformed #FIXED default")
			}
		default:
			if dflt, ok = c.readQuoted(); !ok {
				return p.fail("malformed attlist default")
			}
		}

		if !p.emitAttlistDecl(elname, attname, atttype, dflt, required) {
			return p.oom()
		}
	}
}

func (p *parser) handleEntityDecl(body string) sax.Status {
	c := &cursor{s: body}
	c.skipWS()
	isParam := false
	if c.peek() == '%' {
		isParam = true
		c.i++
		c.skipWS()
	}
	name := c.readName()
	if name == "" {
		return p.fail("malformed entity declaration")
	}

	c.skipWS()
	var value []byte
	var sysid, pubid, notation string
	var ok bool
	switch {
	case c.peek() == '"' || c.peek() == '\'':
		var v string
		if v, ok = c.readQuoted(); !ok {
			return p.fail("malformed entity value")
		}
		value = []byte(v)
	case c.consumeWord("PUBLIC"):
		c.skipWS()
		if pubid, ok = c.readQuoted(); !ok {
			return p.fail("malformed entity public id")
		}
		c.skipWS()
		if sysid, ok = c.readQuoted(); !ok {
			return p.fail("malformed entity system id")
		}
	case c.consumeWord("SYSTEM"):
		c.skipWS()
		if sysid, ok = c.readQuoted(); !ok {
			return p.fail("malformed entity system id")
		}
	default:
		return p.fail("malformed entity declaration")
	}

	c.skipWS()
	if c.consumeWord("NDATA") {
		if value != nil {
			return p.fail("NDATA on internal entity")
		}
		c.skipWS()
		if notation = c.readName(); notation == "" {
			return p.fail("malformed NDATA notation name")
		}
	}
	c.skipWS()
	if !c.done() {
		return p.fail("malformed entity declaration")
	}

	if !p.emitEntityDecl(name, isParam, value, "", sysid, pubid, notation) {
		return p.oom()
	}
	return sax.StatusOK
}

func (p *parser) handleNotationDecl(body string) sax.Status {
	c := &cursor{s: body}
	c.skipWS()
	name := c.readName()
	if name == "" {
		return p.fail("malformed notation declaration")
	}

	c.skipWS()
	var sysid, pubid string
	var ok bool
	switch {
	case c.consumeWord("PUBLIC"):
		c.skipWS()
		if pubid, ok = c.readQuoted(); !ok {
			return p.fail("malformed notation public id")
		}
		c.skipWS()
		if c.peek() == '"' || c.peek() == '\'' {
			if sysid, ok = c.readQuoted(); !ok {
				return p.fail("malformed notation system id")
			}
		}
	case c.consumeWord("SYSTEM"):
		c.skipWS()
		if sysid, ok = c.readQuoted(); !ok {
			return p.fail("malformed notation system id")
		}
	default:
		return p.fail("malformed notation declaration")
	}
	c.skipWS()
	if !c.done() {
		return p.fail("malformed notation declaration")
	}

	if !p.emitNotationDecl(name, "", sysid, pubid) {
		return p.oom()
	}
	return sax.StatusOK
}
