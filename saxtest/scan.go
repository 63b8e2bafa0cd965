package saxtest

import (
	"bytes"
	"strings"

	"github.com/saxlab/saxfuzz.go/sax"
)

var builtinEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

// scan consumes as much buffered input as possible, firing callbacks
// for every complete construct. It returns StatusSuspended as soon as a
// handler stops the parser, StatusError on the first parse or memory
// error, and StatusOK when input is exhausted. A partial trailing token
// is held for the next chunk unless the current chunk was final.
func (p *parser) scan() sax.Status {
	for {
		if p.aborted {
			p.err = ErrAborted
			return sax.StatusError
		}
		if p.suspended {
			return sax.StatusSuspended
		}
		data := p.buf[p.off:]
		if len(data) == 0 {
			break
		}

		var st sax.Status
		var n int
		switch data[0] {
		case '<':
			st, n = p.scanMarkup(data)
		case '&':
			st, n = p.scanEntityRef(data)
		default:
			st, n = p.scanText(data)
		}
		if st != sax.StatusOK {
			return st
		}
		if n == 0 {
			if p.final {
				return p.fail("unexpected end of input")
			}
			return sax.StatusOK
		}
		p.off += n
	}

	if !p.final {
		return sax.StatusOK
	}
	if len(p.openElems) > 0 {
		return p.fail("unclosed element %q", p.openElems[len(p.openElems)-1])
	}
	if !p.rootSeen {
		return p.fail("no element found")
	}
	p.finished = true
	return sax.StatusOK
}

// scanText consumes a run of character data up to the next markup or
// entity reference. Outside the document element only whitespace is
// tolerated, and it goes to the default handler.
func (p *parser) scanText(data []byte) (sax.Status, int) {
	run := bytes.IndexAny(data, "<&")
	if run == -1 {
		run = len(data)
	}
	chunk := data[:run]
	if len(p.openElems) == 0 {
		if len(bytes.TrimSpace(chunk)) != 0 {
			return p.fail("text outside of document element"), 0
		}
		if !p.emitDefault(chunk) {
			return p.oom(), 0
		}
		return sax.StatusOK, run
	}
	if !p.emitCharData(chunk) {
		return p.oom(), 0
	}
	return sax.StatusOK, run
}

// scanEntityRef handles &name;. Builtins expand to character data;
// anything else goes to the external-entity-ref handler when present
// (a non-OK result is a parse error), else to skipped-entity.
func (p *parser) scanEntityRef(data []byte) (sax.Status, int) {
	end := bytes.IndexByte(data, ';')
	if end == -1 {
		return sax.StatusOK, 0
	}
	name := string(data[1:end])
	if !isName(name) {
		return p.fail("malformed entity reference %q", name), 0
	}
	if len(p.openElems) == 0 {
		return p.fail("entity reference outside of document element"), 0
	}
	if exp, ok := builtinEntities[name]; ok {
		if !p.emitCharData([]byte(exp)) {
			return p.oom(), 0
		}
		return sax.StatusOK, end + 1
	}

	h := p.handlers
	if h != nil && h.ExternalEntityRef != nil {
		if !p.charge(len(name)) {
			return p.oom(), 0
		}
		p.eng.log("ExternalEntityRef(%s)", name)
		if h.ExternalEntityRef(p, name, "", name, "") != sax.StatusOK {
			return p.fail("external entity handling failed for %q", name), 0
		}
		return sax.StatusOK, end + 1
	}
	if h != nil && h.SkippedEntity != nil {
		if !p.emitSkippedEntity(name, false) {
			return p.oom(), 0
		}
		return sax.StatusOK, end + 1
	}
	// No handler claimed the reference; hand the raw text to the
	// default handler.
	if !p.emitDefault(data[:end+1]) {
		return p.oom(), 0
	}
	return sax.StatusOK, end + 1
}

// markupOpeners are the multi-byte markup introducers; an input that is
// a proper prefix of one of these cannot be classified yet.
var markupOpeners = []string{"<!--", "<![CDATA[", "<!DOCTYPE", "<?", "</"}

func (p *parser) scanMarkup(data []byte) (sax.Status, int) {
	for _, opener := range markupOpeners {
		if isPartialPrefix(data, opener) {
			return sax.StatusOK, 0
		}
	}

	switch {
	case bytes.HasPrefix(data, []byte("<!--")):
		end := bytes.Index(data[4:], []byte("-->"))
		if end == -1 {
			return sax.StatusOK, 0
		}
		if !p.emitComment(string(data[4 : 4+end])) {
			return p.oom(), 0
		}
		return sax.StatusOK, 4 + end + 3

	case bytes.HasPrefix(data, []byte("<![CDATA[")):
		end := bytes.Index(data[9:], []byte("]]>"))
		if end == -1 {
			return sax.StatusOK, 0
		}
		if len(p.openElems) == 0 {
			return p.fail("CDATA outside of document element"), 0
		}
		if !p.emitStartCDATA() || !p.emitCharData(data[9:9+end]) || !p.emitEndCDATA() {
			return p.oom(), 0
		}
		return sax.StatusOK, 9 + end + 3

	case bytes.HasPrefix(data, []byte("<?")):
		end := bytes.Index(data[2:], []byte("?>"))
		if end == -1 {
			return sax.StatusOK, 0
		}
		if st := p.handlePI(string(data[2 : 2+end])); st != sax.StatusOK {
			return st, 0
		}
		return sax.StatusOK, 2 + end + 2

	case bytes.HasPrefix(data, []byte("<!DOCTYPE")):
		n := doctypeEnd(data)
		if n == 0 {
			return sax.StatusOK, 0
		}
		if p.rootSeen || len(p.openElems) > 0 {
			return p.fail("misplaced doctype"), 0
		}
		if st := p.handleDoctype(string(data[len("<!DOCTYPE") : n-1])); st != sax.StatusOK {
			return st, 0
		}
		return sax.StatusOK, n

	case bytes.HasPrefix(data, []byte("<!")):
		return p.fail("declaration outside of doctype"), 0

	case bytes.HasPrefix(data, []byte("</")):
		end := bytes.IndexByte(data, '>')
		if end == -1 {
			return sax.StatusOK, 0
		}
		name := strings.TrimSpace(string(data[2:end]))
		if st := p.endElement(name); st != sax.StatusOK {
			return st, 0
		}
		return sax.StatusOK, end + 1

	default:
		end := indexTagEnd(data)
		if end == -1 {
			return sax.StatusOK, 0
		}
		if st := p.handleStartTag(string(data[1:end])); st != sax.StatusOK {
			return st, 0
		}
		return sax.StatusOK, end + 1
	}
}

// handlePI dispatches a <?...?> body to either the XML-declaration or
// the processing-instruction handler.
func (p *parser) handlePI(body string) sax.Status {
	target := body
	rest := ""
	if i := strings.IndexAny(body, " \t\r\n"); i >= 0 {
		target = body[:i]
		rest = strings.TrimSpace(body[i+1:])
	}
	if target == "" || !isName(target) {
		return p.fail("malformed processing instruction")
	}

	if target == "xml" && !p.rootSeen {
		attrs, ok := parseAttrList(rest)
		if !ok {
			return p.fail("malformed XML declaration")
		}
		var version, encoding string
		standalone := -1
		for _, a := range attrs {
			switch a.Name {
			case "version":
				version = a.Value
			case "encoding":
				encoding = a.Value
			case "standalone":
				switch a.Value {
				case "yes":
					standalone = 1
				case "no":
					standalone = 0
				default:
					return p.fail("malformed standalone value %q", a.Value)
				}
			default:
				return p.fail("unexpected XML declaration attribute %q", a.Name)
			}
		}
		p.standalone = standalone
		if !p.emitXMLDecl(version, encoding, standalone) {
			return p.oom()
		}
		return sax.StatusOK
	}

	if !p.emitPI(target, rest) {
		return p.oom()
	}
	return sax.StatusOK
}

// handleStartTag processes the inside of a start tag: namespace
// bindings first, then the element itself, then the immediate close
// for self-closing tags.
func (p *parser) handleStartTag(content string) sax.Status {
	if p.rootSeen && len(p.openElems) == 0 {
		return p.fail("junk after document element")
	}
	selfClose := false
	if strings.HasSuffix(content, "/") {
		selfClose = true
		content = content[:len(content)-1]
	}

	name, attrs, ok := parseTag(content)
	if !ok {
		return p.fail("malformed start tag")
	}
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if seen[a.Name] {
			return p.fail("duplicate attribute %q", a.Name)
		}
		seen[a.Name] = true
	}

	// Peel off namespace declarations; they become events, not
	// attributes.
	depth := len(p.openElems) + 1
	reported := attrs[:0]
	for _, a := range attrs {
		switch {
		case a.Name == "xmlns":
			p.nsStack = append(p.nsStack, nsBinding{prefix: "", uri: a.Value, depth: depth})
			if !p.emitStartNamespace("", a.Value) {
				return p.oom()
			}
		case strings.HasPrefix(a.Name, "xmlns:"):
			prefix := a.Name[len("xmlns:"):]
			if prefix == "" {
				return p.fail("malformed namespace declaration")
			}
			p.nsStack = append(p.nsStack, nsBinding{prefix: prefix, uri: a.Value, depth: depth})
			if !p.emitStartNamespace(prefix, a.Value) {
				return p.oom()
			}
		default:
			reported = append(reported, a)
		}
	}

	for i, a := range reported {
		reported[i].Name = p.qualifyAttr(a.Name)
	}
	qualified := p.qualifyElement(name)

	p.rootSeen = true
	p.openElems = append(p.openElems, name)
	if !p.emitStartElement(qualified, reported) {
		return p.oom()
	}
	if selfClose {
		return p.endElement(name)
	}
	return sax.StatusOK
}

// endElement closes the innermost open element, which must match name,
// and retires namespace bindings declared on it.
func (p *parser) endElement(name string) sax.Status {
	if len(p.openElems) == 0 {
		return p.fail("unmatched end tag %q", name)
	}
	top := p.openElems[len(p.openElems)-1]
	if top != name {
		return p.fail("mismatched end tag: have %q, want %q", name, top)
	}
	depth := len(p.openElems)
	if !p.emitEndElement(p.qualifyElement(name)) {
		return p.oom()
	}
	p.openElems = p.openElems[:len(p.openElems)-1]

	for len(p.nsStack) > 0 && p.nsStack[len(p.nsStack)-1].depth == depth {
		b := p.nsStack[len(p.nsStack)-1]
		p.nsStack = p.nsStack[:len(p.nsStack)-1]
		if !p.emitEndNamespace(b.prefix) {
			return p.oom()
		}
	}
	return sax.StatusOK
}

func (p *parser) lookupNS(prefix string) (string, bool) {
	for i := len(p.nsStack) - 1; i >= 0; i-- {
		if p.nsStack[i].prefix == prefix {
			return p.nsStack[i].uri, true
		}
	}
	return "", false
}

// qualifyElement rewrites prefix:local to uri<sep>local for bound
// prefixes; unprefixed names pick up the default namespace when one is
// in scope. Unbound prefixes pass through untouched.
func (p *parser) qualifyElement(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		if uri, ok := p.lookupNS(name[:i]); ok && uri != "" {
			return uri + string(p.nsSep) + name[i+1:]
		}
		return name
	}
	if uri, ok := p.lookupNS(""); ok && uri != "" {
		return uri + string(p.nsSep) + name
	}
	return name
}

// qualifyAttr is qualifyElement for attributes: unprefixed attributes
// never take the default namespace.
func (p *parser) qualifyAttr(name string) string {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return name
	}
	if uri, ok := p.lookupNS(name[:i]); ok && uri != "" {
		return uri + string(p.nsSep) + name[i+1:]
	}
	return name
}

// isPartialPrefix reports whether data is a proper prefix of token,
// meaning the construct cannot be classified until more input arrives.
func isPartialPrefix(data []byte, token string) bool {
	return len(data) < len(token) && strings.HasPrefix(token, string(data))
}

// doctypeEnd finds the end of a complete <!DOCTYPE ...> construct,
// skipping quoted literals and the bracketed internal subset. It
// returns the total length including '>', or 0 when incomplete.
func doctypeEnd(data []byte) int {
	var quote byte
	bracket := false
	for i := len("<!DOCTYPE"); i < len(data); i++ {
		c := data[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			bracket = true
		case c == ']':
			bracket = false
		case c == '>' && !bracket:
			return i + 1
		}
	}
	return 0
}

// indexTagEnd finds '>' outside quoted attribute values, or -1 when
// the tag is still incomplete.
func indexTagEnd(data []byte) int {
	var quote byte
	for i := 1; i < len(data); i++ {
		c := data[i]
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

func isNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-' || c == '.' || c == ':':
		return true
	default:
		return false
	}
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return true
}
