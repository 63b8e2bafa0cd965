package saxtest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/saxlab/saxfuzz.go/sax"
)

func TestScanSimpleDocument(t *testing.T) {
	eng := parseDoc(t, `<?xml version="1.0" encoding="UTF-8"?><a k="v"><b>hi</b><!--c--></a>`)
	want := []string{
		"XMLDecl(1.0,UTF-8,-1)",
		"StartElement(a)",
		"StartElement(b)",
		"CharacterData(hi)",
		"EndElement(b)",
		"Comment(c)",
		"EndElement(a)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanStandaloneDeclaration(t *testing.T) {
	eng := parseDoc(t, `<?xml version="1.0" standalone="yes"?><a/>`)
	want := []string{
		"XMLDecl(1.0,,1)",
		"StartElement(a)",
		"EndElement(a)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanProcessingInstructionAndCDATA(t *testing.T) {
	eng := parseDoc(t, `<?go fmt?><a><![CDATA[<raw>&stuff;]]></a>`)
	want := []string{
		"PI(go)",
		"StartElement(a)",
		"StartCDATA",
		"CharacterData(<raw>&stuff;)",
		"EndCDATA",
		"EndElement(a)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanBuiltinEntities(t *testing.T) {
	eng := parseDoc(t, `<a>&lt;&amp;&gt;&quot;&apos;</a>`)
	want := []string{
		"StartElement(a)",
		"CharacterData(<)",
		"CharacterData(&)",
		"CharacterData(>)",
		`CharacterData(")`,
		"CharacterData(')",
		"EndElement(a)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanWhitespaceOutsideRootGoesToDefault(t *testing.T) {
	eng := parseDoc(t, "\n<a/>\n")
	want := []string{
		"Default(\n)",
		"StartElement(a)",
		"EndElement(a)",
		"Default(\n)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanAttributesDelivered(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	var got []sax.Attribute
	h := fullHandlers(p)
	h.StartElement = func(name string, attrs []sax.Attribute) { got = attrs }
	p.SetHandlers(h)

	if st := p.Parse([]byte(`<a one="1" two='2'/>`), true); st != sax.StatusOK {
		t.Fatalf("parse: %v, err %v", st, p.Err())
	}
	p.Free()

	want := []sax.Attribute{{Name: "one", Value: "1"}, {Name: "two", Value: "2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestScanNamespaceQualification(t *testing.T) {
	eng := parseDoc(t, `<x:r xmlns:x="u" xmlns="d"><k x:a="1"/></x:r>`)
	want := []string{
		"StartNamespace(x=u)",
		"StartNamespace(=d)",
		"StartElement(u|r)",
		"StartElement(d|k)",
		"EndElement(d|k)",
		"EndElement(u|r)",
		"EndNamespace()",
		"EndNamespace(x)",
	}
	if diff := cmp.Diff(want, eng.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanNamespaceAttributeQualification(t *testing.T) {
	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	var got []sax.Attribute
	h := fullHandlers(p)
	h.StartElement = func(name string, attrs []sax.Attribute) { got = attrs }
	p.SetHandlers(h)

	// Prefixed attributes qualify; unprefixed ones never take the
	// default namespace.
	if st := p.Parse([]byte(`<r xmlns="d" xmlns:x="u" x:a="1" b="2"/>`), true); st != sax.StatusOK {
		t.Fatalf("parse: %v, err %v", st, p.Err())
	}
	p.Free()

	want := []sax.Attribute{{Name: "u|a", Value: "1"}, {Name: "b", Value: "2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

// mergeCharData coalesces consecutive character-data events; chunked
// feeding may split a text run into several deliveries, which is fine
// as long as the merged stream matches.
func mergeCharData(events []string) []string {
	var out []string
	const pre = "CharacterData("
	for _, ev := range events {
		n := len(out)
		if n > 0 && strings.HasPrefix(ev, pre) && strings.HasPrefix(out[n-1], pre) {
			out[n-1] = out[n-1][:len(out[n-1])-1] + ev[len(pre):]
			continue
		}
		out = append(out, ev)
	}
	return out
}

// TestScanChunkedMatchesWhole feeds the same document byte by byte and
// checks that held partial tokens produce the same merged event stream.
func TestScanChunkedMatchesWhole(t *testing.T) {
	doc := `<?xml version="1.0"?><r xmlns:n="u"><!--note--><n:a k="v">text&amp;<![CDATA[raw]]></n:a></r>`
	whole := parseDoc(t, doc)

	eng := NewEngine()
	p := eng.NewParser("", plainAllocator(), '|')
	p.SetHandlers(fullHandlers(p))
	for i := 0; i < len(doc); i++ {
		if st := p.Parse([]byte{doc[i]}, false); st != sax.StatusOK {
			t.Fatalf("byte %d: status %v, err %v", i, st, p.Err())
		}
	}
	if st := p.Parse(nil, true); st != sax.StatusOK {
		t.Fatalf("final: %v, err %v", st, p.Err())
	}
	p.Free()

	if diff := cmp.Diff(mergeCharData(whole.Events()), mergeCharData(eng.Events())); diff != "" {
		t.Errorf("chunked events diverge from whole-document parse (-whole +chunked):\n%s", diff)
	}
}

func TestScanExternalEntityRef(t *testing.T) {
	t.Run("handler accepts", func(t *testing.T) {
		eng := parseDoc(t, `<a>&foo;</a>`)
		want := []string{
			"StartElement(a)",
			"ExternalEntityRef(foo)",
			"EndElement(a)",
		}
		if diff := cmp.Diff(want, eng.Events()); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("handler rejects", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("", plainAllocator(), '|')
		h := fullHandlers(p)
		h.ExternalEntityRef = func(p sax.Parser, context, base, sysid, pubid string) sax.Status {
			return sax.StatusError
		}
		p.SetHandlers(h)
		if st := p.Parse([]byte(`<a>&foo;</a>`), true); st != sax.StatusError {
			t.Fatalf("status = %v, want ERROR", st)
		}
		if p.Err() == nil || !strings.Contains(p.Err().Error(), "external entity") {
			t.Fatalf("err = %v", p.Err())
		}
		p.Free()
	})

	t.Run("no handler reports skipped", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("", plainAllocator(), '|')
		h := fullHandlers(p)
		h.ExternalEntityRef = nil
		p.SetHandlers(h)
		if st := p.Parse([]byte(`<a>&foo;</a>`), true); st != sax.StatusOK {
			t.Fatalf("parse: %v, err %v", st, p.Err())
		}
		p.Free()
		want := []string{
			"StartElement(a)",
			"SkippedEntity(foo)",
			"EndElement(a)",
		}
		if diff := cmp.Diff(want, eng.Events()); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no entity handlers at all", func(t *testing.T) {
		eng := NewEngine()
		p := eng.NewParser("", plainAllocator(), '|')
		h := fullHandlers(p)
		h.ExternalEntityRef = nil
		h.SkippedEntity = nil
		p.SetHandlers(h)
		if st := p.Parse([]byte(`<a>&foo;</a>`), true); st != sax.StatusOK {
			t.Fatalf("parse: %v, err %v", st, p.Err())
		}
		p.Free()
		want := []string{
			"StartElement(a)",
			"Default(&foo;)",
			"EndElement(a)",
		}
		if diff := cmp.Diff(want, eng.Events()); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestScanErrors(t *testing.T) {
	cases := []struct {
		desc    string
		doc     string
		wantSub string
	}{
		{"mismatched end tag", "<a></b>", "mismatched end tag"},
		{"unmatched end tag", "</a>", "unmatched end tag"},
		{"unclosed element", "<a>", "unclosed element"},
		{"empty document", "", "no element found"},
		{"whitespace only", "  \n ", "no element found"},
		{"text outside root", "junk", "text outside"},
		{"junk after root", "<a/><b/>", "junk after document element"},
		{"entity outside root", "&amp;", "entity reference outside"},
		{"cdata outside root", "<![CDATA[x]]>", "CDATA outside"},
		{"duplicate attribute", `<a x="1" x="2"/>`, "duplicate attribute"},
		{"stray declaration", "<!ELEMENT a (b)>", "declaration outside of doctype"},
		{"misplaced doctype", "<a/><!DOCTYPE a>", "misplaced doctype"},
		{"doctype inside element", "<a><!DOCTYPE a></a>", "misplaced doctype"},
		{"malformed entity ref", "<a>&b d;</a>", "malformed entity reference"},
		{"malformed start tag", "<>", "malformed start tag"},
		{"bad standalone value", `<?xml version="1.0" standalone="maybe"?><a/>`, "standalone"},
		{"truncated markup", "<a><!--never", "unexpected end of input"},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			eng := NewEngine()
			p := eng.NewParser("", plainAllocator(), '|')
			p.SetHandlers(fullHandlers(p))
			defer p.Free()

			if st := p.Parse([]byte(tc.doc), true); st != sax.StatusError {
				t.Fatalf("Parse(%q) = %v, want ERROR", tc.doc, st)
			}
			if err := p.Err(); err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("err = %v, want substring %q", err, tc.wantSub)
			}
		})
	}
}
