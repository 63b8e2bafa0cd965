package saxtest

// Event delivery. Each helper is a no-op when the corresponding handler
// is absent; otherwise it charges an allocation (so injected failures
// can land on any event), logs the delivery, and invokes the handler.
// A false return means the charge failed and the caller must report
// out-of-memory.

import "github.com/saxlab/saxfuzz.go/sax"

func (p *parser) emitXMLDecl(version, encoding string, standalone int) bool {
	h := p.handlers
	if h == nil || h.XMLDecl == nil {
		return true
	}
	if !p.charge(len(version) + len(encoding)) {
		return false
	}
	p.eng.log("XMLDecl(%s,%s,%d)", version, encoding, standalone)
	h.XMLDecl(version, encoding, standalone)
	return true
}

func (p *parser) emitPI(target, data string) bool {
	h := p.handlers
	if h == nil || h.ProcessingInstruction == nil {
		return true
	}
	if !p.charge(len(target) + len(data)) {
		return false
	}
	p.eng.log("PI(%s)", target)
	h.ProcessingInstruction(target, data)
	return true
}

func (p *parser) emitComment(text string) bool {
	h := p.handlers
	if h == nil || h.Comment == nil {
		return true
	}
	if !p.charge(len(text)) {
		return false
	}
	p.eng.log("Comment(%s)", text)
	h.Comment(text)
	return true
}

func (p *parser) emitStartElement(name string, attrs []sax.Attribute) bool {
	h := p.handlers
	if h == nil || h.StartElement == nil {
		return true
	}
	if !p.charge(len(name)) {
		return false
	}
	p.eng.log("StartElement(%s)", name)
	h.StartElement(name, attrs)
	return true
}

func (p *parser) emitEndElement(name string) bool {
	h := p.handlers
	if h == nil || h.EndElement == nil {
		return true
	}
	if !p.charge(len(name)) {
		return false
	}
	p.eng.log("EndElement(%s)", name)
	h.EndElement(name)
	return true
}

func (p *parser) emitCharData(data []byte) bool {
	h := p.handlers
	if h == nil || h.CharacterData == nil {
		return p.emitDefault(data)
	}
	if !p.charge(len(data)) {
		return false
	}
	p.eng.log("CharacterData(%s)", data)
	h.CharacterData(data)
	return true
}

func (p *parser) emitDefault(data []byte) bool {
	h := p.handlers
	if h == nil || h.Default == nil {
		return true
	}
	if !p.charge(len(data)) {
		return false
	}
	p.eng.log("Default(%s)", data)
	h.Default(data)
	return true
}

func (p *parser) emitStartCDATA() bool {
	h := p.handlers
	if h == nil || h.StartCDATA == nil {
		return true
	}
	if !p.charge(1) {
		return false
	}
	p.eng.log("StartCDATA")
	h.StartCDATA()
	return true
}

func (p *parser) emitEndCDATA() bool {
	h := p.handlers
	if h == nil || h.EndCDATA == nil {
		return true
	}
	if !p.charge(1) {
		return false
	}
	p.eng.log("EndCDATA")
	h.EndCDATA()
	return true
}

func (p *parser) emitStartDoctype(name, sysid, pubid string, hasSubset bool) bool {
	h := p.handlers
	if h == nil || h.StartDoctype == nil {
		return true
	}
	if !p.charge(len(name)) {
		return false
	}
	p.eng.log("StartDoctype(%s)", name)
	h.StartDoctype(name, sysid, pubid, hasSubset)
	return true
}

func (p *parser) emitEndDoctype() bool {
	h := p.handlers
	if h == nil || h.EndDoctype == nil {
		return true
	}
	if !p.charge(1) {
		return false
	}
	p.eng.log("EndDoctype")
	h.EndDoctype()
	return true
}

func (p *parser) emitEntityDecl(name string, isParam bool, value []byte, base, sysid, pubid, notation string) bool {
	h := p.handlers
	if h == nil || h.EntityDecl == nil {
		return true
	}
	if !p.charge(len(name) + len(value)) {
		return false
	}
	p.eng.log("EntityDecl(%s)", name)
	h.EntityDecl(name, isParam, value, base, sysid, pubid, notation)
	return true
}

func (p *parser) emitNotationDecl(name, base, sysid, pubid string) bool {
	h := p.handlers
	if h == nil || h.NotationDecl == nil {
		return true
	}
	if !p.charge(len(name)) {
		return false
	}
	p.eng.log("NotationDecl(%s)", name)
	h.NotationDecl(name, base, sysid, pubid)
	return true
}

func (p *parser) emitAttlistDecl(elname, attname, atttype, dflt string, required bool) bool {
	h := p.handlers
	if h == nil || h.AttlistDecl == nil {
		return true
	}
	if !p.charge(len(elname) + len(attname)) {
		return false
	}
	p.eng.log("AttlistDecl(%s,%s)", elname, attname)
	h.AttlistDecl(elname, attname, atttype, dflt, required)
	return true
}

func (p *parser) emitStartNamespace(prefix, uri string) bool {
	h := p.handlers
	if h == nil || h.StartNamespace == nil {
		return true
	}
	if !p.charge(len(prefix) + len(uri)) {
		return false
	}
	p.eng.log("StartNamespace(%s=%s)", prefix, uri)
	h.StartNamespace(prefix, uri)
	return true
}

func (p *parser) emitEndNamespace(prefix string) bool {
	h := p.handlers
	if h == nil || h.EndNamespace == nil {
		return true
	}
	if !p.charge(len(prefix) + 1) {
		return false
	}
	p.eng.log("EndNamespace(%s)", prefix)
	h.EndNamespace(prefix)
	return true
}

func (p *parser) emitSkippedEntity(name string, isParam bool) bool {
	h := p.handlers
	if h == nil || h.SkippedEntity == nil {
		return true
	}
	if !p.charge(len(name)) {
		return false
	}
	p.eng.log("SkippedEntity(%s)", name)
	h.SkippedEntity(name, isParam)
	return true
}
