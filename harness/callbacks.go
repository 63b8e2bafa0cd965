package harness

import "github.com/saxlab/saxfuzz.go/sax"

// handlers builds the full callback table as closures over the harness
// and the parser they were registered on. Every callback touches every
// string/buffer argument before doing anything else.
//
// Two callbacks carry extra protocol behavior: Comment suspends the
// parser so that every document containing a comment exercises the
// suspend/resume path, and ExternalEntityRef runs a nested parse of the
// pending entity buffer.
func (h *Harness) handlers(p sax.Parser) *sax.Handlers {
	return &sax.Handlers{
		XMLDecl: func(version, encoding string, standalone int) {
			h.touchString(version)
			h.touchString(encoding)
		},

		ElementDecl: func(name string, model *sax.Content) {
			h.touchString(name)
			h.touchContent(model)
			p.FreeContentModel(model)
		},

		AttlistDecl: func(elname, attname, atttype, dflt string, required bool) {
			h.touchString(elname)
			h.touchString(attname)
			h.touchString(atttype)
			h.touchString(dflt)
		},

		StartElement: func(name string, attrs []sax.Attribute) {
			h.touchString(name)
			for _, a := range attrs {
				h.touchString(a.Name)
				h.touchString(a.Value)
			}
		},

		EndElement: func(name string) {
			h.touchString(name)
		},

		CharacterData: func(data []byte) {
			h.touchBytes(data)
		},

		ProcessingInstruction: func(target, data string) {
			h.touchString(target)
			h.touchString(data)
		},

		Comment: func(data string) {
			h.touchString(data)
			// Suspend from inside the handler; the feed wrapper in
			// Run resumes until the parse reaches a terminal status.
			p.Stop(true)
		},

		StartCDATA: func() {},
		EndCDATA:   func() {},

		Default: func(data []byte) {
			h.touchBytes(data)
		},

		StartDoctype: func(name, sysid, pubid string, hasInternalSubset bool) {
			h.touchString(name)
			h.touchString(sysid)
			h.touchString(pubid)
		},

		EndDoctype: func() {},

		EntityDecl: func(name string, isParam bool, value []byte, base, sysid, pubid, notation string) {
			h.touchString(name)
			h.touchBytes(value)
			h.touchString(base)
			h.touchString(sysid)
			h.touchString(pubid)
			h.touchString(notation)
		},

		NotationDecl: func(name, base, sysid, pubid string) {
			h.touchString(name)
			h.touchString(base)
			h.touchString(sysid)
			h.touchString(pubid)
		},

		StartNamespace: func(prefix, uri string) {
			h.touchString(prefix)
			h.touchString(uri)
		},

		EndNamespace: func(prefix string) {
			h.touchString(prefix)
		},

		NotStandalone: func() sax.Status {
			return sax.StatusOK
		},

		ExternalEntityRef: func(p sax.Parser, context, base, sysid, pubid string) sax.Status {
			h.touchString(context)
			h.touchString(base)
			h.touchString(sysid)
			h.touchString(pubid)

			if h.pendingEntity == nil || h.entityBudget <= 0 {
				return sax.StatusError
			}
			h.entityBudget--
			ext := p.ExternalParser(context, h.encoding)
			if ext == nil {
				return sax.StatusError
			}
			status := h.parse(ext, h.pendingEntity, true)
			ext.Free()
			return status
		},

		SkippedEntity: func(name string, isParam bool) {
			h.touchString(name)
		},

		UnknownEncoding: func(name string) sax.Status {
			h.touchString(name)
			// Always reject, forcing the engine down its
			// unknown-encoding fallback path.
			return sax.StatusError
		},
	}
}
