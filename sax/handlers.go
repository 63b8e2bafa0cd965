package sax

// Handlers is the full callback table a Parser can drive. Every field is
// optional; a nil field disables that callback. The table is cleared by
// Parser.Reset, so callers must re-install it after an explicit reset if
// they still want callbacks.
//
// Ownership of arguments: string arguments are valid indefinitely, but
// []byte arguments (CharacterData, Default, EntityDecl value) are only
// valid for the duration of the call, since engines may alias internal
// buffers that are recycled on the next Parse or Reset. Content-model
// trees passed to ElementDecl are owned by the callee and must be
// released with Parser.FreeContentModel exactly once.
type Handlers struct {
	// XMLDecl fires for the <?xml ...?> declaration. standalone is
	// 1, 0 or -1 when the pseudo-attribute is yes, no or absent.
	XMLDecl func(version, encoding string, standalone int)

	// ElementDecl fires for <!ELEMENT ...> declarations. The model
	// tree must be freed via Parser.FreeContentModel.
	ElementDecl func(name string, model *Content)

	// AttlistDecl fires once per attribute in <!ATTLIST ...>.
	AttlistDecl func(elname, attname, atttype, dflt string, required bool)

	StartElement func(name string, attrs []Attribute)
	EndElement   func(name string)

	// CharacterData delivers text content. The slice is only valid for
	// the duration of the call.
	CharacterData func(data []byte)

	ProcessingInstruction func(target, data string)

	Comment func(data string)

	StartCDATA func()
	EndCDATA   func()

	// Default receives markup not claimed by any other handler, with
	// entity expansion still enabled. Slice validity as CharacterData.
	Default func(data []byte)

	StartDoctype func(name, sysid, pubid string, hasInternalSubset bool)
	EndDoctype   func()

	// EntityDecl fires for every entity declaration; value is non-nil
	// only for internal entities.
	EntityDecl func(name string, isParam bool, value []byte, base, sysid, pubid, notation string)

	NotationDecl func(name, base, sysid, pubid string)

	StartNamespace func(prefix, uri string)
	EndNamespace   func(prefix string)

	// NotStandalone is consulted when a non-standalone document would
	// require reading an external subset; returning StatusError makes
	// the parse fail.
	NotStandalone func() Status

	// ExternalEntityRef resolves a reference to an external entity.
	// Implementations typically derive a nested parser via
	// Parser.ExternalParser and return its final status.
	ExternalEntityRef func(p Parser, context, base, sysid, pubid string) Status

	SkippedEntity func(name string, isParam bool)

	// UnknownEncoding is consulted for encoding labels the engine does
	// not know. Returning StatusError rejects the encoding and fails
	// the parse.
	UnknownEncoding func(name string) Status
}
