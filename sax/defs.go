// Package sax defines the contract between a streaming, callback-driven
// XML parser engine and the code that drives it. The engine itself lives
// elsewhere; this package only fixes the API surface: parser construction
// with a pluggable allocator, handler registration, chunked feeding with
// cooperative suspend/resume, reset, and the element content-model tree
// delivered to declaration handlers.
//
// The shape of the API follows the classic streaming-parser model:
//   - an Engine constructs Parsers,
//   - a Parser consumes input in chunks via Parse(data, final),
//   - registered Handlers fire as markup is recognized,
//   - a handler may Stop the parser, after which the caller Resumes it.
//
// All of it is strictly single-threaded: a Parser must never be used from
// more than one goroutine.
package sax

import "strconv"

// Status is the tri-state outcome of Parse, Resume and Stop.
type Status int

const (
	// StatusOK means the call consumed its input successfully.
	StatusOK Status = iota

	// StatusError means the parser hit a parse error or ran out of
	// memory; Err reports the cause.
	StatusError

	// StatusSuspended means a handler stopped the parser mid-input.
	// The caller must Resume until the status changes.
	StatusSuspended
)

// String returns the conventional upper-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusSuspended:
		return "SUSPENDED"
	default:
		return "STATUS(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParamEntityParsing selects how the engine treats parameter entities.
type ParamEntityParsing int

const (
	ParamEntityParsingNever ParamEntityParsing = iota
	ParamEntityParsingUnlessStandalone
	ParamEntityParsingAlways
)

// Attribute is a single name/value pair delivered with StartElement.
type Attribute struct {
	Name  string
	Value string
}

// Allocator is the triple of memory hooks a Parser is constructed with.
// Engines route every internal allocation through these so that callers
// can observe and perturb allocation behavior. A nil result from Alloc
// or Realloc is an allocation failure and must surface from the engine
// as an ordinary out-of-memory parse error, never as a panic.
type Allocator struct {
	Alloc   func(size int) []byte
	Realloc func(buf []byte, size int) []byte
	Free    func(buf []byte)
}

// Parser is one streaming parse instance. Reset clears handler
// registrations along with all buffered state; callers that want
// callbacks after a reset must register them again.
type Parser interface {
	// SetHandlers installs the callback table. A nil table or nil
	// individual fields simply disable the corresponding callbacks.
	SetHandlers(h *Handlers)

	// SetHashSalt seeds the engine's internal hash tables.
	SetHashSalt(salt uint64)

	// SetParamEntityParsing selects parameter-entity handling.
	SetParamEntityParsing(mode ParamEntityParsing)

	// Parse feeds the next chunk. final marks the end of the document.
	Parse(data []byte, final bool) Status

	// Resume continues a parse stopped by Handlers.Comment et al.
	Resume() Status

	// Stop suspends (resumable=true) or aborts (resumable=false) the
	// parse from within a handler.
	Stop(resumable bool) Status

	// Reset returns the parser to its just-constructed state with the
	// given encoding, dropping buffered input, error state and all
	// handler registrations.
	Reset(encoding string)

	// FreeContentModel releases a content-model tree delivered to
	// Handlers.ElementDecl. Each delivered model must be released
	// exactly once.
	FreeContentModel(m *Content)

	// ExternalParser derives a nested parser for an external entity,
	// inheriting this parser's allocator and handler table.
	ExternalParser(context, encoding string) Parser

	// Free releases the parser. The parser must not be used afterwards.
	Free()

	// Err reports the cause of the most recent StatusError, or nil.
	Err() error
}

// Engine constructs Parsers. encoding is an encoding label such as
// "UTF-8", or "" to auto-detect; nsSep separates namespace URI from
// local name in qualified names. NewParser returns nil when the
// allocator refuses the very first allocation.
type Engine interface {
	NewParser(encoding string, mem *Allocator, nsSep byte) Parser
}
