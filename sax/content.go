package sax

import "strconv"

// ContentType discriminates the nodes of an element content model.
type ContentType int

const (
	// CTypeEmpty is <!ELEMENT x EMPTY>.
	CTypeEmpty ContentType = iota + 1
	// CTypeAny is <!ELEMENT x ANY>.
	CTypeAny
	// CTypeMixed is (#PCDATA) or (#PCDATA|a|b)*.
	CTypeMixed
	// CTypeName is a single element name inside a group.
	CTypeName
	// CTypeChoice is (a|b|c).
	CTypeChoice
	// CTypeSeq is (a,b,c).
	CTypeSeq
)

// String returns the DTD-ish spelling of the content type.
func (t ContentType) String() string {
	switch t {
	case CTypeEmpty:
		return "EMPTY"
	case CTypeAny:
		return "ANY"
	case CTypeMixed:
		return "MIXED"
	case CTypeName:
		return "NAME"
	case CTypeChoice:
		return "CHOICE"
	case CTypeSeq:
		return "SEQ"
	default:
		return "CTYPE(" + strconv.Itoa(int(t)) + ")"
	}
}

// Quant is the repetition quantifier attached to a content-model node.
type Quant int

const (
	QuantNone Quant = iota // no quantifier
	QuantOpt               // ?
	QuantRep               // *
	QuantPlus              // +
)

// String returns the quantifier character, or "" for QuantNone.
func (q Quant) String() string {
	switch q {
	case QuantNone:
		return ""
	case QuantOpt:
		return "?"
	case QuantRep:
		return "*"
	case QuantPlus:
		return "+"
	default:
		return "QUANT(" + strconv.Itoa(int(q)) + ")"
	}
}

// Content is one node of the content-model tree delivered to
// Handlers.ElementDecl. Shape invariants, by Type:
//
//	EMPTY, ANY:  Quant == QuantNone, Name == "", no Children
//	MIXED:       Quant in {None, Rep}, Name == "", Children all CTypeName
//	NAME:        Name != "", no Children, any Quant
//	CHOICE, SEQ: Name == "", Children recurse
//
// Trees are engine-owned; release each delivered tree exactly once with
// Parser.FreeContentModel.
type Content struct {
	Type     ContentType
	Quant    Quant
	Name     string
	Children []*Content
}
