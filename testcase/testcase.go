// Package testcase defines the structured input consumed by the harness:
// an encoding choice, a list of allocation indices to force-fail, and an
// ordered list of actions to replay against a parser.
//
// Three decoders are provided:
//   - a CBOR codec (Encode/Decode), the canonical corpus file format,
//   - a TOML codec for human-written seed cases,
//   - FromFuzzBytes, a total decoder that derives a test case from
//     arbitrary fuzzer-generated bytes and never fails.
package testcase

import (
	"fmt"

	fxcbor "github.com/fxamacker/cbor/v2"
)

// Encoding selects the encoding label handed to the engine at parser
// construction and reset.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF16
	EncodingISO88591
	EncodingASCII
	// EncodingNone requests engine auto-detection (no label).
	EncodingNone

	// EncodingUnknown is deliberately out of range: its label is the
	// sentinel "UNKNOWN", which drives the engine's unknown-encoding
	// fallback path.
	EncodingUnknown Encoding = 255
)

// Label translates the encoding to the label string the engine expects.
// EncodingNone yields "" (auto-detect); any unrecognized value yields
// the sentinel "UNKNOWN".
func (e Encoding) Label() string {
	switch e {
	case EncodingUTF8:
		return "UTF-8"
	case EncodingUTF16:
		return "UTF-16"
	case EncodingISO88591:
		return "ISO-8859-1"
	case EncodingASCII:
		return "US-ASCII"
	case EncodingNone:
		return ""
	default:
		return "UNKNOWN"
	}
}

// ParseEncoding is the inverse of the enum spelling used in TOML seeds.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "UTF8":
		return EncodingUTF8, nil
	case "UTF16":
		return EncodingUTF16, nil
	case "ISO88591":
		return EncodingISO88591, nil
	case "ASCII":
		return EncodingASCII, nil
	case "NONE", "":
		return EncodingNone, nil
	case "UNKNOWN":
		return EncodingUnknown, nil
	default:
		return 0, fmt.Errorf("testcase: unknown encoding %q", name)
	}
}

// ActionKind discriminates the Action union.
type ActionKind int

const (
	// ActionChunk feeds bytes as a non-final chunk.
	ActionChunk ActionKind = iota
	// ActionLastChunk feeds bytes as the final chunk, then resets and
	// re-registers callbacks.
	ActionLastChunk
	// ActionReset resets the parser and re-registers callbacks without
	// feeding anything.
	ActionReset
	// ActionExternalEntity stores bytes for the next external-entity
	// reference instead of feeding the main parser.
	ActionExternalEntity
)

// Action is one step of a test case. Exactly one variant is active,
// selected by Kind; Data is meaningful for every kind except
// ActionReset. Kinds outside the defined range are ignored by the
// harness, so decoded corpora from newer schema revisions replay
// cleanly.
type Action struct {
	Kind ActionKind `cbor:"1,keyasint"`
	Data []byte     `cbor:"2,keyasint,omitempty"`
}

// Testcase is one complete harness input. It is immutable once decoded.
type Testcase struct {
	Encoding        Encoding `cbor:"1,keyasint"`
	FailAllocations []int    `cbor:"2,keyasint,omitempty"`
	Actions         []Action `cbor:"3,keyasint,omitempty"`
}

// Decode limits. Corpus files are fuzzer-managed, so the decoder bounds
// container sizes rather than trusting them.
const (
	maxDecodeActions = 1 << 12
	maxDecodeNesting = 16
)

var (
	encMode fxcbor.EncMode
	decMode fxcbor.DecMode
)

func init() {
	var err error
	encMode, err = fxcbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = fxcbor.DecOptions{
		MaxArrayElements: maxDecodeActions,
		MaxNestedLevels:  maxDecodeNesting,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes the test case in canonical CBOR.
func (tc *Testcase) Encode() ([]byte, error) {
	return encMode.Marshal(tc)
}

// Decode deserializes a CBOR-encoded test case. Inputs that are not a
// well-formed encoding of a Testcase are rejected with an error.
func Decode(data []byte) (*Testcase, error) {
	var tc Testcase
	if err := decMode.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("testcase: decode: %w", err)
	}
	return &tc, nil
}
