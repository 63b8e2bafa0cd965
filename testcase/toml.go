package testcase

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
)

// tomlTestcase is the on-disk shape of a human-written seed case:
//
//	encoding = "UTF8"
//	fail_allocations = [3, 17]
//
//	[[actions]]
//	type = "chunk"
//	data = "<doc>"
//
//	[[actions]]
//	type = "last_chunk"
//	data = "</doc>"
type tomlTestcase struct {
	Encoding        string       `toml:"encoding"`
	FailAllocations []int64      `toml:"fail_allocations"`
	Actions         []tomlAction `toml:"actions"`
}

type tomlAction struct {
	Type string `toml:"type"`
	Data string `toml:"data"`
}

// DecodeTOML parses a TOML seed case.
func DecodeTOML(data []byte) (*Testcase, error) {
	var raw tomlTestcase
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("testcase: toml: %w", err)
	}
	return raw.convert()
}

// DecodeTOMLFile parses a TOML seed case from a file.
func DecodeTOMLFile(path string) (*Testcase, error) {
	var raw tomlTestcase
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("testcase: toml %q: %w", path, err)
	}
	return raw.convert()
}

func (raw *tomlTestcase) convert() (*Testcase, error) {
	enc, err := ParseEncoding(raw.Encoding)
	if err != nil {
		return nil, err
	}
	tc := &Testcase{Encoding: enc}

	for _, v := range raw.FailAllocations {
		idx, err := safecast.Conv[int](v)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("testcase: fail_allocations index %d out of range", v)
		}
		tc.FailAllocations = append(tc.FailAllocations, idx)
	}

	for i, a := range raw.Actions {
		var kind ActionKind
		switch a.Type {
		case "chunk":
			kind = ActionChunk
		case "last_chunk":
			kind = ActionLastChunk
		case "reset":
			kind = ActionReset
		case "external_entity":
			kind = ActionExternalEntity
		default:
			return nil, fmt.Errorf("testcase: action %d: unknown type %q", i, a.Type)
		}
		if kind == ActionReset && a.Data != "" {
			return nil, fmt.Errorf("testcase: action %d: reset carries no data", i)
		}
		act := Action{Kind: kind}
		if a.Data != "" {
			act.Data = []byte(a.Data)
		}
		tc.Actions = append(tc.Actions, act)
	}
	return tc, nil
}
