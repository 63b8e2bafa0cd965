package testcase

import "encoding/binary"

// Caps applied by FromFuzzBytes so that pathological inputs cannot make
// a single fuzz iteration arbitrarily expensive.
const (
	maxFuzzActions     = 64
	maxFuzzChunkLen    = 1 << 12
	maxFuzzFailIndices = 8
	maxFuzzFailIndex   = 1 << 10
)

// FromFuzzBytes derives a Testcase from arbitrary bytes. It is total:
// every input, including the empty one, yields a replayable test case,
// so native fuzzing wastes no iterations on decode failures. The layout
// read from the input is
//
//	byte      encoding selector (mod 6; the 6th value is out of range
//	          on purpose, exercising the "UNKNOWN" label path)
//	byte      fail-list length selector
//	uint16*   fail indices, big-endian
//	repeat    byte action selector, then for data-carrying kinds a
//	          big-endian uint16 length followed by that many bytes
//
// Each reader step consumes what is available and substitutes zero for
// what is not, in the spirit of the slice readers this package's codecs
// are built from: (value, rest) pairs over a shrinking buffer.
func FromFuzzBytes(data []byte) *Testcase {
	tc := &Testcase{}

	var sel byte
	sel, data = readByteOrZero(data)
	tc.Encoding = Encoding(sel % 6)

	var nfail byte
	nfail, data = readByteOrZero(data)
	for i := 0; i < int(nfail%(maxFuzzFailIndices+1)); i++ {
		var idx uint16
		idx, data = readUint16OrZero(data)
		tc.FailAllocations = append(tc.FailAllocations, int(idx%maxFuzzFailIndex))
	}

	for len(data) > 0 && len(tc.Actions) < maxFuzzActions {
		sel, data = readByteOrZero(data)
		act := Action{Kind: ActionKind(sel % 4)}
		if act.Kind != ActionReset {
			var n uint16
			n, data = readUint16OrZero(data)
			take := int(n) % (maxFuzzChunkLen + 1)
			if take > len(data) {
				take = len(data)
			}
			act.Data = data[:take]
			data = data[take:]
		}
		tc.Actions = append(tc.Actions, act)
	}
	return tc
}

func readByteOrZero(b []byte) (byte, []byte) {
	if len(b) < 1 {
		return 0, nil
	}
	return b[0], b[1:]
}

func readUint16OrZero(b []byte) (uint16, []byte) {
	if len(b) < 2 {
		// Promote a lone trailing byte rather than dropping it.
		var v uint16
		if len(b) == 1 {
			v = uint16(b[0])
		}
		return v, nil
	}
	return binary.BigEndian.Uint16(b), b[2:]
}
