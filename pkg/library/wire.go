package library

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wireVersion tags the binary form.
const wireVersion = 1

type wireFile struct {
	Version   int        `cbor:"1,keyasint"`
	Functions []Function `cbor:"2,keyasint,omitempty"`
}

// Canonical mode keeps the binary form, and so the fingerprint,
// deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("library: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func encode(fns []Function) ([]byte, error) {
	return cborEncMode.Marshal(wireFile{Version: wireVersion, Functions: fns})
}

// Encode returns the binary form of l.
func (l *Library) Encode() ([]byte, error) {
	return encode(l.Functions())
}

// Decode parses the binary form.
func Decode(data []byte) (*Library, error) {
	var w wireFile
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("library: unmarshal: %w", err)
	}
	if w.Version != wireVersion {
		return nil, fmt.Errorf("library: unsupported version %d", w.Version)
	}
	return New(w.Functions...)
}
