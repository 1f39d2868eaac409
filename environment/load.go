package environment

import (
	"errors"

	"github.com/tetratelabs/wasitest/internal/wasmparser"
)

// ErrInvalidBinaryFormat is returned when the binary is not a well-formed
// module, including when it is truncated.
var ErrInvalidBinaryFormat = wasmparser.ErrInvalidBinaryFormat

// Lookup decodes the Environment embedded in wasm. When wasm has no
// SectionName section, it returns the zero Environment and false.
func Lookup(wasm []byte) (*Environment, bool, error) {
	data, err := wasmparser.ExtractCustomSection(wasm, SectionName)
	if errors.Is(err, wasmparser.ErrSectionNotFound) {
		return &Environment{}, false, nil
	} else if err != nil {
		return nil, false, err
	}

	e, err := Decode(data)
	if err != nil {
		return nil, true, err
	}
	return e, true, nil
}

// Load is Lookup without reporting if the section was present.
func Load(wasm []byte) (*Environment, error) {
	e, _, err := Lookup(wasm)
	return e, err
}

// Embed returns a copy of wasm carrying e in its SectionName section,
// replacing any existing one.
func Embed(wasm []byte, e *Environment) ([]byte, error) {
	data, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return wasmparser.ReplaceCustomSection(wasm, SectionName, data)
}
