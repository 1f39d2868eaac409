package environment

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ErrMalformedMetadata is returned when a TOML document can't be decoded into
// an Environment, either because it is not TOML or because a key has the
// wrong type.
var ErrMalformedMetadata = errors.New("malformed metadata")

// document is the TOML shape of an Environment.
type document struct {
	Exit   int32             `toml:"exit,omitzero"`
	Vars   map[string]string `toml:"vars,omitempty"`
	Args   []string          `toml:"args,omitempty"`
	Dirs   []string          `toml:"dirs,omitempty"`
	Stdin  string            `toml:"stdin,omitempty"`
	Stdout string            `toml:"stdout,omitempty"`
	Stderr string            `toml:"stderr,omitempty"`
}

// Decode parses a TOML document. Unknown keys are ignored and missing keys
// keep their zero value. Empty collections decode to nil.
func Decode(data []byte) (*Environment, error) {
	var doc document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}

	e := &Environment{
		Exit:   doc.Exit,
		Args:   doc.Args,
		Dirs:   NewDirs(doc.Dirs...),
		Stdin:  doc.Stdin,
		Stdout: doc.Stdout,
		Stderr: doc.Stderr,
	}
	if len(doc.Vars) > 0 {
		e.Vars = doc.Vars
	}
	if len(e.Args) == 0 {
		e.Args = nil
	}
	return e, nil
}

// Encode returns e as a TOML document accepted by Decode. Zero values are
// omitted and Dirs are written sorted.
func Encode(e *Environment) ([]byte, error) {
	doc := document{
		Exit:   e.Exit,
		Vars:   e.Vars,
		Args:   e.Args,
		Stdin:  e.Stdin,
		Stdout: e.Stdout,
		Stderr: e.Stderr,
	}
	if len(e.Dirs) > 0 {
		doc.Dirs = e.Dirs.Sorted()
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}
