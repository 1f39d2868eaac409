package wasmparser

import (
	"fmt"
	"unicode/utf8"

	"github.com/tetratelabs/wasitest/internal/leb128"
)

// ExtractCustomSection returns the data of the custom section called name.
//
// bin must be the complete module: running out of bytes is an error wrapping
// ErrInvalidBinaryFormat. ErrSectionNotFound is returned when the module ends
// without the section. When a module repeats the section, the last one wins.
//
// The result aliases bin.
func ExtractCustomSection(bin []byte, name string) ([]byte, error) {
	var data []byte
	found := false
	err := walk(bin, func(payload Payload, _ []byte) {
		if payload.Kind == PayloadCustomSection && payload.Name == name {
			data, found = payload.Data, true
		}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
	}
	return data, nil
}

// ReplaceCustomSection returns a copy of bin without any custom section called
// name, followed by one holding data.
func ReplaceCustomSection(bin []byte, name string, data []byte) ([]byte, error) {
	if !utf8.ValidString(name) {
		return nil, fmt.Errorf("custom section name %q is not valid UTF-8", name)
	}

	out := make([]byte, 0, len(bin)+len(name)+len(data)+10)
	err := walk(bin, func(payload Payload, raw []byte) {
		if payload.Kind == PayloadCustomSection && payload.Name == name {
			return
		}
		out = append(out, raw...)
	})
	if err != nil {
		return nil, err
	}
	return append(out, encodeCustomSection(name, data)...), nil
}

// encodeCustomSection encodes the section ID, the size of its contents in
// bytes, then the size prefixed name and the data.
func encodeCustomSection(name string, data []byte) []byte {
	contents := append(leb128.EncodeUint32(uint32(len(name))), name...)
	contents = append(contents, data...)
	section := append([]byte{SectionIDCustom}, leb128.EncodeUint32(uint32(len(contents)))...)
	return append(section, contents...)
}

// walk parses bin to its end, passing each payload and the bytes it consumed
// to fn. PayloadEnd is not passed.
func walk(bin []byte, fn func(payload Payload, raw []byte)) error {
	p := NewParser()
	for read := 0; ; {
		chunk, err := p.Parse(bin[read:], true)
		if err != nil {
			return err
		}
		if chunk.NeedMoreData > 0 {
			return fmt.Errorf("%w: truncated at offset %d: need %d more bytes",
				ErrInvalidBinaryFormat, read, chunk.NeedMoreData)
		}
		if chunk.Payload.Kind == PayloadEnd {
			return nil
		}
		fn(chunk.Payload, bin[read:read+chunk.Consumed])
		read += chunk.Consumed
	}
}
