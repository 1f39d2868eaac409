package wasmparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/tetratelabs/wasitest/internal/leb128"
)

// PayloadKind classifies what a successful Parser.Parse call produced.
type PayloadKind uint8

const (
	// PayloadVersion is the module header: magic number and version.
	PayloadVersion PayloadKind = iota + 1
	// PayloadSection is any non-custom section. Its contents are opaque.
	PayloadSection
	// PayloadCustomSection is a custom section split into name and data.
	PayloadCustomSection
	// PayloadEnd marks the logical end of the module. It consumes no bytes.
	PayloadEnd
)

// String implements fmt.Stringer
func (k PayloadKind) String() string {
	switch k {
	case PayloadVersion:
		return "version"
	case PayloadSection:
		return "section"
	case PayloadCustomSection:
		return "custom_section"
	case PayloadEnd:
		return "end"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Payload is one top-level structural element of a module.
//
// Name and Data alias the slice passed to Parser.Parse.
type Payload struct {
	Kind PayloadKind

	// Offset is the position of the first byte of this payload, counted from
	// the start of the module.
	Offset uint64

	// ID is the section ID of a PayloadSection or PayloadCustomSection.
	ID SectionID

	// Name is only set for PayloadCustomSection.
	Name string

	// Data is the bytes following the name of a PayloadCustomSection, or the
	// whole contents of a PayloadSection.
	Data []byte
}

// Chunk is the result of one Parser.Parse call. Exactly one of these is true:
//   - NeedMoreData is non-zero: nothing was consumed and at least that many
//     more bytes must follow the data passed in.
//   - Consumed bytes were read and Payload describes them.
type Chunk struct {
	NeedMoreData uint64
	Consumed     int
	Payload      Payload
}

type parserState uint8

const (
	stateHeader parserState = iota
	stateSection
	stateEnd
)

// errParserDone is returned when Parse is called after PayloadEnd.
var errParserDone = errors.New("parser already reached the end of the module")

// Parser incrementally parses the top-level structure of a WebAssembly 1.0
// (20191205) binary. It never interprets section contents besides the name of
// custom sections, so it accepts sections it does not know.
//
// Callers pass the unconsumed input to Parse until it returns PayloadEnd. When
// the whole module is in memory, eof is true and NeedMoreData means the module
// is truncated.
type Parser struct {
	offset uint64
	state  parserState
}

// NewParser returns a Parser positioned at the start of a module.
func NewParser() *Parser {
	return &Parser{}
}

// Offset returns the number of bytes consumed so far.
func (p *Parser) Offset() uint64 {
	return p.offset
}

// Parse attempts to parse one payload from the start of data.
//
// When eof is true, data is everything left of the module: an empty data at a
// section boundary then produces PayloadEnd. Errors wrap ErrInvalidBinaryFormat.
func (p *Parser) Parse(data []byte, eof bool) (Chunk, error) {
	switch p.state {
	case stateHeader:
		return p.parseHeader(data)
	case stateSection:
		return p.parseSection(data, eof)
	default:
		return Chunk{}, errParserDone
	}
}

func (p *Parser) parseHeader(data []byte) (Chunk, error) {
	if len(data) < headerSize {
		// Reject a wrong magic number without waiting for the rest.
		n := len(data)
		if n > len(Magic) {
			n = len(Magic)
		}
		if !bytes.Equal(data[:n], Magic[:n]) {
			return Chunk{}, ErrInvalidMagicNumber
		}
		return Chunk{NeedMoreData: uint64(headerSize - len(data))}, nil
	}

	if !bytes.Equal(data[:4], Magic) {
		return Chunk{}, ErrInvalidMagicNumber
	}
	if !bytes.Equal(data[4:headerSize], version) {
		return Chunk{}, ErrInvalidVersion
	}

	c := p.emit(headerSize, Payload{Kind: PayloadVersion})
	p.state = stateSection
	return c, nil
}

func (p *Parser) parseSection(data []byte, eof bool) (Chunk, error) {
	if len(data) == 0 {
		if !eof {
			return Chunk{NeedMoreData: 1}, nil
		}
		p.state = stateEnd
		return Chunk{Payload: Payload{Kind: PayloadEnd, Offset: p.offset}}, nil
	}

	sectionID := data[0]
	sectionSize, n, err := leb128.LoadUint32(data[1:])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Chunk{NeedMoreData: 1}, nil
	} else if err != nil {
		return Chunk{}, fmt.Errorf("%w: %s section at offset %d: get size of section: %v",
			ErrInvalidBinaryFormat, SectionIDName(sectionID), p.offset, err)
	}

	contentStart := 1 + n
	sectionEnd := contentStart + uint64(sectionSize)
	if have := uint64(len(data)); have < sectionEnd {
		return Chunk{NeedMoreData: sectionEnd - have}, nil
	}

	contents := data[contentStart:sectionEnd]
	payload := Payload{Kind: PayloadSection, Offset: p.offset, ID: sectionID, Data: contents}
	if sectionID == SectionIDCustom {
		name, customData, err := decodeCustomSection(contents)
		if err != nil {
			return Chunk{}, fmt.Errorf("%w: %s section at offset %d: %v",
				ErrInvalidBinaryFormat, SectionIDName(sectionID), p.offset, err)
		}
		payload.Kind = PayloadCustomSection
		payload.Name = name
		payload.Data = customData
	}
	return p.emit(int(sectionEnd), payload), nil
}

func (p *Parser) emit(consumed int, payload Payload) Chunk {
	p.offset += uint64(consumed)
	return Chunk{Consumed: consumed, Payload: payload}
}

// decodeCustomSection splits the contents of a custom section into its name
// and the data that follows.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#custom-section%E2%91%A0
func decodeCustomSection(contents []byte) (string, []byte, error) {
	nameLen, n, err := leb128.LoadUint32(contents)
	if err != nil {
		return "", nil, fmt.Errorf("read name size: %v", err)
	}
	if uint64(nameLen) > uint64(len(contents))-n {
		return "", nil, fmt.Errorf("malformed custom section name: %d bytes exceed section size %d", nameLen, len(contents))
	}
	name := contents[n : n+uint64(nameLen)]
	if !utf8.Valid(name) {
		return "", nil, fmt.Errorf("custom section name is not valid UTF-8")
	}
	return string(name), contents[n+uint64(nameLen):], nil
}
