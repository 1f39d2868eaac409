package wasmparser

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBinaryFormat is the root of every error caused by bytes that
	// are not a well-formed module, including truncation.
	ErrInvalidBinaryFormat = errors.New("invalid binary format")

	// ErrSectionNotFound is returned by ExtractCustomSection when the module
	// ends without a custom section of the requested name.
	ErrSectionNotFound = errors.New("section not found")

	ErrInvalidMagicNumber = fmt.Errorf("%w: invalid magic number", ErrInvalidBinaryFormat)
	ErrInvalidVersion     = fmt.Errorf("%w: invalid version header", ErrInvalidBinaryFormat)
)
