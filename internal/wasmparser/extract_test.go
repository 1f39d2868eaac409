package wasmparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/tetratelabs/wasitest/internal/testing/wasmgen"
)

// testCtx is an arbitrary, non-default context. Non-nil also prevents linter errors.
var testCtx = context.WithValue(context.Background(), struct{}{}, "arbitrary")

func TestExtractCustomSection(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{
			name:     "only section",
			input:    module([]byte{SectionIDCustom, 0x05, 0x01, 'x', 'a', 'b', 'c'}),
			expected: []byte("abc"),
		},
		{
			name:     "empty data",
			input:    module([]byte{SectionIDCustom, 0x02, 0x01, 'x'}),
			expected: []byte{},
		},
		{
			name: "skips other sections",
			input: module(
				[]byte{SectionIDCustom, 0x03, 0x01, 'y', 'n'},
				[]byte{SectionIDType, 0x01, 0x00},
				[]byte{SectionIDCustom, 0x03, 0x01, 'x', 'y'},
				[]byte{0x7f, 0x02, 0xff, 0xff}, // unknown section IDs are opaque
			),
			expected: []byte("y"),
		},
		{
			name: "last wins",
			input: module(
				[]byte{SectionIDCustom, 0x03, 0x01, 'x', '1'},
				[]byte{SectionIDCustom, 0x03, 0x01, 'x', '2'},
			),
			expected: []byte("2"),
		},
		{
			name:     "name is exact",
			input:    module([]byte{SectionIDCustom, 0x04, 0x02, 'x', 'x', '!'}, []byte{SectionIDCustom, 0x03, 0x01, 'x', '?'}),
			expected: []byte("?"),
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			data, err := ExtractCustomSection(tc.input, "x")
			require.NoError(t, err)
			require.Equal(t, tc.expected, data)
		})
	}
}

func TestExtractCustomSection_notFound(t *testing.T) {
	for _, input := range [][]byte{
		header,
		module([]byte{SectionIDCustom, 0x02, 0x01, 'y'}),
		module([]byte{SectionIDCustom, 0x03, 0x02, 'x', 'x'}),
		wasmgen.New().Stdout("x").Build(),
	} {
		_, err := ExtractCustomSection(input, "x")
		require.ErrorIs(t, err, ErrSectionNotFound)
		require.NotErrorIs(t, err, ErrInvalidBinaryFormat)
	}
}

func TestExtractCustomSection_invalid(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		expectedErr string
	}{
		{
			name:        "empty",
			input:       nil,
			expectedErr: "invalid binary format: truncated at offset 0: need 8 more bytes",
		},
		{
			name:        "truncated header",
			input:       header[:6],
			expectedErr: "invalid binary format: truncated at offset 0: need 2 more bytes",
		},
		{
			name:        "truncated section",
			input:       module([]byte{SectionIDCustom, 0x05, 0x01, 'x', 'a'}),
			expectedErr: "invalid binary format: truncated at offset 8: need 2 more bytes",
		},
		{
			// the section is found, but the module must still parse to its end.
			name:        "truncated after section",
			input:       module([]byte{SectionIDCustom, 0x02, 0x01, 'x'}, []byte{SectionIDType, 0x03}),
			expectedErr: "invalid binary format: truncated at offset 12: need 3 more bytes",
		},
		{
			name:        "not wasm",
			input:       []byte("pooh"),
			expectedErr: "invalid binary format: invalid magic number",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractCustomSection(tc.input, "x")
			require.ErrorIs(t, err, ErrInvalidBinaryFormat)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestExtractCustomSection_aliasesInput(t *testing.T) {
	bin := module([]byte{SectionIDCustom, 0x03, 0x01, 'x', 'a'})
	data, err := ExtractCustomSection(bin, "x")
	require.NoError(t, err)

	bin[len(bin)-1] = 'b'
	require.Equal(t, []byte("b"), data)
}

// TestExtractCustomSection_agreesWithRuntime ensures the sections found match
// what the runtime itself decodes.
func TestExtractCustomSection_agreesWithRuntime(t *testing.T) {
	bin := wasmgen.New().
		LeadingCustomSection("lead", []byte("front")).
		Stdout("foo").
		TestData("stdout = 'foo'\n").
		Build()

	r := wazero.NewRuntimeWithConfig(testCtx, wazero.NewRuntimeConfig().WithCustomSections(true))
	defer r.Close(testCtx)

	compiled, err := r.CompileModule(testCtx, bin)
	require.NoError(t, err)

	sections := compiled.CustomSections()
	require.Equal(t, 2, len(sections))
	for _, s := range sections {
		data, err := ExtractCustomSection(bin, s.Name())
		require.NoError(t, err)
		require.Equal(t, s.Data(), data)
	}
}

func TestReplaceCustomSection(t *testing.T) {
	bin := module(
		[]byte{SectionIDCustom, 0x03, 0x01, 'x', '1'},
		[]byte{SectionIDType, 0x01, 0x00},
		[]byte{SectionIDCustom, 0x03, 0x01, 'y', '2'},
		[]byte{SectionIDCustom, 0x03, 0x01, 'x', '3'},
	)

	replaced, err := ReplaceCustomSection(bin, "x", []byte("new"))
	require.NoError(t, err)
	require.Equal(t, module(
		[]byte{SectionIDType, 0x01, 0x00},
		[]byte{SectionIDCustom, 0x03, 0x01, 'y', '2'},
		[]byte{SectionIDCustom, 0x05, 0x01, 'x', 'n', 'e', 'w'},
	), replaced)

	data, err := ExtractCustomSection(replaced, "x")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)

	// The input is not modified.
	data, err = ExtractCustomSection(bin, "x")
	require.NoError(t, err)
	require.Equal(t, []byte("3"), data)
}

func TestReplaceCustomSection_appends(t *testing.T) {
	bin := wasmgen.New().Stdout("hi").Build()

	replaced, err := ReplaceCustomSection(bin, wasmgen.TestDataSection, []byte("stdout = 'hi'"))
	require.NoError(t, err)
	require.Equal(t, bin, replaced[:len(bin)])

	data, err := ExtractCustomSection(replaced, wasmgen.TestDataSection)
	require.NoError(t, err)
	require.Equal(t, []byte("stdout = 'hi'"), data)
}

func TestReplaceCustomSection_errors(t *testing.T) {
	_, err := ReplaceCustomSection([]byte("pooh"), "x", nil)
	require.ErrorIs(t, err, ErrInvalidBinaryFormat)

	_, err = ReplaceCustomSection(header, "\xff", nil)
	require.EqualError(t, err, `custom section name "\xff" is not valid UTF-8`)
}
