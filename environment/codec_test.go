package environment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *Environment
	}{
		{
			name:     "empty",
			input:    "",
			expected: &Environment{},
		},
		{
			name:     "stdout",
			input:    "\nstdout = 'foo'\n",
			expected: &Environment{Stdout: "foo"},
		},
		{
			name:     "readdir",
			input:    "\nstdout = '|.|..|'\ndirs = ['/']\n",
			expected: &Environment{Stdout: "|.|..|", Dirs: NewDirs("/")},
		},
		{
			name:     "prestat",
			input:    "\nstdout = '|/|/foo|'\ndirs = ['/', '/foo']\n",
			expected: &Environment{Stdout: "|/|/foo|", Dirs: NewDirs("/", "/foo")},
		},
		{
			name: "all keys",
			input: `
exit = -2
args = ["b", "a", "b"]
dirs = ["/tmp", "/"]
stdin = "in"
stdout = """
multi
line
"""
stderr = "err\u0000"

[vars]
Z = "1"
A = "2=3"
`,
			expected: &Environment{
				Exit:   -2,
				Vars:   map[string]string{"Z": "1", "A": "2=3"},
				Args:   []string{"b", "a", "b"},
				Dirs:   NewDirs("/", "/tmp"),
				Stdin:  "in",
				Stdout: "multi\nline\n",
				Stderr: "err\x00",
			},
		},
		{
			name:     "duplicate dirs collapse",
			input:    "dirs = ['/', '/']",
			expected: &Environment{Dirs: NewDirs("/")},
		},
		{
			name:     "empty collections are nil",
			input:    "args = []\ndirs = []\nvars = {}",
			expected: &Environment{},
		},
		{
			name:     "unknown keys are ignored",
			input:    "stdout = 'x'\nfuture = true",
			expected: &Environment{Stdout: "x"},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			e, err := Decode([]byte(tc.input))
			require.NoError(t, err)
			require.Equal(t, tc.expected, e)
		})
	}
}

func TestDecode_errors(t *testing.T) {
	for _, input := range []string{
		"stdout = ",
		"stdout = 'unterminated",
		"exit = 'zero'",
		"exit = 2147483648",
		"exit = 1.5",
		"vars = ['A=B']",
		"vars = { A = 1 }",
		"args = 'a b'",
		"dirs = [1]",
		"stdin = ['x']",
		"stdout = 1",
		"stderr = true",
	} {
		_, err := Decode([]byte(input))
		require.ErrorIs(t, err, ErrMalformedMetadata, input)
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(&Environment{})
	require.NoError(t, err)
	require.Empty(t, string(data))

	data, err = Encode(&Environment{Stdout: "foo", Dirs: NewDirs("/foo", "/")})
	require.NoError(t, err)
	require.Equal(t, "dirs = [\"/\", \"/foo\"]\nstdout = \"foo\"\n", string(data))
}

func TestEncode_roundTrip(t *testing.T) {
	for _, e := range []*Environment{
		{},
		{Exit: 2},
		{Exit: -1},
		{Stdout: "foo"},
		{Stdout: "|.|..|", Dirs: NewDirs("/")},
		{Stdout: "|/|/foo|", Dirs: NewDirs("/", "/foo")},
		{Args: []string{"", "a b", "--flag=x", "a"}},
		{Vars: map[string]string{"A.B": "dotted", "UNICODE": "☃", "Q": "'\"\\"}},
		{Stdin: "line 1\nline 2\r\n\t", Stdout: "\x00\x01\x1b", Stderr: "'''"},
		{
			Exit:   42,
			Vars:   map[string]string{"HOME": "/", "PATH": "/bin:/usr/bin"},
			Args:   []string{"one", "two"},
			Dirs:   NewDirs("/", "/tmp", "/a/b"),
			Stdin:  "in",
			Stdout: "out",
			Stderr: "err",
		},
	} {
		data, err := Encode(e)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err, string(data))
		require.Equal(t, e, decoded, string(data))
	}
}
