package runner

import (
	"bytes"
	"io/fs"
	"sync"
)

// capture collects one output stream of a run. The running program holds it
// as an io.Writer until seal, after which only the verifier reads it.
type capture struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	sealed bool
}

// Write implements io.Writer
func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return 0, fs.ErrClosed
	}
	return c.buf.Write(p)
}

// seal revokes the writer and returns everything written.
func (c *capture) seal() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	return c.buf.String()
}
