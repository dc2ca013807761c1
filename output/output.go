// Package output is the text sink every monitoring report goes
// through: one line per event, optionally teed to a log file.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Console struct {
	mu   sync.Mutex
	w    io.Writer
	logf io.WriteCloser
}

func New(w io.Writer) *Console {
	return &Console{w: w}
}

func Stdout() *Console {
	return New(os.Stdout)
}

// Printf writes one output line. A trailing newline is appended.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf(format, args...)
	fmt.Fprintln(c.w, line)
	if c.logf != nil {
		fmt.Fprintln(c.logf, line)
	}
}

// OpenLogFile starts copying all output to the named file, closing any
// previously opened one.
func (c *Console) OpenLogFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logf != nil {
		c.logf.Close()
	}
	c.logf = f
	return nil
}

// CloseLogFile stops logging output to file.
func (c *Console) CloseLogFile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logf != nil {
		c.logf.Close()
		c.logf = nil
	}
}
