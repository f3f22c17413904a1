// Package extcodec drives third-party point cloud compressors (MPEG G-PCC
// TMC13 and LCP) as subprocesses and extracts their reported metrics from
// the console output.
package extcodec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/banshee-data/octree.report/internal/monitoring"
)

// DefaultTailLines is how much output a failed run includes in its error.
const DefaultTailLines = 20

// Runner executes compressor binaries.
type Runner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// TailLines bounds the output quoted in errors.
	TailLines int
}

// Run executes name with args, merging stdout and stderr. Each output line
// goes to monitoring.Debugf as it arrives. A non-zero exit returns an error
// quoting the last lines of output.
func (r Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	out := &lineWriter{prefix: "[" + name + "] "}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	out.flush()
	text := out.String()
	if err != nil {
		tail := r.TailLines
		if tail <= 0 {
			tail = DefaultTailLines
		}
		return text, fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, lastLines(text, tail))
	}
	return text, nil
}

// lineWriter collects output and logs every complete line.
type lineWriter struct {
	mu      sync.Mutex
	prefix  string
	buf     bytes.Buffer
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		monitoring.Debugf("%s%s", w.prefix, strings.TrimRight(string(w.partial[:i]), "\r"))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		monitoring.Debugf("%s%s", w.prefix, w.partial)
		w.partial = nil
	}
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
