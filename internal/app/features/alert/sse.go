// internal/app/features/alert/sse.go
package alert

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WriteEvent writes one server-sent event. Every line of data gets its own
// "data:" field so multi-line HTML survives intact.
func WriteEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// fragmentBuffer captures a rendered fragment so it can be framed as an event.
type fragmentBuffer struct {
	bytes.Buffer
	header http.Header
}

func newFragmentBuffer() *fragmentBuffer {
	return &fragmentBuffer{header: http.Header{}}
}

func (f *fragmentBuffer) Header() http.Header { return f.header }
func (f *fragmentBuffer) WriteHeader(int)     {}
