package dashboard

import (
	"bytes"
	"sync"
)

const defaultLogCapacity = 500

// LogBuffer collects log output while the dashboard owns the terminal. It is
// written by the logger and read by the UI concurrently, and keeps only the
// most recent lines. The zero value holds defaultLogCapacity lines.
type LogBuffer struct {
	mu      sync.Mutex
	ring    []string
	next    int  // slot the next line goes to
	full    bool // ring has wrapped
	partial []byte
}

// NewLogBuffer returns a buffer keeping the last capacity lines.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &LogBuffer{ring: make([]string, capacity)}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring == nil {
		b.ring = make([]string, defaultLogCapacity)
	}

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			b.partial = append(b.partial, rest...)
			break
		}
		line := string(append(b.partial, rest[:i]...))
		b.partial = b.partial[:0]
		b.push(line)
		rest = rest[i+1:]
	}
	return len(p), nil
}

func (b *LogBuffer) push(line string) {
	b.ring[b.next] = line
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
}

// Lines returns the last n complete lines, oldest first.
func (b *LogBuffer) Lines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = len(b.ring)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	start := b.next - n
	if start < 0 {
		start += len(b.ring)
	}
	for i := range out {
		out[i] = b.ring[(start+i)%len(b.ring)]
	}
	return out
}
