package shell

import "fmt"

// cappedBuffer collects a byte stream within a fixed budget by keeping
// the head and a sliding tail, eliding the middle. Command output
// carries its signal at the start and the end, so both survive even
// when a command floods the terminal.
type cappedBuffer struct {
	limit   int
	head    []byte
	tail    []byte
	dropped int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	written := len(p)

	if b.limit <= 0 {
		b.head = append(b.head, p...)
		return written, nil
	}

	headCap := b.limit / 2
	if len(b.head) < headCap {
		n := min(headCap-len(b.head), len(p))
		b.head = append(b.head, p[:n]...)
		p = p[n:]
		if len(p) == 0 {
			return written, nil
		}
	}

	tailCap := b.limit - headCap
	b.tail = append(b.tail, p...)
	if overflow := len(b.tail) - tailCap; overflow > 0 {
		b.dropped += overflow
		b.tail = append(b.tail[:0], b.tail[overflow:]...)
	}
	return written, nil
}

func (b *cappedBuffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

// Len returns the number of retained bytes.
func (b *cappedBuffer) Len() int {
	return len(b.head) + len(b.tail)
}

// Truncated reports whether any bytes were elided.
func (b *cappedBuffer) Truncated() bool {
	return b.dropped > 0
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return string(b.head) + string(b.tail)
	}
	marker := fmt.Sprintf("\n... [%d bytes elided] ...\n", b.dropped)
	return string(b.head) + marker + string(b.tail)
}
