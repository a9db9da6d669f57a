package runner

import "bytes"

// boundedBuffer keeps at most max bytes and silently drops the rest. The
// subprocess never sees a write error, so it cannot die on a full pipe.
type boundedBuffer struct {
	buf bytes.Buffer
	max int
}

func newBoundedBuffer(max int) *boundedBuffer {
	return &boundedBuffer{max: max}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }
