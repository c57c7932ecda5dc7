package execrun

import "bytes"

// cappedBuffer retains at most max bytes and silently discards the rest, so a
// chatty grading script cannot balloon memory.
type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining > 0 {
		if int64(len(p)) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	// Report full length so the writer side never sees a short write.
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
