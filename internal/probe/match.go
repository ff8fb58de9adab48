package probe

import (
	"bytes"
	"errors"
	"io"
)

const readChunkSize = 32 << 10 // 32KB

// bodyContains reads r to the end and reports whether pattern occurs in it.
//
// The body is scanned in chunks, keeping the last len(pattern)-1 bytes of
// each chunk so a match spanning two reads is still found. The whole body is
// always consumed, so a read error is reported even after a match. With
// anyContent set the body is drained without matching.
func bodyContains(r io.Reader, pattern string, anyContent bool) (bool, error) {
	if anyContent || pattern == "" {
		_, err := io.Copy(io.Discard, r)
		return true, err
	}

	needle := []byte(pattern)
	keep := len(needle) - 1
	buf := make([]byte, 0, keep+readChunkSize)
	found := false

	for {
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if !found && bytes.Contains(buf, needle) {
			found = true
		}
		if len(buf) > keep {
			// slide the overlap to the front of the buffer
			buf = buf[:copy(buf, buf[len(buf)-keep:])]
		}
		if errors.Is(err, io.EOF) {
			return found, nil
		}
		if err != nil {
			return found, err
		}
	}
}
