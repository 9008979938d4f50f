// Package wire implements the docstore frame codec: each request or
// response is a 4-byte big-endian length followed by zstd-compressed
// MessagePack bytes (spec §4.1). Compression uses
// github.com/klauspost/compress/zstd (present in the teacher's dependency
// closure, pulled in indirectly by its AWS SDK usage); serialization uses
// github.com/tinylib/msgp/msgp, the same library the teacher's dsort
// package uses to stream records to disk.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const maxFrameLen = 64 * 1024 * 1024

// DecodeError wraps any failure to turn frame bytes into a Command or
// Response: bad zstd framing, bad MessagePack, or an unrecognized shape.
type DecodeError struct{ Reason string }

func (e *DecodeError) Error() string { return "decode: " + e.Reason }

// EncodeError wraps the rare failure to serialize a Command or Response.
type EncodeError struct{ Reason string }

func (e *EncodeError) Error() string { return "encode: " + e.Reason }

// ReadFrame reads one length-prefixed frame and returns its payload bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("frame too large: %d bytes", n)}
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
