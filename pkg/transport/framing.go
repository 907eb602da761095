package transport

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// LengthPrefixSize is the size of the TCP frame header.
	LengthPrefixSize = 4

	// MaxMessageSize bounds a single message on any transport.
	MaxMessageSize = 1 << 20
)

// StreamWriter adds a 4-byte little-endian length prefix to each message.
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter creates a new stream writer.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WriteMessage writes data as one frame. Header and payload go out in a
// single Write so concurrent writers on separate StreamWriters cannot
// interleave inside a frame.
func (sw *StreamWriter) WriteMessage(data []byte) error {
	if len(data) == 0 {
		return ErrInvalidLength
	}
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	buf := make([]byte, LengthPrefixSize+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[LengthPrefixSize:], data)
	_, err := sw.w.Write(buf)
	return err
}

// StreamReader reads length-prefixed frames.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader creates a new stream reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadMessage reads one frame and returns its payload. io.EOF is returned
// unchanged when the stream ends cleanly between frames.
func (sr *StreamReader) ReadMessage() ([]byte, error) {
	var lenBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(sr.r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, ErrStreamReadFailed
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, ErrInvalidLength
	}
	if n > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(sr.r, data); err != nil {
		return nil, ErrStreamReadFailed
	}
	return data, nil
}
