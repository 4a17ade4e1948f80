package protocol

import (
	"bytes"
	"errors"
	"io"
)

type bufferCloser struct {
	*bytes.Buffer
}

func (bufferCloser) Close() error { return nil }

// Marshal encodes msg as a single frame in the given format, for
// transports that carry whole messages (such as WebSocket frames).
func Marshal(format string, msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	codec, err := NewCodec(format, bufferCloser{&buf})
	if err != nil {
		return nil, err
	}
	if err := codec.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes one frame produced by Marshal.
func Unmarshal(format string, data []byte, msg *Message) error {
	codec, err := NewCodec(format, bufferCloser{bytes.NewBuffer(data)})
	if err != nil {
		return err
	}
	if err := codec.Decode(msg); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
