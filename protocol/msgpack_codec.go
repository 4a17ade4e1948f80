package protocol

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MessagePackCodec implements the Codec interface using MessagePack encoding.
// Messages are written back to back; MessagePack values are self-delimiting.
type MessagePackCodec struct {
	rw      io.ReadWriteCloser
	encoder *msgpack.Encoder
	decoder *msgpack.Decoder
}

// NewMessagePackCodec creates a new MessagePack codec. Field names follow
// the json struct tags so both codecs share one schema.
func NewMessagePackCodec(rw io.ReadWriteCloser) *MessagePackCodec {
	enc := msgpack.NewEncoder(rw)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	dec := msgpack.NewDecoder(rw)
	dec.SetCustomStructTag("json")
	return &MessagePackCodec{
		rw:      rw,
		encoder: enc,
		decoder: dec,
	}
}

// Encode writes msg as one MessagePack map.
func (c *MessagePackCodec) Encode(msg *Message) error {
	return c.encoder.Encode(msg)
}

// Decode reads the next message.
func (c *MessagePackCodec) Decode(msg *Message) error {
	*msg = Message{}
	return c.decoder.Decode(msg)
}

// Close closes the underlying ReadWriteCloser.
func (c *MessagePackCodec) Close() error {
	return c.rw.Close()
}
