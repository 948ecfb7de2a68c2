package cas

import (
	"bytes"
	"io"

	"github.com/shamaton/msgpack/v2"
)

// TypedEntry wraps a serialized Hashable with its type tag. The stored bytes
// (and so the hash) are those of the TypedEntry.
type TypedEntry struct {
	TypeTag string
	Data    []byte
}

func (t *TypedEntry) Serialize(w io.Writer) error {
	return msgpack.MarshalWrite(w, t)
}

func (t *TypedEntry) Deserialize(r io.Reader) error {
	return msgpack.UnmarshalRead(r, t)
}

func encodeEntry(item Hashable) ([]byte, error) {
	var data bytes.Buffer
	if err := item.Serialize(&data); err != nil {
		return nil, err
	}
	entry := &TypedEntry{TypeTag: item.TypeTag(), Data: data.Bytes()}
	var buf bytes.Buffer
	if err := entry.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
