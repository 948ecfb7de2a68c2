package cas

import (
	"bytes"
	"fmt"
	"io"
)

// CAS is a content-addressed store: items are stored under the hash of their
// serialized form, so equal items share one entry.
type CAS interface {
	Put(item Hashable) (Hash, error)
	Has(hash Hash) bool
	getValue(hash Hash) (bool, []byte, error)
}

type Serde interface {
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
}

type Hashable interface {
	Serde
	// TypeTag names the record type so Retrieve can refuse mismatches.
	TypeTag() string
}

type Hash uint64

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Retrieve loads the item stored under hash into a new R.
//
//	rec, err := cas.Retrieve[cas.FrameRecord](store, h)
func Retrieve[R any, T interface {
	*R
	Hashable
}](c CAS, hash Hash) (T, error) {
	var zero T
	has, data, err := c.getValue(hash)
	if err != nil {
		return zero, err
	}
	if !has {
		return zero, fmt.Errorf("hash not found in CAS: %s", hash)
	}
	entry := &TypedEntry{}
	if err := entry.Deserialize(bytes.NewReader(data)); err != nil {
		return zero, fmt.Errorf("deserializing TypedEntry: %w", err)
	}
	out := T(new(R))
	if entry.TypeTag != out.TypeTag() {
		return zero, fmt.Errorf("type mismatch: stored %s, requested %s", entry.TypeTag, out.TypeTag())
	}
	if err := out.Deserialize(bytes.NewReader(entry.Data)); err != nil {
		return zero, fmt.Errorf("deserializing %s: %w", entry.TypeTag, err)
	}
	return out, nil
}
