package realtime

import (
	"bytes"
	"encoding/json"
)

// Snapshot is the complete value at a path at one moment. It is immutable;
// consumers replace their local state with it wholesale.
type Snapshot struct {
	Path string
	raw  []byte
}

// NewSnapshot wraps an encoded value. A nil raw means the path holds no data.
func NewSnapshot(path string, raw []byte) Snapshot {
	return Snapshot{Path: path, raw: raw}
}

// Key is the last segment of the snapshot path.
func (s Snapshot) Key() string {
	return lastSegment(s.Path)
}

// Exists reports whether the path holds any data.
func (s Snapshot) Exists() bool {
	return len(s.raw) > 0 && !bytes.Equal(s.raw, nullJSON)
}

// Raw returns the JSON encoding of the value ("null" when absent).
func (s Snapshot) Raw() json.RawMessage {
	if len(s.raw) == 0 {
		return json.RawMessage(nullJSON)
	}
	return json.RawMessage(s.raw)
}

// Decode unmarshals the value into v.
func (s Snapshot) Decode(v any) error {
	return json.Unmarshal(s.Raw(), v)
}

// Value returns the decoded value as generic JSON types, or nil.
func (s Snapshot) Value() any {
	var v any
	if err := s.Decode(&v); err != nil {
		return nil
	}
	return v
}
