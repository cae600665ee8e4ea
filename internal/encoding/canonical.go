package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// bufferPool recycles marshal buffers across archive calls.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Marshal renders v as compact JSON without the trailing newline that
// json.Encoder appends.
func Marshal(v interface{}) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	data := buf.Bytes()
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Canonical renders v as deterministic JSON: compact, object keys sorted,
// independent of Go struct field order. Two structurally equal values always
// produce identical bytes, which makes the output safe to hash.
func Canonical(v interface{}) ([]byte, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, err
	}

	// Round-trip through generic containers. Maps re-marshal with sorted
	// keys; json.Number keeps numeric literals byte-for-byte.
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var generic interface{}
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	return Marshal(generic)
}

// Unmarshal parses compact JSON produced by Marshal or Canonical.
func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
