package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape marshals v with HTML escaping disabled. Tool results and
// prompt snapshots go straight to a model, so characters like '<' and '&'
// should stay literal rather than arrive as unicode escapes.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Drop the encoder's trailing newline for parity with json.Marshal.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
