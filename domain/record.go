package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawRecord is an untyped JSON object as received from the API before any defaulting.
type RawRecord map[string]any

// Envelope is the `{"data": ...}` wrapper used by every rankings API response.
// Data is kept raw because create endpoints may answer with either a single record or the whole collection.
type Envelope struct {
	Data json.RawMessage `json:"data"`
}

// IsList reports whether the envelope payload is a JSON array.
func (e *Envelope) IsList() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Records decodes the payload into raw records.
// A single object is returned as a one element slice, a null or missing payload as an empty slice.
func (e *Envelope) Records() ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []RawRecord{}, nil
	}

	if e.IsList() {
		var records []RawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decoding record list : %w", err)
		}
		if records == nil {
			records = []RawRecord{}
		}
		return records, nil
	}

	var record RawRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, fmt.Errorf("decoding record : %w", err)
	}
	return []RawRecord{record}, nil
}
