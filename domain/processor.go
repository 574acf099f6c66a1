package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Placeholders substituted for missing processor fields.
const (
	UnknownProcessor = "Unknown Processor"
	Unrated          = "Unrated"
	NotAvailable     = "N/A"
	UnknownGPU       = "Unknown GPU"
)

// Processor is a single entry of the phone processor rankings collection.
// Every field except ID is a display string; ID stays nil until the server assigns one.
type Processor struct {
	ID         *int64 `json:"id"`          // Server-assigned identifier.
	Processor  string `json:"processor"`   // Display name of the chipset.
	Rating     string `json:"rating"`      // Ranking grade.
	Antutu10   string `json:"antutu_10"`   // AnTuTu v10 score.
	Geekbench6 string `json:"geekbench_6"` // Geekbench 6 score.
	Cores      string `json:"cores"`       // Core count or layout.
	Clock      string `json:"clock"`       // Peak clock speed.
	GPU        string `json:"gpu"`         // Integrated GPU name.
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// Key returns the identifier of the processor and whether it has one.
func (p Processor) Key() (int64, bool) {
	if p.ID == nil {
		return 0, false
	}
	return *p.ID, true
}

// ProcessorFromRaw maps a raw API record into a Processor.
// The mapping is total: absent, null, empty, zero and false values are replaced with placeholders.
func ProcessorFromRaw(raw RawRecord) Processor {
	return Processor{
		ID:         rawID(raw["id"]),
		Processor:  stringOr(raw, UnknownProcessor, "processor"),
		Rating:     stringOr(raw, Unrated, "rating"),
		Antutu10:   stringOr(raw, NotAvailable, "antutu_10"),
		Geekbench6: stringOr(raw, NotAvailable, "geekbench_6"),
		Cores:      stringOr(raw, NotAvailable, "cores"),
		Clock:      stringOr(raw, NotAvailable, "clock"),
		GPU:        stringOr(raw, UnknownGPU, "gpu"),
		CreatedAt:  stringOr(raw, NotAvailable, "createdAt", "created_at"),
		UpdatedAt:  stringOr(raw, NotAvailable, "updatedAt", "updated_at"),
	}
}

// ProcessorsFromRaw maps every raw record, preserving order.
func ProcessorsFromRaw(raws []RawRecord) []Processor {
	processors := make([]Processor, len(raws))
	for i, raw := range raws {
		processors[i] = ProcessorFromRaw(raw)
	}
	return processors
}

// stringOr returns the first non-falsy value found under keys, rendered as a string.
func stringOr(raw RawRecord, fallback string, keys ...string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || isFalsy(value) {
			continue
		}
		str, err := cast.ToStringE(value)
		if err != nil || str == "" {
			continue
		}
		return str
	}
	return fallback
}

// Int64 returns a pointer to id, for building records by hand.
func Int64(id int64) *int64 {
	return &id
}

// rawID accepts integral numbers and base-10 integer strings. Fractional, out of range
// and otherwise unparseable values yield nil rather than a truncated id.
func rawID(value any) *int64 {
	var (
		id  int64
		err error
	)
	switch v := value.(type) {
	case nil, bool:
		return nil
	case float64:
		id, err = integral(v)
	case float32:
		id, err = integral(float64(v))
	case json.Number:
		if id, err = v.Int64(); err != nil {
			var f float64
			if f, err = v.Float64(); err == nil {
				id, err = integral(f)
			}
		}
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		id, err = cast.ToInt64E(value)
	}
	if err != nil {
		return nil
	}
	return &id
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is not an integral id", f)
	}
	return int64(f), nil
}

func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return false
	}
	return f == 0 || math.IsNaN(f)
}
