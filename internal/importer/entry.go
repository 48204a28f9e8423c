// Package importer loads wing ratings exported as JSON into a running
// ratewings API, creating locations on first sight.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Well-known field keys of an exported rating.
const (
	FieldName    = "venu_name"
	FieldAddress = "address"
	FieldLat     = "lat"
	FieldLon     = "lon"
	FieldRating  = "overall_rating"
)

// Entry is one exported rating. Fields holds the raw export values; numbers
// are kept as json.Number.
type Entry struct {
	Fields map[string]any `json:"fields"`
}

// Entry errors.
var (
	ErrMissingName   = errors.New("entry has no venu_name")
	ErrMissingRating = errors.New("entry has no numeric overall_rating")
	ErrBadCoordinate = errors.New("entry has a non-numeric lat or lon")
)

// ReadEntries decodes a JSON array of entries.
func ReadEntries(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return entries, nil
}

// Name returns the trimmed venue name.
func (e Entry) Name() (string, error) {
	name, _ := e.Fields[FieldName].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrMissingName
	}
	return name, nil
}

// Address returns the address, or nil when absent or blank.
func (e Entry) Address() *string {
	addr, _ := e.Fields[FieldAddress].(string)
	if addr = strings.TrimSpace(addr); addr == "" {
		return nil
	}
	return &addr
}

// Rating returns overall_rating.
func (e Entry) Rating() (float64, error) {
	f, ok, err := number(e.Fields[FieldRating])
	if err != nil || !ok {
		return 0, ErrMissingRating
	}
	return f, nil
}

// Coordinates returns lat and lon; each is nil when absent or null.
func (e Entry) Coordinates() (lat, lon *float64, err error) {
	for _, c := range []struct {
		key string
		dst **float64
	}{{FieldLat, &lat}, {FieldLon, &lon}} {
		f, ok, err := number(e.Fields[c.key])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrBadCoordinate, c.key)
		}
		if ok {
			*c.dst = &f
		}
	}
	return lat, lon, nil
}

// Comment renders every field except name, address and rating as
// "key: value" lines in key order.
func (e Entry) Comment() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		switch k {
		case FieldName, FieldAddress, FieldRating:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+formatValue(e.Fields[k]))
	}
	return strings.Join(lines, "\n")
}

// number accepts json.Number, float64 and numeric strings. ok is false for
// absent or null values.
func number(v any) (f float64, ok bool, err error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		f, err = n.Float64()
	case float64:
		f = n
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false, nil
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, false, fmt.Errorf("unexpected %T", v)
	}
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSpace(buf.String())
	}
}
