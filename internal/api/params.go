package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Pagination bounds shared by the list endpoints.
const (
	MaxPageSize             = 500
	DefaultLocationPageSize = 10
	DefaultReviewPageSize   = 100
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// paramError is a query or body validation failure reported as validation_error.
type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func invalidParam(format string, args ...any) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

// queryInt parses a non-negative integer parameter, returning def when absent.
func queryInt(q url.Values, name string, def, maximum int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam("%s must be an integer", name)
	}
	if n < 0 {
		return 0, invalidParam("%s must be non-negative", name)
	}
	if maximum > 0 && n > maximum {
		return 0, invalidParam("%s must be at most %d", name, maximum)
	}
	return n, nil
}

// queryFloat parses an optional finite float parameter.
func queryFloat(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalidParam("%s must be a number", name)
	}
	return &f, nil
}

// queryInt64 parses an optional integer id parameter.
func queryInt64(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidParam("%s must be an integer", name)
	}
	return &n, nil
}

// queryIDs parses a comma-separated id list. Empty entries are ignored.
func queryIDs(q url.Values, name string) ([]int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, invalidParam("%s must be a comma-separated list of integers", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// pathID parses the trailing id segment after prefix, e.g. /locations/by-id/{id}.
func pathID(path, prefix string) (int64, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	if raw == "" || strings.Contains(raw, "/") {
		return 0, invalidParam("id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalidParam("id must be an integer")
	}
	return id, nil
}

// decodeJSON decodes a single JSON object from the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return invalidParam("%s has the wrong type", typeErr.Field)
		}
		return errBadBody
	}
	return nil
}

var errBadBody = errors.New("request body must be a JSON object")

// writeParamError writes a paramError as validation_error and anything else
// as bad_request.
func writeParamError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *paramError
	if errors.As(err, &pe) {
		writeValidationError(w, r, pe.msg)
		return
	}
	writeCodedError(w, r, ErrCodeBadRequest, err.Error())
}
