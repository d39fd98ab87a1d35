// Package pageparams implements the offset-pagination and request-decoding
// contract every listing/creation endpoint enforces (spec.md §6): limit in
// [1,100], offset >= 0, unknown JSON fields rejected, violations reported
// as 422 apperr values rather than panicking through to the Problem Details
// boundary.
package pageparams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
)

// OffsetPaginated is the generic list-response envelope (spec.md §6).
type OffsetPaginated[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewOffsetPaginated always reports an empty slice rather than nil for
// Items, so the JSON encoding is "[]" and never "null".
func NewOffsetPaginated[T any](items []T, total, limit, offset int) OffsetPaginated[T] {
	if items == nil {
		items = []T{}
	}
	return OffsetPaginated[T]{Items: items, Total: total, Limit: limit, Offset: offset}
}

// ParseLimitOffset reads "limit" and "offset" from q, applying
// defaultLimit when limit is absent. Returns a 422 apperr.ValidationError
// on any out-of-range value.
func ParseLimitOffset(q url.Values, defaultLimit int) (limit, offset int, err error) {
	limit = defaultLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperr.New(apperr.ValidationError, "limit must be an integer")
		}
	}
	if limit < 1 || limit > 100 {
		return 0, 0, apperr.New(apperr.ValidationError, "limit must be between 1 and 100")
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperr.New(apperr.ValidationError, "offset must be an integer")
		}
	}
	if offset < 0 {
		return 0, 0, apperr.New(apperr.ValidationError, "offset must be >= 0")
	}

	return limit, offset, nil
}

// DecodeStrict decodes body into v, rejecting unknown JSON fields and
// trailing garbage (spec.md §6: "every request/response model forbids
// unknown fields").
func DecodeStrict(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return apperr.Wrap(err, "failed to read request body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.New(apperr.ValidationError, fmt.Sprintf("request body failed validation: %s", err.Error()))
	}
	if dec.More() {
		return apperr.New(apperr.ValidationError, "request body contains trailing data")
	}
	return nil
}
