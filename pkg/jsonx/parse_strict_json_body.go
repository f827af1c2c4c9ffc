// Package jsonx gives the control plane's handlers (handleAdd, handleInput)
// a single strict-decoding path for untrusted request bodies, so a typo'd
// field name in an /add payload fails loudly instead of silently landing on
// a zero-valued ProcessDefinition field.
package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes caps a single request body (addRequest/inputRequest are both
// small JSON objects; the input text within inputRequest is the only
// variable-length field exeio accepts over the control plane).
const maxBodyBytes = 1 << 20 // 1MB

var (
	// ErrEmptyBody means the request carried no JSON at all (e.g. a POST
	// /add with a missing body).
	ErrEmptyBody = errors.New("request body is empty")
	// ErrTrailingJSON means the body decoded successfully but had extra
	// content after the first JSON value (e.g. two concatenated objects).
	ErrTrailingJSON = errors.New("request body has trailing data after the JSON value")
)

// ParseStrictJSONBody decodes r's body into dst (an addRequest or
// inputRequest pointer in exeio's handlers), rejecting anything the control
// plane shouldn't silently accept from a client:
//
//   - malformed JSON syntax or a truncated body
//   - an empty body (ErrEmptyBody)
//   - a body over maxBodyBytes
//   - more than one JSON value in the body (ErrTrailingJSON)
//   - unknown fields not present on dst's struct type
//   - field type mismatches (e.g. a string where auto_restart expects bool)
//
// Per §7, every error this returns is surfaced to the client as a
// success:false envelope, not a required-field check — ParseStrictJSONBody
// only enforces JSON shape, never exeio's own semantic rules (id/command
// non-empty, period_seconds required for periodic definitions), which the
// caller validates separately via the struct validator and its own checks.
func ParseStrictJSONBody[T any](r *http.Request, dst *T) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}
