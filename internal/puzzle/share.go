// internal/puzzle/share.go
//
// Shareable puzzle payloads: minified JSON → UTF-8 → standard Base64,
// carried as the "custom" query parameter. Decode reverses the chain exactly.

package puzzle

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CustomID is assigned to decoded puzzles that carry no id of their own.
const CustomID = "custom"

// ErrMalformedPayload wraps every Decode failure.
var ErrMalformedPayload = errors.New("malformed puzzle payload")

// Encode minifies def and returns its Base64 share payload.
func Encode(def Definition) (string, error) {
	raw, err := Minify(def)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeJSON checks that raw is a puzzle document, minifies it as written
// (unknown fields included) and returns its Base64 share payload.
func EncodeJSON(raw []byte) (string, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("minify: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Minify renders def as compact JSON without HTML escaping, so math markup
// such as "a<b" survives byte-for-byte.
func Minify(def Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("encode puzzle: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a share payload back into a Definition.
func Decode(payload string) (Definition, error) {
	var def Definition
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return def, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return def, fmt.Errorf("%w: base64: %v", ErrMalformedPayload, err)
	}
	if !utf8.Valid(raw) {
		return def, fmt.Errorf("%w: not utf-8", ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, &def); err != nil {
		return def, fmt.Errorf("%w: json: %v", ErrMalformedPayload, err)
	}
	if def.ID == "" {
		def.ID = CustomID
	}
	return def, nil
}
