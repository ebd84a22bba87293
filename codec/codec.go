// Package codec serializes attestation session records for transport.
//
// The nsm package returns Go values only; this package turns them into the
// wire formats callers exchange:
//   - JSON with hex-encoded byte fields and null for absent values
//   - CBOR (RFC 8949, core deterministic encoding) with raw byte strings
//
// # Encoding
//
//	data, err := codec.EncodeDocument(doc, codec.FormatCBOR)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Decoding
//
//	doc, err := codec.DecodeDocument(data, codec.FormatCBOR)
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/anchorageoss/nsm-session/nsm"
)

// Format identifies a wire format
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name. An empty name selects JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	}
	return "", nsm.InvalidArgument("unsupported format %q (expected json or cbor)", name)
}

// EncodeDocument serializes an attestation document
func EncodeDocument(doc *nsm.AttestationDocument, format Format) ([]byte, error) {
	if doc == nil {
		return nil, nsm.InvalidArgument("attestation document is nil")
	}
	switch format {
	case FormatJSON:
		return encodeDocumentJSON(doc)
	case FormatCBOR:
		return encodeDocumentCBOR(doc)
	}
	return nil, nsm.InvalidArgument("unsupported format %q", format)
}

// DecodeDocument parses an attestation document produced by EncodeDocument
func DecodeDocument(data []byte, format Format) (*nsm.AttestationDocument, error) {
	switch format {
	case FormatJSON:
		return decodeDocumentJSON(data)
	case FormatCBOR:
		return decodeDocumentCBOR(data)
	}
	return nil, nsm.InvalidArgument("unsupported format %q", format)
}

// OptionalBytes coerces caller input into bytes. An empty string is absent
// (nil). Input prefixed with "base64:" is base64 decoded; anything else must
// be hex.
func OptionalBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(s, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, nsm.InvalidArgument("malformed base64 value: %v", err)
		}
		return b, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, nsm.InvalidArgument("malformed hex value: %v", err)
	}
	return b, nil
}

func digestFromBytes(field string, b []byte) (nsm.Digest, error) {
	var d nsm.Digest
	if len(b) != nsm.DigestSize {
		return d, fmt.Errorf("%w: %s must be %d bytes, got %d", nsm.ErrInvalidArgument, field, nsm.DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}
