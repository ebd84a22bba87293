package manifest

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/near/borsh-go"
)

// Encode serializes a manifest to its canonical Borsh bytes
func Encode(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is nil")
	}
	manifestBytes, err := borsh.Serialize(*m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	return manifestBytes, nil
}

// Decode deserializes Borsh manifest bytes and validates the result
func Decode(manifestBytes []byte) (*Manifest, error) {
	var m Manifest
	if err := borsh.Deserialize(&m, manifestBytes); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeManifestFromFile decodes a manifest from a binary file and returns the
// manifest together with the bytes it was decoded from
func DecodeManifestFromFile(filePath string) (*Manifest, []byte, error) {
	manifestBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	m, err := Decode(manifestBytes)
	if err != nil {
		return nil, nil, err
	}
	return m, manifestBytes, nil
}

// DecodeManifestFromBase64 decodes a base64-encoded manifest
func DecodeManifestFromBase64(manifestB64 string) (*Manifest, []byte, error) {
	manifestBytes, err := base64.StdEncoding.DecodeString(manifestB64)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	m, err := Decode(manifestBytes)
	if err != nil {
		return nil, nil, err
	}
	return m, manifestBytes, nil
}

// WriteManifestFile encodes m and writes it to filePath
func WriteManifestFile(filePath string, m *Manifest) ([]byte, error) {
	manifestBytes, err := Encode(m)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filePath, manifestBytes, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	return manifestBytes, nil
}
