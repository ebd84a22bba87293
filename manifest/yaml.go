package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/anchorageoss/nsm-session/codec"
)

// sourceManifest is the YAML authoring form of a manifest. Payloads are given
// as text, as hex or "base64:" data, or as a file path relative to the YAML
// document.
//
//	namespace:
//	  name: payments
//	  nonce: 3
//	measurements:
//	  - slot: 0
//	    description: kernel
//	    file: vmlinuz
//	  - slot: 16
//	    description: app config
//	    text: "mode=prod"
//	certificates:
//	  - slot: 0
//	    file: device.pem
//	lock_range: 16
//	locks: [16]
//	policy: measured
type sourceManifest struct {
	Namespace struct {
		Name  string `yaml:"name"`
		Nonce uint32 `yaml:"nonce"`
	} `yaml:"namespace"`
	Measurements []struct {
		Slot        uint32        `yaml:"slot"`
		Description string        `yaml:"description"`
		Payload     payloadSource `yaml:",inline"`
	} `yaml:"measurements"`
	Certificates []struct {
		Slot    uint32        `yaml:"slot"`
		Payload payloadSource `yaml:",inline"`
	} `yaml:"certificates"`
	LockRange uint32   `yaml:"lock_range"`
	Locks     []uint32 `yaml:"locks"`
	Policy    string   `yaml:"policy"`
}

type payloadSource struct {
	Text string `yaml:"text"`
	Data string `yaml:"data"`
	File string `yaml:"file"`
}

func (p payloadSource) load(baseDir string) ([]byte, error) {
	set := 0
	for _, v := range []string{p.Text, p.Data, p.File} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of text, data or file must be set")
	}

	switch {
	case p.Text != "":
		return []byte(p.Text), nil
	case p.Data != "":
		return codec.OptionalBytes(p.Data)
	}
	path := p.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// FromYAML builds a manifest from its YAML authoring form. File payloads are
// resolved against baseDir.
func FromYAML(data []byte, baseDir string) (*Manifest, error) {
	var src sourceManifest
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	policy, err := ParseLockPolicy(src.Policy)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		Namespace: Namespace{Name: src.Namespace.Name, Nonce: src.Namespace.Nonce},
		LockRange: src.LockRange,
		Locks:     src.Locks,
		Policy:    policy,
	}
	for i, ms := range src.Measurements {
		payload, err := ms.Payload.load(baseDir)
		if err != nil {
			return nil, fmt.Errorf("measurement %d (%s): %w", i, ms.Description, err)
		}
		m.Measurements = append(m.Measurements, Measurement{Slot: ms.Slot, Description: ms.Description, Data: payload})
	}
	for i, c := range src.Certificates {
		payload, err := c.Payload.load(baseDir)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", i, err)
		}
		m.Certificates = append(m.Certificates, Certificate{Slot: c.Slot, Data: payload})
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromYAMLFile reads a YAML manifest, resolving file payloads next to it
func FromYAMLFile(filePath string) (*Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return FromYAML(data, filepath.Dir(filePath))
}
