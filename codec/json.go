package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/anchorageoss/nsm-session/nsm"
)

// DocumentJSON is the JSON form of an attestation document
type DocumentJSON struct {
	ModuleID    string            `json:"module_id"`
	Timestamp   uint64            `json:"timestamp"`
	Digest      string            `json:"digest"`
	PCRs        map[string]string `json:"pcrs"`
	LockedPCRs  []uint32          `json:"locked_pcrs"`
	Certificate *string           `json:"certificate"`
	CABundle    *string           `json:"cabundle"`
	UserData    *string           `json:"user_data"`
	PublicKey   *string           `json:"public_key"`
	Nonce       *string           `json:"nonce"`
}

// DocumentMap converts a document into its JSON form
func DocumentMap(doc *nsm.AttestationDocument) *DocumentJSON {
	pcrs := make(map[string]string, len(doc.PCRs))
	for slot, d := range doc.PCRs {
		pcrs[strconv.FormatUint(uint64(slot), 10)] = d.Hex()
	}
	locked := doc.LockedPCRs
	if locked == nil {
		locked = []uint32{}
	}
	return &DocumentJSON{
		ModuleID:    doc.ModuleID,
		Timestamp:   doc.Timestamp,
		Digest:      doc.Digest.Hex(),
		PCRs:        pcrs,
		LockedPCRs:  locked,
		Certificate: optionalHex(doc.Certificate),
		CABundle:    optionalHex(doc.CABundle),
		UserData:    optionalHex(doc.UserData),
		PublicKey:   optionalHex(doc.PublicKey),
		Nonce:       optionalHex(doc.Nonce),
	}
}

func encodeDocumentJSON(doc *nsm.AttestationDocument) ([]byte, error) {
	out, err := json.MarshalIndent(DocumentMap(doc), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attestation document: %w", err)
	}
	return out, nil
}

func decodeDocumentJSON(data []byte) (*nsm.AttestationDocument, error) {
	var wire DocumentJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: failed to parse attestation document: %w", nsm.ErrInvalidArgument, err)
	}

	digestBytes, err := hex.DecodeString(wire.Digest)
	if err != nil {
		return nil, nsm.InvalidArgument("malformed digest: %v", err)
	}
	digest, err := digestFromBytes("digest", digestBytes)
	if err != nil {
		return nil, err
	}

	pcrs := make(map[uint32]nsm.Digest, len(wire.PCRs))
	for key, value := range wire.PCRs {
		slot, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, nsm.InvalidArgument("malformed PCR index %q", key)
		}
		raw, err := hex.DecodeString(value)
		if err != nil {
			return nil, nsm.InvalidArgument("malformed PCR[%d] value: %v", slot, err)
		}
		if pcrs[uint32(slot)], err = digestFromBytes(fmt.Sprintf("PCR[%d]", slot), raw); err != nil {
			return nil, err
		}
	}

	doc := &nsm.AttestationDocument{
		ModuleID:   wire.ModuleID,
		Timestamp:  wire.Timestamp,
		Digest:     digest,
		PCRs:       pcrs,
		LockedPCRs: wire.LockedPCRs,
	}
	fields := []struct {
		name string
		in   *string
		out  *[]byte
	}{
		{"certificate", wire.Certificate, &doc.Certificate},
		{"cabundle", wire.CABundle, &doc.CABundle},
		{"user_data", wire.UserData, &doc.UserData},
		{"public_key", wire.PublicKey, &doc.PublicKey},
		{"nonce", wire.Nonce, &doc.Nonce},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		b, err := hex.DecodeString(*f.in)
		if err != nil {
			return nil, nsm.InvalidArgument("malformed %s: %v", f.name, err)
		}
		*f.out = append([]byte{}, b...)
	}
	return doc, nil
}

// ModuleDescriptionJSON is the JSON form of a module description
type ModuleDescriptionJSON struct {
	ModuleID         string   `json:"module_id"`
	DevicePath       string   `json:"device_path"`
	HashAlgorithm    string   `json:"hash_algorithm"`
	PCRSlots         int      `json:"pcr_slots"`
	CertificateSlots int      `json:"certificate_slots"`
	LockedPCRs       []uint32 `json:"locked_pcrs"`
	Certificates     int      `json:"certificates"`
}

// EncodeModuleDescription serializes a module description as JSON
func EncodeModuleDescription(desc *nsm.ModuleDescription) ([]byte, error) {
	locked := desc.LockedPCRs
	if locked == nil {
		locked = []uint32{}
	}
	out, err := json.MarshalIndent(ModuleDescriptionJSON{
		ModuleID:         desc.ModuleID,
		DevicePath:       desc.DevicePath,
		HashAlgorithm:    desc.HashAlgorithm.String(),
		PCRSlots:         desc.PCRSlots,
		CertificateSlots: desc.CertificateSlots,
		LockedPCRs:       locked,
		Certificates:     desc.Certificates,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal module description: %w", err)
	}
	return out, nil
}

// PCRJSON is the JSON form of a single register
type PCRJSON struct {
	Index  uint32 `json:"index"`
	Digest string `json:"digest"`
	Locked bool   `json:"locked"`
}

// EncodePCR serializes a register record as JSON
func EncodePCR(pcr nsm.PCR) ([]byte, error) {
	out, err := json.Marshal(PCRJSON{Index: pcr.Index, Digest: pcr.Digest.Hex(), Locked: pcr.Locked})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PCR: %w", err)
	}
	return out, nil
}

func optionalHex(b []byte) *string {
	if b == nil {
		return nil
	}
	s := hex.EncodeToString(b)
	return &s
}
