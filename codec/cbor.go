package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/anchorageoss/nsm-session/nsm"
)

// documentCBOR is the CBOR form of an attestation document. Absent byte
// fields encode as CBOR null.
type documentCBOR struct {
	ModuleID    string            `cbor:"module_id"`
	Timestamp   uint64            `cbor:"timestamp"`
	Digest      []byte            `cbor:"digest"`
	PCRs        map[uint32][]byte `cbor:"pcrs"`
	LockedPCRs  []uint32          `cbor:"locked_pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    []byte            `cbor:"cabundle"`
	UserData    []byte            `cbor:"user_data"`
	PublicKey   []byte            `cbor:"public_key"`
	Nonce       []byte            `cbor:"nonce"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.CoreDetEncOptions()
	encOpts.NilContainers = cbor.NilContainerAsNull
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("codec: invalid CBOR encoding options: %v", err))
	}
	decOpts := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("codec: invalid CBOR decoding options: %v", err))
	}
}

func encodeDocumentCBOR(doc *nsm.AttestationDocument) ([]byte, error) {
	pcrs := make(map[uint32][]byte, len(doc.PCRs))
	for slot, d := range doc.PCRs {
		pcrs[slot] = append([]byte{}, d[:]...)
	}
	locked := doc.LockedPCRs
	if locked == nil {
		locked = []uint32{}
	}
	wire := documentCBOR{
		ModuleID:    doc.ModuleID,
		Timestamp:   doc.Timestamp,
		Digest:      append([]byte{}, doc.Digest[:]...),
		PCRs:        pcrs,
		LockedPCRs:  locked,
		Certificate: doc.Certificate,
		CABundle:    doc.CABundle,
		UserData:    doc.UserData,
		PublicKey:   doc.PublicKey,
		Nonce:       doc.Nonce,
	}
	out, err := encMode.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attestation document: %w", err)
	}
	return out, nil
}

func decodeDocumentCBOR(data []byte) (*nsm.AttestationDocument, error) {
	var wire documentCBOR
	if err := decMode.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: failed to decode attestation document: %w", nsm.ErrInvalidArgument, err)
	}

	digest, err := digestFromBytes("digest", wire.Digest)
	if err != nil {
		return nil, err
	}
	pcrs := make(map[uint32]nsm.Digest, len(wire.PCRs))
	for slot, raw := range wire.PCRs {
		if pcrs[slot], err = digestFromBytes(fmt.Sprintf("PCR[%d]", slot), raw); err != nil {
			return nil, err
		}
	}

	return &nsm.AttestationDocument{
		ModuleID:    wire.ModuleID,
		Timestamp:   wire.Timestamp,
		Digest:      digest,
		PCRs:        pcrs,
		LockedPCRs:  wire.LockedPCRs,
		Certificate: wire.Certificate,
		CABundle:    wire.CABundle,
		UserData:    wire.UserData,
		PublicKey:   wire.PublicKey,
		Nonce:       wire.Nonce,
	}, nil
}
