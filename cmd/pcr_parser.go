package cmd

import (
	"encoding/hex"
	"strconv"
	"strings"

	nitroverifier "github.com/anchorageoss/awsnitroverifier"

	"github.com/anchorageoss/nsm-session/nsm"
)

// ParsePCRs parses expected register values in the form "0:<hex>,16:<hex>,..."
// into rules for the verify service. Indices must name one of the session's
// registers and values must be a full register digest.
//
// Example input: "16:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
func ParsePCRs(pcrSpec string) ([]nitroverifier.PCRRule, error) {
	if pcrSpec == "" {
		return nil, nil
	}

	pcrSpecs := strings.Split(pcrSpec, ",")
	rules := make([]nitroverifier.PCRRule, 0, len(pcrSpecs))
	seen := make(map[uint64]bool, len(pcrSpecs))

	for _, spec := range pcrSpecs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		indexStr, hexValue, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, nsm.InvalidArgument("invalid PCR specification '%s': expected format 'index:hex_value'", spec)
		}

		index, err := strconv.ParseUint(strings.TrimSpace(indexStr), 10, 32)
		if err != nil {
			return nil, nsm.InvalidArgument("invalid PCR index '%s'", indexStr)
		}
		if index >= nsm.PCRSlots {
			return nil, nsm.InvalidArgument("PCR index %d out of range 0..%d", index, nsm.PCRSlots-1)
		}
		if seen[index] {
			return nil, nsm.InvalidArgument("PCR index %d given more than once", index)
		}
		seen[index] = true

		hexValue = strings.TrimPrefix(strings.TrimSpace(hexValue), "0x")
		value, err := hex.DecodeString(hexValue)
		if err != nil {
			return nil, nsm.InvalidArgument("invalid PCR hex value '%s' for index %d", hexValue, index)
		}
		if len(value) != nsm.DigestSize {
			return nil, nsm.InvalidArgument("PCR value for index %d is %d bytes, expected %d", index, len(value), nsm.DigestSize)
		}

		rules = append(rules, nitroverifier.PCRRule{
			Index: uint(index),
			Value: value,
		})
	}

	return rules, nil
}
