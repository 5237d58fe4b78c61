// Package config loads the two kinds of YAML-described data this module's
// tests and tooling need but has no business hard-coding: named BAC/PACE
// worked-example fixtures, and a CVCA/DSC trust anchor list. Both loaders
// follow the same decode-then-validate shape as barnettlynn-nfctools's
// sdmconfig/internal/config package, adapted from JSON+os.ReadFile to
// gopkg.in/yaml.v3's KnownFields decoder.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BACVector names one BAC key-derivation worked example: the three MRZ
// fields that feed BACKey and the expected seed/session keys, all hex.
type BACVector struct {
	Label          string `yaml:"label"`
	DocumentNumber string `yaml:"document_number"`
	DateOfBirth    string `yaml:"date_of_birth"`
	DateOfExpiry   string `yaml:"date_of_expiry"`
	KSeedHex       string `yaml:"k_seed"`
	KEncHex        string `yaml:"k_enc,omitempty"`
	KMacHex        string `yaml:"k_mac,omitempty"`
}

// PACEVector names one PACE key-derivation worked example. Secret is the MRZ
// or CAN password material in whatever form PasswordType expects; an
// optional nonce and K_seed may be recorded beside it. No ephemeral
// mapping or key-agreement values are stored.
type PACEVector struct {
	Label      string `yaml:"label"`
	Mapping    string `yaml:"mapping"` // "GM", "IM", or "CAM"
	SecretHex  string `yaml:"secret"`
	NonceHex   string `yaml:"nonce,omitempty"`
	KSeedHex   string `yaml:"k_seed,omitempty"`
}

// VectorFile is the root document of a test-vector YAML file.
type VectorFile struct {
	BAC  []BACVector  `yaml:"bac"`
	PACE []PACEVector `yaml:"pace"`
}

// LoadVectors reads and validates a test-vector YAML file. It rejects
// unknown fields so a typo in a fixture fails the load instead of silently
// decoding to a zero value.
func LoadVectors(path string) (*VectorFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read vectors file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var vf VectorFile
	if err := dec.Decode(&vf); err != nil {
		return nil, fmt.Errorf("config: parse vectors yaml: %w", err)
	}
	if err := vf.validate(); err != nil {
		return nil, err
	}
	return &vf, nil
}

func (vf *VectorFile) validate() error {
	for i, v := range vf.BAC {
		if strings.TrimSpace(v.Label) == "" {
			return fmt.Errorf("config: bac[%d]: label is required", i)
		}
		if strings.TrimSpace(v.DocumentNumber) == "" {
			return fmt.Errorf("config: bac[%d] (%s): document_number is required", i, v.Label)
		}
		if len(v.DateOfBirth) != 6 || len(v.DateOfExpiry) != 6 {
			return fmt.Errorf("config: bac[%d] (%s): date_of_birth and date_of_expiry must be 6 digits (YYMMDD)", i, v.Label)
		}
		if strings.TrimSpace(v.KSeedHex) == "" {
			return fmt.Errorf("config: bac[%d] (%s): k_seed is required", i, v.Label)
		}
	}
	for i, v := range vf.PACE {
		if strings.TrimSpace(v.Label) == "" {
			return fmt.Errorf("config: pace[%d]: label is required", i)
		}
		switch v.Mapping {
		case "GM", "IM", "CAM":
		default:
			return fmt.Errorf("config: pace[%d] (%s): mapping must be GM, IM, or CAM, got %q", i, v.Label, v.Mapping)
		}
		if strings.TrimSpace(v.SecretHex) == "" {
			return fmt.Errorf("config: pace[%d] (%s): secret is required", i, v.Label)
		}
	}
	return nil
}

// Find returns the BAC vector with the given label, if present.
func (vf *VectorFile) Find(label string) (*BACVector, bool) {
	for i := range vf.BAC {
		if vf.BAC[i].Label == label {
			return &vf.BAC[i], true
		}
	}
	return nil, false
}

// FindPACE returns the PACE vector with the given label, if present.
func (vf *VectorFile) FindPACE(label string) (*PACEVector, bool) {
	for i := range vf.PACE {
		if vf.PACE[i].Label == label {
			return &vf.PACE[i], true
		}
	}
	return nil, false
}
