package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TrustAnchor describes one certificate entry in a trust anchor list: a
// Country Signing CA (self-signed) or a Document Signer (issued by a CSCA).
// Only the description is modeled here; chain building and signature
// verification against it is out of scope, matching sod.Verify's own
// caller-supplied-certificate contract.
type TrustAnchor struct {
	Name            string `yaml:"name"`
	Country         string `yaml:"country"`
	CertificateFile string `yaml:"certificate_file"`
	SerialNumber    string `yaml:"serial_number,omitempty"`
	NotAfter        string `yaml:"not_after,omitempty"`
}

// TrustAnchorList is the root document of a trust-anchor YAML file: the set
// of CSCA certificates a relying party has chosen to trust, plus any DSCs
// it has chosen to trust directly without a CSCA in the file.
type TrustAnchorList struct {
	CVCA []TrustAnchor `yaml:"cvca"`
	DSC  []TrustAnchor `yaml:"dsc,omitempty"`
}

// LoadTrustAnchors reads a trust-anchor YAML file and resolves each entry's
// certificate_file relative to the YAML file's own directory, the same
// relative-path convention sdmconfig's Config.resolvePaths uses for its key
// files.
func LoadTrustAnchors(path string) (*TrustAnchorList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read trust anchor file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var tal TrustAnchorList
	if err := dec.Decode(&tal); err != nil {
		return nil, fmt.Errorf("config: parse trust anchor yaml: %w", err)
	}

	dir := filepath.Dir(path)
	for i := range tal.CVCA {
		tal.CVCA[i].CertificateFile = resolvePath(dir, tal.CVCA[i].CertificateFile)
	}
	for i := range tal.DSC {
		tal.DSC[i].CertificateFile = resolvePath(dir, tal.DSC[i].CertificateFile)
	}

	if err := tal.validate(); err != nil {
		return nil, err
	}
	return &tal, nil
}

func (tal *TrustAnchorList) validate() error {
	if len(tal.CVCA) == 0 {
		return fmt.Errorf("config: trust anchor list has no cvca entries")
	}
	for i, a := range tal.CVCA {
		if err := a.validate("cvca", i); err != nil {
			return err
		}
	}
	for i, a := range tal.DSC {
		if err := a.validate("dsc", i); err != nil {
			return err
		}
	}
	return nil
}

func (a TrustAnchor) validate(section string, i int) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("config: %s[%d]: name is required", section, i)
	}
	if strings.TrimSpace(a.CertificateFile) == "" {
		return fmt.Errorf("config: %s[%d] (%s): certificate_file is required", section, i, a.Name)
	}
	return nil
}

// LoadCertificate reads the raw certificate bytes a.CertificateFile points
// to, DER or PEM as stored, leaving decoding to the caller.
func (a TrustAnchor) LoadCertificate() ([]byte, error) {
	data, err := os.ReadFile(a.CertificateFile)
	if err != nil {
		return nil, fmt.Errorf("config: read certificate for %q: %w", a.Name, err)
	}
	return data, nil
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
