package cmd

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"emrtd/output"
	"emrtd/sod"
)

var (
	verifySODPath    string
	verifySignerPath string
	verifyDGPaths    []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an EF.SOD file against a signer certificate and data group files",
	Long: `Parse an EF.SOD file saved to disk, check its CMS signature against
a trusted Document Signer certificate, and compare its data group digests
against raw data group files saved to disk ('emrtd read --raw' prints
those bytes as hex; it writes no files).

Example:
  emrtd verify --sod EF.SOD.bin --signer ds.pem --dg 1=DG1.bin --dg 14=DG14.bin`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifySODPath, "sod", "", "Path to the EF.SOD file (required)")
	verifyCmd.Flags().StringVar(&verifySignerPath, "signer", "", "Path to the trusted Document Signer certificate, PEM or DER")
	verifyCmd.Flags().StringArrayVar(&verifyDGPaths, "dg", nil, "Data group file to check, as N=path (repeatable)")
	verifyCmd.MarkFlagRequired("sod")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	sodBytes, err := os.ReadFile(verifySODPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", verifySODPath, err)
	}
	doc, err := sod.Parse(sodBytes)
	if err != nil {
		return fmt.Errorf("parse EF.SOD: %w", err)
	}

	result := output.VerificationResult{DataGroupResults: map[int]error{}}

	if verifySignerPath != "" {
		cert, err := loadCertificate(verifySignerPath)
		if err != nil {
			return err
		}
		result.SignatureErr = doc.Verify(cert)
		result.SignatureValid = result.SignatureErr == nil
	}

	if len(verifyDGPaths) > 0 {
		actual, err := loadDataGroupFiles(verifyDGPaths)
		if err != nil {
			return err
		}
		for n, data := range actual {
			single := map[int][]byte{n: data}
			result.DataGroupResults[n] = doc.VerifyDataGroups(single)
		}
	}

	output.PrintVerification(doc, result)

	if result.SignatureErr != nil {
		return result.SignatureErr
	}
	for _, err := range result.DataGroupResults {
		if err != nil {
			return err
		}
	}
	return nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("parse certificate %s: %w", path, err)
	}
	return cert, nil
}

// loadDataGroupFiles parses --dg N=path entries into a data group number to
// file contents map, the same shape sod.Document.VerifyDataGroups expects.
func loadDataGroupFiles(entries []string) (map[int][]byte, error) {
	out := map[int][]byte{}
	for _, entry := range entries {
		var n int
		var path string
		if _, err := fmt.Sscanf(entry, "%d=%s", &n, &path); err != nil {
			return nil, fmt.Errorf("malformed --dg entry %q, want N=path", entry)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out[n] = data
	}
	return out, nil
}
