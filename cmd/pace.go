package cmd

import (
	"context"
	"crypto/elliptic"
	"fmt"

	"github.com/spf13/cobra"

	"emrtd/asn1x"
	"emrtd/cryptoadapt"
	"emrtd/protocol"
)

var (
	paceOIDFlag string
	pacePrompt  bool
)

var paceCmd = &cobra.Command{
	Use:   "pace",
	Short: "Run PACE (Generic Mapping, P-256) and report the resulting session",
	Long: `Establish a Secure Messaging session via PACE, Generic Mapping over the
NIST P-256 domain, using either the CAN or the MRZ-derived
password.

Example:
  emrtd pace --can 500540
  emrtd pace --document-number L898902C2 --date-of-birth 690806 --date-of-expiry 940623`,
	RunE: runPACE,
}

func init() {
	paceCmd.Flags().StringVar(&paceOIDFlag, "oid", "0.4.0.127.0.7.2.2.4.2.2",
		"PACE protocol OID (default: id-PACE-ECDH-GM-AES-CBC-CMAC-128)")
	paceCmd.Flags().BoolVar(&pacePrompt, "prompt", false,
		"Prompt for the CAN interactively instead of reading it from a flag")
	rootCmd.AddCommand(paceCmd)
}

func runPACE(cmd *cobra.Command, args []string) error {
	var pw protocol.PasswordType
	var secret string

	switch {
	case pacePrompt:
		entered, err := promptSecret("CAN: ")
		if err != nil {
			return err
		}
		pw, secret = protocol.PasswordCAN, entered
	case can != "":
		pw, secret = protocol.PasswordCAN, can
	case documentNo != "" && dateOfBirth != "" && dateOfExpiry != "":
		pw = protocol.PasswordMRZ
		key := protocol.BACKey{DocumentNumber: documentNo, DateOfBirth: dateOfBirth, DateOfExpiry: dateOfExpiry}
		secret = key.MRZInformation()
	default:
		return fmt.Errorf("either --can (or --prompt) or --document-number/--date-of-birth/--date-of-expiry is required")
	}

	oid, err := parseOID(paceOIDFlag)
	if err != nil {
		return fmt.Errorf("invalid --oid: %w", err)
	}

	t, err := connectReader()
	if err != nil {
		return err
	}
	defer t.Close()

	if err := selectEMRTDApplication(t); err != nil {
		return fmt.Errorf("select eMRTD application: %w", err)
	}

	params := protocol.PACEParams{
		OID:      oid,
		Cipher:   cryptoadapt.CipherAES,
		KeyLen:   16,
		Mapping:  protocol.MappingGM,
		Curve:    elliptic.P256(),
		Password: pw,
		Secret:   []byte(secret),
	}
	result, err := protocol.RunPACE(context.Background(), t, params)
	if err != nil {
		printError(fmt.Sprintf("PACE failed: %v", err))
		return err
	}

	printSuccess("PACE established a Secure Messaging session")
	if outputJSON {
		fmt.Printf(`{"ssc":"%X"}`+"\n", result.Session.SSC())
	} else {
		fmt.Printf("Session SSC: %X\n", result.Session.SSC())
	}
	return nil
}

// parseOID parses a dotted-decimal OID string into asn1x.OID.
func parseOID(s string) (asn1x.OID, error) {
	var oid asn1x.OID
	arc := 0
	haveDigit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			arc = arc*10 + int(c-'0')
			haveDigit = true
		case c == '.':
			if !haveDigit {
				return nil, fmt.Errorf("malformed OID %q", s)
			}
			oid = append(oid, uint32(arc))
			arc, haveDigit = 0, false
		default:
			return nil, fmt.Errorf("malformed OID %q", s)
		}
	}
	if !haveDigit {
		return nil, fmt.Errorf("malformed OID %q", s)
	}
	return append(oid, uint32(arc)), nil
}
