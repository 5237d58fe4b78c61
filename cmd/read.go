package cmd

import (
	"context"
	"crypto/elliptic"
	"fmt"

	"github.com/spf13/cobra"

	"emrtd/apdu"
	"emrtd/asn1x"
	"emrtd/cryptoadapt"
	"emrtd/lds"
	"emrtd/output"
	"emrtd/protocol"
	"emrtd/sm"
	"emrtd/sod"
)

// Elementary file identifiers for the LDS1 data groups this command reads,
// per Doc 9303 Part 10's EF naming table.
const (
	fidCOM  = 0x011E
	fidDG1  = 0x0101
	fidDG14 = 0x010E
	fidSOD  = 0x011D
)

var showRawFlag bool

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Establish access control and read LDS data groups",
	Long: `Connect to a reader, run BAC or PACE to establish Secure Messaging,
then read and decode EF.COM, DG1 (MRZ), DG14 (SecurityInfos) and EF.SOD.

Example:
  emrtd read --document-number L898902C2 --date-of-birth 690806 --date-of-expiry 940623
  emrtd read --can 500540`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().BoolVar(&showRawFlag, "raw", false, "Show raw hex of every file read")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	t, err := connectReader()
	if err != nil {
		return err
	}
	defer t.Close()

	if err := selectEMRTDApplication(t); err != nil {
		return fmt.Errorf("select eMRTD application: %w", err)
	}

	session, err := establishSession(t)
	if err != nil {
		return err
	}
	secure := &smTransport{inner: t, session: session}

	ctx := context.Background()
	raw := map[string][]byte{}

	comData, err := readEF(ctx, secure, fidCOM)
	if err != nil {
		printWarning(fmt.Sprintf("could not read EF.COM: %v", err))
	} else {
		raw["EF.COM"] = comData
		if com, err := lds.DecodeCOM(comData); err != nil {
			printWarning(fmt.Sprintf("could not decode EF.COM: %v", err))
		} else if !outputJSON {
			output.PrintCOM(com)
		}
	}

	dg1Data, err := readEF(ctx, secure, fidDG1)
	if err != nil {
		printWarning(fmt.Sprintf("could not read DG1: %v", err))
	} else {
		raw["DG1"] = dg1Data
		if dg1, err := lds.DecodeDG1(dg1Data); err != nil {
			printWarning(fmt.Sprintf("could not decode DG1: %v", err))
		} else if !outputJSON {
			output.PrintMRZ(dg1.MRZ)
		}
	}

	dg14Data, err := readEF(ctx, secure, fidDG14)
	if err != nil {
		printWarning(fmt.Sprintf("could not read DG14: %v", err))
	} else {
		raw["DG14"] = dg14Data
		if infos, err := lds.DecodeDG14(dg14Data); err != nil {
			printWarning(fmt.Sprintf("could not decode DG14: %v", err))
		} else if !outputJSON {
			output.PrintSecurityInfos(infos)
		}
	}

	sodData, err := readEF(ctx, secure, fidSOD)
	if err != nil {
		printWarning(fmt.Sprintf("could not read EF.SOD: %v", err))
	} else {
		raw["EF.SOD"] = sodData
		if _, err := sod.Parse(sodData); err != nil {
			printWarning(fmt.Sprintf("could not parse EF.SOD: %v", err))
		} else {
			printSuccess("EF.SOD parsed; run 'emrtd verify' with a signer certificate to check it")
		}
	}

	if showRawFlag && !outputJSON {
		output.PrintRawData(raw)
	}
	return nil
}

// establishSession runs PACE if a CAN was given, falls back to BAC with
// the MRZ fields otherwise. A PICC that supports PACE always also accepts
// BAC, but callers that have a CAN on hand should prefer PACE's stronger
// key agreement.
func establishSession(t apdu.Transport) (*sm.Session, error) {
	if can != "" {
		params := protocol.PACEParams{
			OID:      defaultPACEOID,
			Cipher:   cryptoadapt.CipherAES,
			KeyLen:   16,
			Mapping:  protocol.MappingGM,
			Curve:    elliptic.P256(),
			Password: protocol.PasswordCAN,
			Secret:   []byte(can),
		}
		result, err := protocol.RunPACE(context.Background(), t, params)
		if err != nil {
			return nil, fmt.Errorf("PACE: %w", err)
		}
		printSuccess("PACE established a Secure Messaging session")
		return result.Session, nil
	}

	if documentNo == "" || dateOfBirth == "" || dateOfExpiry == "" {
		return nil, fmt.Errorf("provide --can, or --document-number/--date-of-birth/--date-of-expiry, to establish access control")
	}
	key := protocol.BACKey{DocumentNumber: documentNo, DateOfBirth: dateOfBirth, DateOfExpiry: dateOfExpiry}
	result, err := protocol.RunBAC(context.Background(), t, key)
	if err != nil {
		return nil, fmt.Errorf("BAC: %w", err)
	}
	printSuccess("BAC established a Secure Messaging session")
	return result.Session, nil
}

// defaultPACEOID is id-PACE-ECDH-GM-AES-CBC-CMAC-128, used when read falls
// back on the CAN with no protocol explicitly requested (the 'emrtd pace'
// command takes --oid to name another protocol OID, but always runs AES-128
// Generic Mapping over P-256).
var defaultPACEOID = asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 4, 2, 2}
