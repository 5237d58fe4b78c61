package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"emrtd/apdu"
	"emrtd/output"
	"emrtd/transport/pcsc"
)

var (
	version = "1.0.0"

	// Global flags, available to every subcommand that talks to a reader.
	readerIndex int
	documentNo  string
	dateOfBirth string
	dateOfExpiry string
	can         string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "emrtd",
	Short: "ICAO 9303 eMRTD reader",
	Long: `emrtd v` + version + `
Read and verify electronic machine readable travel documents (ePassports).

This tool supports:
  - BAC and PACE access control
  - Reading and decoding LDS files (EF.COM, DG1, DG14, EF.SOD)
  - Chip Authentication
  - Document Security Object (SOd) verification`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&readerIndex, "reader", "r", -1,
		"Reader index (when omitted, a single attached reader is used; with several, they are listed)")
	rootCmd.PersistentFlags().StringVar(&documentNo, "document-number", "",
		"Document number (MRZ field, for BAC/PACE with an MRZ-derived key)")
	rootCmd.PersistentFlags().StringVar(&dateOfBirth, "date-of-birth", "",
		"Date of birth, YYMMDD (for BAC/PACE with an MRZ-derived key)")
	rootCmd.PersistentFlags().StringVar(&dateOfExpiry, "date-of-expiry", "",
		"Date of expiry, YYMMDD (for BAC/PACE with an MRZ-derived key)")
	rootCmd.PersistentFlags().StringVar(&can, "can", "",
		"Card Access Number (for PACE with a CAN-derived key)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Output in JSON format")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectReader selects a reader (auto-selecting if exactly one is
// attached and none was specified) and returns it as an apdu.Transport
// ready for protocol use.
func connectReader() (*pcsc.Transport, error) {
	if readerIndex < 0 {
		readers, err := pcsc.ListReaders()
		if err != nil {
			return nil, fmt.Errorf("failed to list readers: %w", err)
		}
		if len(readers) == 0 {
			return nil, fmt.Errorf("no smart card readers found")
		}
		if len(readers) == 1 {
			readerIndex = 0
			if !outputJSON {
				output.PrintSuccess(fmt.Sprintf("Auto-selected reader: %s", readers[0]))
			}
		} else {
			output.PrintReaderList(readers)
			return nil, fmt.Errorf("multiple readers found, use -r <index> to select one")
		}
	}

	t, err := pcsc.Connect(readerIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if !outputJSON {
		output.PrintReaderInfo(t.Name(), t.ATRHex())
	}
	return t, nil
}

// selectEMRTDApplication selects the eMRTD LDS1 application by AID, the
// first step of every session before BAC/PACE.
func selectEMRTDApplication(t apdu.Transport) error {
	aid := []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}
	resp, err := apdu.Send(context.Background(), t, apdu.Command{CLA: 0x00, INS: 0xA4, P1: 0x04, P2: 0x0C, Data: aid})
	if err != nil {
		return err
	}
	return resp.Err()
}
