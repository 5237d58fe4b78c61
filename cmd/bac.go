package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"emrtd/protocol"
)

var bacPrompt bool

var bacCmd = &cobra.Command{
	Use:   "bac",
	Short: "Run Basic Access Control and report the resulting session",
	Long: `Establish a Secure Messaging session via Basic Access Control,
using the MRZ-derived key formed from the document number, date of birth
and date of expiry.

Example:
  emrtd bac --document-number L898902C2 --date-of-birth 690806 --date-of-expiry 940623`,
	RunE: runBAC,
}

func init() {
	bacCmd.Flags().BoolVar(&bacPrompt, "prompt", false,
		"Prompt for the document number interactively instead of reading it from a flag")
	rootCmd.AddCommand(bacCmd)
}

func runBAC(cmd *cobra.Command, args []string) error {
	docNo := documentNo
	if bacPrompt {
		entered, err := promptSecret("Document number: ")
		if err != nil {
			return err
		}
		docNo = entered
	}
	if docNo == "" || dateOfBirth == "" || dateOfExpiry == "" {
		return fmt.Errorf("--document-number, --date-of-birth and --date-of-expiry are all required")
	}

	t, err := connectReader()
	if err != nil {
		return err
	}
	defer t.Close()

	if err := selectEMRTDApplication(t); err != nil {
		return fmt.Errorf("select eMRTD application: %w", err)
	}

	key := protocol.BACKey{DocumentNumber: docNo, DateOfBirth: dateOfBirth, DateOfExpiry: dateOfExpiry}
	result, err := protocol.RunBAC(context.Background(), t, key)
	if err != nil {
		printError(fmt.Sprintf("BAC failed: %v", err))
		return err
	}

	printSuccess("BAC established a Secure Messaging session")
	if outputJSON {
		fmt.Printf(`{"ssc":"%X"}`+"\n", result.Session.SSC())
	} else {
		fmt.Printf("Session SSC: %X\n", result.Session.SSC())
	}
	return nil
}
