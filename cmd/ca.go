package cmd

import (
	"context"
	"crypto/elliptic"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"emrtd/cryptoadapt"
	"emrtd/protocol"
)

var (
	caPublicX  string
	caPublicY  string
	caKeyID    int64
	caHasKeyID bool
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Run Chip Authentication (EC, P-256) after BAC or PACE",
	Long: `Establish the BAC or PACE session as usual, then run Chip
Authentication against the PICC's static public key (read from DG14
beforehand and passed in as hex-encoded affine coordinates).

Example:
  emrtd ca --can 500540 --picc-public-x <hex> --picc-public-y <hex>`,
	RunE: runCA,
}

func init() {
	caCmd.Flags().StringVar(&caPublicX, "picc-public-x", "", "PICC static Chip Authentication public key, X coordinate (hex)")
	caCmd.Flags().StringVar(&caPublicY, "picc-public-y", "", "PICC static Chip Authentication public key, Y coordinate (hex)")
	caCmd.Flags().Int64Var(&caKeyID, "key-id", 0, "PICC CA key id, when DG14 lists more than one")
	caCmd.Flags().BoolVar(&caHasKeyID, "has-key-id", false, "Set when --key-id should be sent (DG14 lists several CA keys)")
	caCmd.MarkFlagRequired("picc-public-x")
	caCmd.MarkFlagRequired("picc-public-y")
	rootCmd.AddCommand(caCmd)
}

func runCA(cmd *cobra.Command, args []string) error {
	x, err := parseHexBigInt(caPublicX)
	if err != nil {
		return fmt.Errorf("--picc-public-x: %w", err)
	}
	y, err := parseHexBigInt(caPublicY)
	if err != nil {
		return fmt.Errorf("--picc-public-y: %w", err)
	}

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

	params := protocol.CAParams{
		Cipher:       cryptoadapt.CipherAES,
		KeyLen:       16,
		Digest:       cryptoadapt.DigestSHA256,
		Curve:        elliptic.P256(),
		PICCPublicEC: protocol.ECPoint{X: x, Y: y},
	}
	if caHasKeyID {
		params.PICCKeyID = &caKeyID
	}

	result, err := protocol.RunCA(context.Background(), secure, params)
	if err != nil {
		printError(fmt.Sprintf("Chip Authentication failed: %v", err))
		return err
	}

	printSuccess("Chip Authentication succeeded, Secure Messaging session replaced")
	if outputJSON {
		fmt.Printf(`{"ssc":"%X","pcd_key_hash":"%X"}`+"\n", result.NewSession.SSC(), result.PCDKeyHash)
	} else {
		fmt.Printf("New session SSC: %X\n", result.NewSession.SSC())
		fmt.Printf("PCD ephemeral key hash (for Terminal Authentication): %X\n", result.PCDKeyHash)
	}
	return nil
}

func parseHexBigInt(s string) (*big.Int, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
