// Package output renders card data and protocol results as terminal tables:
// go-pretty's table and text subpackages, a shared rounded style, and one
// Print* function per kind of result.
package output

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"emrtd/cbeff"
	"emrtd/lds"
	"emrtd/sod"
)

var (
	colorHeader  = text.Colors{text.FgCyan, text.Bold}
	colorLabel   = text.Colors{text.FgYellow}
	colorValue   = text.Colors{text.FgWhite}
	colorSuccess = text.Colors{text.FgGreen}
	colorError   = text.Colors{text.FgRed}
	colorWarn    = text.Colors{text.FgYellow}
)

func getTableStyle() table.Style {
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Color.Row = text.Colors{text.FgWhite}
	style.Color.RowAlternate = text.Colors{text.FgHiWhite}
	style.Options.SeparateRows = false
	return style
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(getTableStyle())
	t.Style().Options.SeparateRows = false
	return t
}

// PrintReaderInfo prints the connected reader's name and ATR.
func PrintReaderInfo(readerName, atr string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("READER & CARD INFO")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 15},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	t.AppendRow(table.Row{"Reader", readerName})
	t.AppendRow(table.Row{"ATR", atr})
	t.Render()
}

// PrintReaderList prints every PC/SC reader found.
func PrintReaderList(readers []string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("AVAILABLE SMART CARD READERS")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 8},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	if len(readers) == 0 {
		t.AppendRow(table.Row{"Status", colorWarn.Sprint("No readers found")})
	} else {
		for i, r := range readers {
			t.AppendRow(table.Row{fmt.Sprintf("[%d]", i), r})
		}
	}
	t.Render()
}

// PrintMRZ prints a decoded DG1/MRZ.
func PrintMRZ(mrz lds.MRZInfo) {
	fmt.Println()
	t := newTable()
	t.SetTitle("DG1 - MACHINE READABLE ZONE")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	t.AppendRow(table.Row{"Document Type", mrz.DocumentCode})
	t.AppendRow(table.Row{"Issuing State", mrz.IssuingState})
	t.AppendRow(table.Row{"Document Number", mrz.DocumentNumber})
	t.AppendRow(table.Row{"Primary Identifier", mrz.PrimaryIdentifier})
	t.AppendRow(table.Row{"Secondary Identifier", mrz.SecondaryIdentifier})
	t.AppendRow(table.Row{"Nationality", mrz.Nationality})
	t.AppendRow(table.Row{"Date of Birth", mrz.DateOfBirth})
	t.AppendRow(table.Row{"Sex", mrz.Sex})
	t.AppendRow(table.Row{"Date of Expiry", mrz.DateOfExpiry})
	if mrz.OptionalData != "" {
		t.AppendRow(table.Row{"Optional Data", mrz.OptionalData})
	}
	if err := mrz.Validate(); err != nil {
		t.AppendRow(table.Row{"Check Digits", colorError.Sprintf("INVALID: %v", err)})
	} else {
		t.AppendRow(table.Row{"Check Digits", colorSuccess.Sprint("valid")})
	}
	t.Render()
}

// PrintCOM prints the EF.COM version and tag-list summary.
func PrintCOM(com *lds.COM) {
	fmt.Println()
	t := newTable()
	t.SetTitle("EF.COM")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	t.AppendRow(table.Row{"LDS Version", com.LDSVersion})
	t.AppendRow(table.Row{"Unicode Version", com.UnicodeVersion})
	var tags string
	for i, tag := range com.TagList {
		if i > 0 {
			tags += ", "
		}
		tags += fmt.Sprintf("%02X", tag)
	}
	t.AppendRow(table.Row{"Data Groups Present", tags})
	t.Render()
}

// PrintSecurityInfos prints DG14's list of supported chip protocols.
func PrintSecurityInfos(infos []lds.SecurityInfo) {
	fmt.Println()
	t := newTable()
	t.SetTitle("DG14 - SECURITY INFOS")
	t.AppendHeader(table.Row{"#", "Protocol", "OID"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 3},
		{Number: 2, Colors: colorValue, WidthMin: 25},
		{Number: 3, Colors: colorValue, WidthMin: 25},
	})
	for i, info := range infos {
		kind := "Unknown"
		switch info.(type) {
		case lds.ActiveAuthenticationInfo:
			kind = "Active Authentication"
		case lds.TerminalAuthenticationInfo:
			kind = "Terminal Authentication"
		case lds.PACEInfo:
			kind = "PACE"
		case lds.PACEDomainParameterInfo:
			kind = "PACE Domain Parameters"
		case lds.ChipAuthenticationInfo:
			kind = "Chip Authentication"
		case lds.ChipAuthenticationPublicKeyInfo:
			kind = "Chip Authentication Public Key"
		case lds.GenericSecurityInfo:
			kind = "(unrecognised)"
		}
		t.AppendRow(table.Row{i + 1, kind, info.OID().String()})
	}
	t.Render()
}

// PrintBITGroup prints a decoded CBEFF biometric information group.
func PrintBITGroup(bits []cbeff.BIT) {
	fmt.Println()
	t := newTable()
	t.SetTitle("BIOMETRIC INFORMATION TEMPLATE GROUP")
	t.AppendHeader(table.Row{"#", "Kind", "BDB Size"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 3},
		{Number: 2, Colors: colorValue, WidthMin: 15},
		{Number: 3, Colors: colorValue, WidthMin: 10},
	})
	for i, b := range bits {
		kind := "ISO 19794"
		if b.Kind == cbeff.BDBKindISO39794 {
			kind = "ISO 39794"
		}
		t.AppendRow(table.Row{i + 1, kind, len(b.BDB)})
	}
	t.Render()
}

// VerificationResult summarizes one SOd Verify/VerifyDataGroups run for
// PrintVerification.
type VerificationResult struct {
	SignatureValid   bool
	SignatureErr     error
	DataGroupResults map[int]error // nil error means the hash matched
}

// PrintVerification prints a Document Security Object verification summary.
func PrintVerification(doc *sod.Document, result VerificationResult) {
	fmt.Println()
	t := newTable()
	t.SetTitle("DOCUMENT SECURITY OBJECT VERIFICATION")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 25},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})
	if result.SignatureValid {
		t.AppendRow(table.Row{"Document Signer Signature", colorSuccess.Sprint("valid")})
	} else {
		t.AppendRow(table.Row{"Document Signer Signature", colorError.Sprintf("INVALID: %v", result.SignatureErr)})
	}

	var dgNumbers []int
	for dg := range result.DataGroupResults {
		dgNumbers = append(dgNumbers, dg)
	}
	sort.Ints(dgNumbers)
	for _, dg := range dgNumbers {
		err := result.DataGroupResults[dg]
		label := fmt.Sprintf("DG%d Hash", dg)
		if err == nil {
			t.AppendRow(table.Row{label, colorSuccess.Sprint("matches")})
		} else {
			t.AppendRow(table.Row{label, colorError.Sprintf("MISMATCH: %v", err)})
		}
	}
	t.Render()
}

// PrintRawData prints raw hex data for every file read, sorted by name.
func PrintRawData(rawFiles map[string][]byte) {
	fmt.Println()
	t := newTable()
	t.SetTitle("RAW FILE DATA (HEX)")
	t.AppendHeader(table.Row{"File", "Data (hex)"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 15},
		{Number: 2, Colors: colorValue, WidthMax: 80},
	})
	var keys []string
	for k := range rawFiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		t.AppendRow(table.Row{name, fmt.Sprintf("%X", rawFiles[name])})
	}
	t.Render()
}

// PrintError prints an error message.
func PrintError(msg string) {
	fmt.Println(colorError.Sprintf("✗ Error: %s", msg))
}

// PrintSuccess prints a success message.
func PrintSuccess(msg string) {
	fmt.Println(colorSuccess.Sprintf("✓ %s", msg))
}

// PrintWarning prints a warning message.
func PrintWarning(msg string) {
	fmt.Println(colorWarn.Sprintf("⚠ %s", msg))
}
