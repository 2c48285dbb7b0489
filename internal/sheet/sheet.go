// Package sheet reads and writes the spreadsheet files exchanged with the
// branch reporting system.
//
// Inputs may be .xlsx (Office Open XML), legacy .xls (BIFF8) or .csv. Only the
// first sheet of a workbook is read. Numeric cells, including date-formatted
// ones, keep their raw value so the merge engine sees date serials.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

// DefaultSheetName is the name of the single sheet in generated workbooks.
const DefaultSheetName = "GuarantorInfoData"

// Format is a detected input container.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatCSV     Format = "csv"
	FormatUnknown Format = ""
)

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ErrUnsupportedFormat is returned for files that are not a workbook or CSV.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyFile is returned when the input has no bytes.
var ErrEmptyFile = errors.New("file is empty")

// Detect identifies the container from its leading bytes, falling back to the
// file extension for CSV.
func Detect(name string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	}
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatUnknown
}

// AllowedExtension reports whether name has an extension accepted for upload.
func AllowedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}

// Codec parses inputs and writes the merged workbook. The zero value is ready
// to use and implements both merge.Parser and merge.Writer.
type Codec struct {
	// SheetName overrides DefaultSheetName for written workbooks.
	SheetName string
}

// Parse reads the first sheet of name/data.
func (c Codec) Parse(name string, data []byte) (merge.Table, error) {
	return Parse(name, data)
}

// Write serializes t as a single-sheet .xlsx workbook.
func (c Codec) Write(t *merge.OutputTable) ([]byte, error) {
	sheet := c.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return Write(t, sheet)
}

// Parse reads the first sheet of a workbook or a CSV file.
func Parse(name string, data []byte) (merge.Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	switch Detect(name, data) {
	case FormatXLSX:
		return parseXLSX(data)
	case FormatXLS:
		return parseXLS(data)
	case FormatCSV:
		return parseCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}
