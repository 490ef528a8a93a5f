// Package export renders annotated analysis results for download.
package export

import (
	"fmt"
	"strings"

	"github.com/veritasai/veritas/internal/core/model"
)

// Format specifies the output serialization format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	Name        Format
	MIMEType    string
	Extension   string
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatCSV: {
		Name:        FormatCSV,
		MIMEType:    "text/csv",
		Extension:   ".csv",
		Description: "Comma-separated values for spreadsheet import",
	},
	FormatMarkdown: {
		Name:        FormatMarkdown,
		MIMEType:    "text/markdown",
		Extension:   ".md",
		Description: "Markdown pipe table",
	},
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "Annotated result in the wire shape",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "md" {
		f = FormatMarkdown
	}
	if _, ok := FormatRegistry[f]; !ok {
		return "", fmt.Errorf("unknown export format: %s", s)
	}
	return f, nil
}

// Render serializes the result in the requested format.
func Render(format Format, result model.AnalysisResult) (string, error) {
	switch format {
	case FormatCSV:
		return CSV(result.Partitions), nil
	case FormatMarkdown:
		return Markdown(result.Partitions), nil
	case FormatJSON:
		return JSON(result)
	default:
		return "", fmt.Errorf("unknown export format: %s", format)
	}
}
