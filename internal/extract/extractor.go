// Package extract provides text extraction from corpus file formats.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extractor extracts plain text from corpus files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBytes extracts text from content based on the file extension.
// ext should include the leading dot (e.g. ".pdf"). Plain text and markdown
// pass through (UTF-8 validated); PDF, DOCX, and XLSX are parsed. Unknown
// extensions are treated as plain text so a tenant can drop any readable
// file into its partition.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

// ExtractName is a convenience wrapper deriving the extension from name.
func (e *Extractor) ExtractName(content []byte, name string) (string, error) {
	text, err := e.ExtractBytes(content, filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return text, nil
}
