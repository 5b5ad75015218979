// Package docparse extracts text from uploaded files, keeping page and
// heading boundaries so chunks can be cited by location.
package docparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docqa/internal/model"
	"docqa/internal/pkg/pdfextract"
)

// Section is a run of text sharing one page and heading.
type Section struct {
	Page    int
	Heading string
	Text    string
}

type Document struct {
	Format   string
	Sections []Section
}

// Mark is the page and heading in effect from a rune offset of the flattened text.
type Mark struct {
	Offset  int
	Page    int
	Heading string
}

var formats = map[string]string{
	".txt":      "txt",
	".text":     "txt",
	".log":      "txt",
	".md":       "md",
	".markdown": "md",
	".csv":      "csv",
	".json":     "json",
	".html":     "html",
	".htm":      "html",
	".docx":     "docx",
	".pdf":      "pdf",
}

// Format returns the format name for a file name, or "" when unsupported.
func Format(name string) string {
	return formats[strings.ToLower(filepath.Ext(name))]
}

// Supported lists accepted file extensions.
func Supported() []string {
	out := make([]string, 0, len(formats))
	for ext := range formats {
		out = append(out, ext)
	}
	return out
}

// Parse extracts the text of a file chosen by its extension.
func Parse(name string, data []byte) (*Document, error) {
	format := Format(name)
	if format == "" {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, filepath.Ext(name))
	}

	var (
		sections []Section
		err      error
	)
	switch format {
	case "md":
		sections = parseMarkdown(decodeText(data))
	case "json":
		sections, err = parseJSON(data)
	case "html":
		sections = []Section{{Text: stripHTML(decodeText(data))}}
	case "docx":
		sections, err = parseDocx(data)
	case "pdf":
		sections, err = parsePDF(data)
	default:
		sections = []Section{{Text: decodeText(data)}}
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s failed: %w", name, err)
	}

	doc := &Document{Format: format, Sections: sections}
	if text, _ := doc.Flatten(); strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s contains no extractable text", model.ErrInvalidInput, name)
	}
	return doc, nil
}

// Flatten joins non-empty sections with blank lines and reports where each
// section starts, in runes.
func (d *Document) Flatten() (string, []Mark) {
	var (
		b     strings.Builder
		marks []Mark
		runes int
	)
	for _, s := range d.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			runes += 2
		}
		marks = append(marks, Mark{Offset: runes, Page: s.Page, Heading: s.Heading})
		b.WriteString(text)
		runes += utf8.RuneCountInString(text)
	}
	return b.String(), marks
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func parseJSON(data []byte) ([]Section, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), "", "  "); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", model.ErrInvalidInput, err)
	}
	return []Section{{Text: out.String()}}, nil
}

func parsePDF(data []byte) ([]Section, error) {
	pages, err := pdfextract.ExtractPages(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	sections := make([]Section, 0, len(pages))
	for i, p := range pages {
		sections = append(sections, Section{Page: i + 1, Text: p})
	}
	if len(sections) > 0 {
		return sections, nil
	}
	// some producers expose text only through the document-level stream
	text, err := pdfextract.ExtractText(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return []Section{{Page: 1, Text: text}}, nil
}
