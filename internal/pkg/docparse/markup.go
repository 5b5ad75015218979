package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"docqa/internal/model"
)

var (
	mdHeading   = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.+?)\s*#*\s*$`)
	mdFence     = regexp.MustCompile("^\\s{0,3}(```|~~~)")
	scriptTag   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTag     = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	comments    = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags   = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)\b[^>]*>`)
	allTags     = regexp.MustCompile(`<[^>]+>`)
	multiSpaces = regexp.MustCompile(`[ \t]+`)
)

// parseMarkdown splits on ATX headings outside fenced code blocks.
func parseMarkdown(text string) []Section {
	var (
		sections []Section
		current  Section
		body     strings.Builder
		inFence  bool
	)
	flush := func() {
		current.Text = body.String()
		if strings.TrimSpace(current.Text) != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if mdFence.MatchString(line) {
			inFence = !inFence
		}
		if !inFence {
			if m := mdHeading.FindStringSubmatch(line); m != nil {
				flush()
				current = Section{Heading: strings.TrimSpace(m[2])}
			}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")
	content = blockTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

type docxBody struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

// parseDocx reads word/document.xml; paragraphs styled HeadingN start sections.
func parseDocx(data []byte) ([]Section, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", model.ErrInvalidInput, err)
	}
	var raw []byte
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml failed: %w", err)
		}
		raw, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml failed: %w", err)
		}
		break
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: word/document.xml missing", model.ErrInvalidInput)
	}

	var doc docxBody
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid document.xml: %v", model.ErrInvalidInput, err)
	}

	var (
		sections []Section
		current  Section
		body     strings.Builder
	)
	flush := func() {
		current.Text = body.String()
		if strings.TrimSpace(current.Text) != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}
	for _, p := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				line.WriteString(t)
			}
		}
		text := line.String()
		if strings.HasPrefix(strings.ToLower(p.Props.Style.Val), "heading") && strings.TrimSpace(text) != "" {
			flush()
			current = Section{Heading: strings.TrimSpace(text)}
		}
		body.WriteString(text)
		body.WriteString("\n")
	}
	flush()
	return sections, nil
}
