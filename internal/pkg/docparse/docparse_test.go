package docparse

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/model"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "pdf", Format("Report.PDF"))
	assert.Equal(t, "md", Format("notes.markdown"))
	assert.Equal(t, "", Format("image.png"))
	assert.Contains(t, Supported(), ".docx")
}

func TestParse_Unsupported(t *testing.T) {
	_, err := Parse("photo.png", []byte("x"))
	assert.True(t, errors.Is(err, model.ErrUnsupportedFormat))
}

func TestParse_EmptyText(t *testing.T) {
	_, err := Parse("blank.txt", []byte(" \n\t "))
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestParse_PlainText(t *testing.T) {
	doc, err := Parse("a.txt", []byte("\xef\xbb\xbfhello\r\nworld"))
	require.NoError(t, err)
	text, marks := doc.Flatten()
	assert.Equal(t, "hello\nworld", text)
	require.Len(t, marks, 1)
	assert.Equal(t, 0, marks[0].Offset)
}

func TestParse_MarkdownSections(t *testing.T) {
	src := "Intro line\n\n# Install\nRun it.\n```\n# not a heading\n```\n## Configure ##\nEdit the file.\n"
	doc, err := Parse("guide.md", []byte(src))
	require.NoError(t, err)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "", doc.Sections[0].Heading)
	assert.Equal(t, "Install", doc.Sections[1].Heading)
	assert.Contains(t, doc.Sections[1].Text, "# not a heading")
	assert.Equal(t, "Configure", doc.Sections[2].Heading)

	text, marks := doc.Flatten()
	require.Len(t, marks, 3)
	assert.Equal(t, "Install", marks[1].Heading)
	assert.Equal(t, "# Install", string([]rune(text)[marks[1].Offset:marks[1].Offset+9]))
}

func TestParse_HTML(t *testing.T) {
	src := `<html><head><title>t</title><style>p{}</style></head><body><h1>Title</h1><p>Fish &amp; chips</p><script>x()</script></body></html>`
	doc, err := Parse("page.html", []byte(src))
	require.NoError(t, err)
	text, _ := doc.Flatten()
	assert.Equal(t, "Title\nFish & chips", text)
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse("data.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	text, _ := doc.Flatten()
	assert.Equal(t, "{\n  \"a\": 1\n}", text)

	_, err = Parse("bad.json", []byte(`{"a":`))
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestParse_Docx(t *testing.T) {
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Preface text.</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Safety</w:t></w:r></w:p>
<w:p><w:r><w:t>Wear </w:t></w:r><w:r><w:t>gloves.</w:t></w:r></w:p>
</w:body></w:document>`
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(xmlBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	doc, err := Parse("manual.docx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Safety", doc.Sections[1].Heading)
	assert.Contains(t, doc.Sections[1].Text, "Wear gloves.")

	_, err = Parse("broken.docx", []byte("not a zip"))
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestFlatten_PagesAndOffsets(t *testing.T) {
	doc := &Document{Sections: []Section{
		{Page: 1, Text: "héllo"},
		{Page: 2, Text: "  "},
		{Page: 3, Text: "world"},
	}}
	text, marks := doc.Flatten()
	assert.Equal(t, "héllo\n\nworld", text)
	require.Len(t, marks, 2)
	assert.Equal(t, Mark{Offset: 0, Page: 1}, marks[0])
	assert.Equal(t, Mark{Offset: 7, Page: 3}, marks[1])
}
