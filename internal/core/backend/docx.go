package backend

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`
	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`
	docxDocOpen  = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" + `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	docxDocClose = `<w:sectPr/></w:body></w:document>`
	docxBreak    = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`
)

// docxWriter streams paragraphs into a minimal WordprocessingML package.
type docxWriter struct {
	zw   *zip.Writer
	body io.Writer
}

func newDocxWriter(w io.Writer) (*docxWriter, error) {
	zw := zip.NewWriter(w)
	for _, part := range [][2]string{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
	} {
		f, err := zw.Create(part[0])
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(f, part[1]); err != nil {
			return nil, err
		}
	}
	body, err := zw.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(body, docxDocOpen); err != nil {
		return nil, err
	}
	return &docxWriter{zw: zw, body: body}, nil
}

// Paragraphs writes one paragraph per line of text.
func (d *docxWriter) Paragraphs(text string) error {
	for _, line := range strings.Split(text, "\n") {
		if _, err := io.WriteString(d.body, `<w:p><w:r><w:t xml:space="preserve">`); err != nil {
			return err
		}
		if err := xml.EscapeText(d.body, []byte(line)); err != nil {
			return err
		}
		if _, err := io.WriteString(d.body, `</w:t></w:r></w:p>`); err != nil {
			return err
		}
	}
	return nil
}

func (d *docxWriter) PageBreak() error {
	_, err := io.WriteString(d.body, docxBreak)
	return err
}

// Close finishes the document and the zip container.
func (d *docxWriter) Close() error {
	if _, err := io.WriteString(d.body, docxDocClose); err != nil {
		return err
	}
	return d.zw.Close()
}
