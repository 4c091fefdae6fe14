package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"go.uber.org/zap"
)

type docxBody struct {
	Paragraphs []docxParagraph `xml:"body>p"`
	Tables     []docxTable     `xml:"body>tbl"`
}

type docxParagraph struct {
	Runs []string `xml:"r>t"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

// extractDocx pulls paragraph and table text out of the document archive.
func (e *Extractor) extractDocx(filename string, data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn("Could not open document archive",
			zap.String("filename", filename), zap.Error(err))
		return ""
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				e.logger.Warn("Could not read document body",
					zap.String("filename", filename), zap.Error(err))
				return ""
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return ""
			}
			break
		}
	}
	if docXML == nil {
		return ""
	}

	var body docxBody
	if err := xml.Unmarshal(docXML, &body); err != nil {
		e.logger.Warn("Could not parse document body",
			zap.String("filename", filename), zap.Error(err))
		return ""
	}

	var lines []string
	for _, p := range body.Paragraphs {
		if line := strings.Join(p.Runs, ""); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	for _, tbl := range body.Tables {
		for _, row := range tbl.Rows {
			for _, cell := range row.Cells {
				for _, p := range cell.Paragraphs {
					if line := strings.Join(p.Runs, ""); strings.TrimSpace(line) != "" {
						lines = append(lines, line)
					}
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}
