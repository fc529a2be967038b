package tools

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/arclane/conduit/pkg/tool"
)

// ReadDocument extracts plain text from pdf, docx, and xlsx files by
// extension, so the agent can read uploaded reference material the same
// way it reads a source file. No teacher analogue; grounded on the
// document-handler idiom of pkg/tool/filetool/read_file.go (path-scoped
// read returning plain text) generalized across formats.
type ReadDocument struct{}

func (ReadDocument) Definition() tool.Def {
	return tool.Def{
		Name:        "read_document",
		Description: "Extract plain text from a .pdf, .docx, or .xlsx file.",
		InputSchema: &jsonschema.Schema{Required: []string{"path"}},
	}
}

func (ReadDocument) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("read_document: path is required")
	}
	resolved, err := resolve(ectx.WorkingDir, path)
	if err != nil {
		return "", err
	}

	switch {
	case strings.HasSuffix(resolved, ".pdf"):
		return readPDF(resolved)
	case strings.HasSuffix(resolved, ".docx"):
		return readDOCX(resolved)
	case strings.HasSuffix(resolved, ".xlsx"):
		return readXLSX(resolved)
	default:
		return "", fmt.Errorf("read_document: unsupported extension for %s", path)
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("read_document: open pdf: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	totalPages := r.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read_document: page %d: %w", i, err)
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func readDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("read_document: open docx: %w", err)
	}
	defer r.Close()
	return r.Editable().GetContent(), nil
}

func readXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("read_document: open xlsx: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read_document: sheet %s: %w", sheet, err)
		}
		fmt.Fprintf(&buf, "# %s\n", sheet)
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
