package datasource

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFile = errors.New("unsupported file type; use .csv or .xlsx")

// File is an uploaded or on-disk CSV/XLSX ledger held in memory.
type File struct {
	Name    string
	Sheet   string
	content []byte
	ext     string
	digest  string
}

func NewFile(name string, content []byte, sheet string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".csv" && ext != ".xlsx" {
		return nil, ErrUnsupportedFile
	}
	sum := sha256.Sum256(content)
	return &File{
		Name:    filepath.Base(name),
		Sheet:   strings.TrimSpace(sheet),
		content: content,
		ext:     ext,
		digest:  hex.EncodeToString(sum[:8]),
	}, nil
}

func OpenFile(path, sheet string) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceUnavailableError{Source: path, Err: err}
	}
	return NewFile(path, buf, sheet)
}

func (f *File) Key() string {
	return "file:" + f.digest + ":" + f.Sheet
}

func (f *File) IsWorkbook() bool { return f.ext == ".xlsx" }

// Sheets lists the workbook's sheets in order; CSV files have none.
func (f *File) Sheets() ([]string, error) {
	if !f.IsWorkbook() {
		return nil, nil
	}
	wb, err := excelize.OpenReader(bytes.NewReader(f.content))
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.GetSheetList(), nil
}

func (f *File) ReadGrid(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := f.readAllRows()
	if err != nil {
		return nil, &SourceUnavailableError{Source: f.Name, Err: err}
	}
	return rows, nil
}

func (f *File) readAllRows() ([][]string, error) {
	switch f.ext {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(f.content))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		if sniffSemicolon(f.content) {
			r.Comma = ';'
		}
		return r.ReadAll()
	default:
		// raw values keep dates as serials and amounts unformatted
		wb, err := excelize.OpenReader(bytes.NewReader(f.content), excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		defer wb.Close()
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return [][]string{}, nil
		}
		sheet := sheets[0]
		if f.Sheet != "" {
			if idx, _ := wb.GetSheetIndex(f.Sheet); idx < 0 {
				return nil, fmt.Errorf("sheet %q not found", f.Sheet)
			}
			sheet = f.Sheet
		}
		rs, err := wb.Rows(sheet)
		if err != nil {
			return nil, err
		}
		defer rs.Close()
		rows := [][]string{}
		for rs.Next() {
			r, err := rs.Columns()
			if err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
		return rows, rs.Error()
	}
}

// sniffSemicolon detects ';'-separated exports, common with decimal-comma locales.
func sniffSemicolon(content []byte) bool {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	return bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','})
}
