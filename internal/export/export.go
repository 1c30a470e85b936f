// Package export renders result records as downloadable CSV or XLSX files.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"cardscan-backend/internal/cards"
)

// Format is a supported download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet holding the records in XLSX exports.
const SheetName = "Business Cards"

// ErrUnknownFormat is returned by ParseFormat for anything but csv or xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts csv (the default when raw is empty) or xlsx.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// FileName is the attachment name for a download.
func (f Format) FileName() string {
	return "business_cards." + string(f)
}

// ContentType is the MIME type for a download.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Render encodes records in the given format.
func Render(f Format, records []cards.Record) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return XLSX(records)
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, records); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// WriteCSV writes the header row followed by one row per record.
func WriteCSV(w io.Writer, records []cards.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cards.Header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Fields()); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return nil
}

// ReadCSV decodes a file produced by WriteCSV. The header row is required.
func ReadCSV(r io.Reader) ([]cards.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv read: %w", err)
	}
	return fromRows(rows)
}

// XLSX builds a workbook with a single "Business Cards" sheet.
func XLSX(records []cards.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	f.SetActiveSheet(index)

	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellStr(SheetName, cell, v)
	}

	for i, h := range cards.Header {
		if err := write(i+1, 1, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}
	for r, rec := range records {
		for c, v := range rec.Fields() {
			if err := write(c+1, r+2, v); err != nil {
				return nil, fmt.Errorf("xlsx row %d: %w", r+1, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "B", 32)
	_ = f.SetColWidth(SheetName, "C", "C", 36)
	_ = f.SetColWidth(SheetName, "D", "D", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadXLSX decodes a workbook produced by XLSX.
func ReadXLSX(r io.Reader) ([]cards.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx open: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("xlsx rows: %w", err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]cards.Record, error) {
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}
	header := rows[0]
	if len(header) < len(cards.Header) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}
	for i, want := range cards.Header {
		if strings.TrimPrefix(header[i], "\ufeff") != want {
			return nil, fmt.Errorf("unexpected header %v", header)
		}
	}
	out := make([]cards.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, cards.RecordFromFields(row))
	}
	return out, nil
}
