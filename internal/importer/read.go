// Package importer loads business listings from CSV and XLSX files and
// writes them through the duplicate guard.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bizdir/internal/directory"
)

// Row is one listing in an import file. Header names are matched
// case-insensitively.
type Row struct {
	Name       string `csv:"name"`
	LocationID string `csv:"location_id"`
	City       string `csv:"city,omitempty"`
	Address    string `csv:"address,omitempty"`
	Email      string `csv:"email,omitempty"`
	Phone      string `csv:"phone,omitempty"`
	Category   string `csv:"category,omitempty"`
	OwnerID    string `csv:"owner_id,omitempty"`

	// Line is the 1-based record number, header included.
	Line int `csv:"-"`
}

// Business converts the row into a new record.
func (r Row) Business() directory.Business {
	return directory.Business{
		Name:       strings.TrimSpace(r.Name),
		LocationID: strings.TrimSpace(r.LocationID),
		City:       strings.TrimSpace(r.City),
		Address:    strings.TrimSpace(r.Address),
		Email:      strings.TrimSpace(r.Email),
		Phone:      strings.TrimSpace(r.Phone),
		Category:   strings.TrimSpace(r.Category),
		OwnerID:    strings.TrimSpace(r.OwnerID),
	}
}

// recordReader is the source csvutil decodes from.
type recordReader interface {
	Read() ([]string, error)
}

// ReadCSV decodes rows from a CSV stream whose first record is the header.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return decode(cr, "csv")
}

// ReadXLSX decodes rows from a worksheet whose first row is the header.
// An empty sheet name selects the first sheet.
func ReadXLSX(path, sheet string) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sh, err := pickSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	records := make([][]string, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return decode(&sliceReader{records: records}, "xlsx")
}

// ReadFile picks the decoder from the file extension.
func ReadFile(path, sheet string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "csv: open file")
		}
		defer f.Close() //nolint:errcheck
		rows, err := ReadCSV(f)
		return rows, eris.Wrapf(err, "importer: read %s", path)
	case ".xlsx":
		rows, err := ReadXLSX(path, sheet)
		return rows, eris.Wrapf(err, "importer: read %s", path)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadFiles reads several files concurrently and concatenates their rows in
// argument order.
func ReadFiles(ctx context.Context, paths []string, sheet string) ([]Row, error) {
	results := make([][]Row, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			rows, err := ReadFile(p, sheet)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Row
	for _, rows := range results {
		all = append(all, rows...)
	}
	return all, nil
}

func decode(src recordReader, kind string) ([]Row, error) {
	header, err := src.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read header", kind)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, eris.Errorf("%s: empty header", kind)
	}

	dec, err := csvutil.NewDecoder(&padReader{src: src, width: len(header)}, header...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: decoder", kind)
	}

	var rows []Row
	line := 1
	for {
		var r Row
		err := dec.Decode(&r)
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "%s: decode line %d", kind, line)
		}
		r.Line = line
		rows = append(rows, r)
	}
	return rows, nil
}

// padReader pads or truncates records to the header width. Spreadsheets drop
// trailing empty cells.
type padReader struct {
	src   recordReader
	width int
}

func (p *padReader) Read() ([]string, error) {
	rec, err := p.src.Read()
	if err != nil {
		return nil, err
	}
	switch {
	case len(rec) < p.width:
		rec = append(rec, make([]string, p.width-len(rec))...)
	case len(rec) > p.width:
		rec = rec[:p.width]
	}
	return rec, nil
}

type sliceReader struct {
	records [][]string
	pos     int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}
