// Package stockimport reads bulk stock intake sheets (CSV exports from a
// spreadsheet) and turns every row into a product addition.
package stockimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	enc "github.com/MrJamesThe3rd/cafenet/internal/encoding"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

var ErrNoHeader = errors.New("no header row found: expected name, quantity, buy and sell price columns")

// Row is one parsed intake line. Line is 1-based in the original file.
type Row struct {
	Line   int
	Params ledger.AddParams
}

// RowError reports a data line that could not be parsed.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Sheet is the parse result of a whole file.
type Sheet struct {
	Charset string
	Rows    []Row
	Invalid []RowError
}

// Options tune parsing. The zero value auto-detects everything.
type Options struct {
	// Charset skips detection when set, e.g. "windows-1256".
	Charset string
}

// Parse reads an intake sheet. The header row may appear anywhere in the
// file; rows above it (titles, notes) are ignored. Data rows with an empty
// name are skipped silently, and malformed ones are reported in Invalid.
func Parse(r io.Reader, opts Options) (*Sheet, error) {
	sheet := &Sheet{}

	var (
		utf8r io.Reader
		err   error
	)

	if opts.Charset != "" {
		utf8r, err = enc.NewDecodingReader(r, opts.Charset)
		sheet.Charset = opts.Charset
	} else {
		utf8r, sheet.Charset, err = enc.Detect(r)
	}

	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	br := bufio.NewReader(utf8r)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, lines, err := readAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cols, headerIdx, ok := detectHeader(rows)
	if !ok {
		return nil, ErrNoHeader
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]

		name := cellValue(row, cols[fieldName])
		if name == "" {
			continue
		}

		params, err := ledger.ParseAddInput(
			name,
			cellValue(row, cols[fieldQuantity]),
			cellValue(row, cols[fieldBuyPrice]),
			cellValue(row, cols[fieldSellPrice]),
		)
		if err != nil {
			sheet.Invalid = append(sheet.Invalid, RowError{Line: lines[i], Err: err.Error()})
			continue
		}

		sheet.Rows = append(sheet.Rows, Row{Line: lines[i], Params: params})
	}

	return sheet, nil
}

// readAll is csv.Reader.ReadAll that also keeps the source line of every
// record, since blank lines are skipped by the reader.
func readAll(reader *csv.Reader) ([][]string, []int, error) {
	var (
		rows  [][]string
		lines []int
	)

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, lines, nil
		}

		if err != nil {
			return nil, nil, err
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
}

// sniffDelimiter picks the most frequent of , ; and tab on the first line.
func sniffDelimiter(br *bufio.Reader) rune {
	buf, _ := br.Peek(br.Size())

	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}

	best, bestCount := ',', 0

	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(buf), string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}

	return best
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
