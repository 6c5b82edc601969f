package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// CSVRenderer writes CRLF separated values with "#" metadata lines.
type CSVRenderer struct{}

func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }
func (CSVRenderer) Extension() string   { return "csv" }

// Render implements Renderer.
func (CSVRenderer) Render(_ context.Context, ds Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV streams ds to w.
func WriteCSV(w io.Writer, ds Dataset) error {
	streamer := newCSVStreamer(w)
	m := ds.Meta
	comments := []string{
		"# Report: " + ds.Title,
		"# Customer: " + strings.TrimSpace(m.Customer.ID+" "+m.Customer.Name),
		"# Period: " + m.Period.Label(),
		"# Opening Balance: " + balanceLabel(m.OpeningBalance, m.Policy),
		"# Closing Balance: " + balanceLabel(m.ClosingBalance, m.Policy),
		"# Rows: " + strconv.Itoa(len(ds.Rows)),
	}
	for _, line := range comments {
		if err := streamer.writeComment(line); err != nil {
			return err
		}
	}
	header := make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		header[i] = col.Title
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}
	for _, row := range ds.Rows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	totals := make([]string, len(ds.Columns))
	if len(totals) > 0 {
		totals[0] = "Totals"
	}
	for i, col := range ds.Columns {
		switch col.Key {
		case ledger.ColDebit:
			totals[i] = ledger.FormatCurrency(ds.TotalDebits)
		case ledger.ColCredit:
			totals[i] = ledger.FormatCurrency(ds.TotalCredits)
		}
	}
	if err := streamer.writeRow(totals); err != nil {
		return err
	}
	return streamer.Close()
}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	// Pending records must reach buf before the raw line does.
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n") + "\r\n"
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}
