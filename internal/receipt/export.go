package receipt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyExport is returned when an export is requested for zero receipts
var ErrEmptyExport = errors.New("no receipts to export")

var csvHeader = []string{
	"Date",
	"Time",
	"Merchant",
	"Category",
	"Subtotal",
	"Tax",
	"Total",
	"Payment Method",
	"Items",
	"Item Count",
}

// Downloader hands a finished export to the platform, e.g. a file on disk
// or an HTTP attachment.
type Downloader interface {
	TriggerDownload(data []byte, filename string) error
}

// Clock provides the export timestamp
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Exporter serializes receipts to CSV and passes the bytes to a Downloader
type Exporter struct {
	downloader Downloader
	clock      Clock
}

// NewExporter creates an Exporter using the system clock
func NewExporter(d Downloader) *Exporter {
	return NewExporterWithClock(d, systemClock{})
}

// NewExporterWithClock creates an Exporter with a custom clock for testing
func NewExporterWithClock(d Downloader, c Clock) *Exporter {
	return &Exporter{downloader: d, clock: c}
}

// Export writes receipts as CSV and triggers the download. It returns the
// file name used. An empty set returns ErrEmptyExport and downloads nothing.
func (e *Exporter) Export(receipts []Receipt) (string, error) {
	if len(receipts) == 0 {
		return "", ErrEmptyExport
	}

	var buf strings.Builder
	if err := WriteCSV(&buf, receipts); err != nil {
		return "", fmt.Errorf("writing csv: %w", err)
	}

	filename := ExportFilename(e.clock.Now())
	if err := e.downloader.TriggerDownload([]byte(buf.String()), filename); err != nil {
		return "", fmt.Errorf("downloading %s: %w", filename, err)
	}
	return filename, nil
}

// ExportFilename names an export after the UTC date of the export itself
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("smartreceipt_export_%s.csv", now.UTC().Format("2006-01-02"))
}

// WriteCSV writes the header and one row per receipt to w.
// Merchant and Items are always quoted; other fields only when needed.
func WriteCSV(w io.Writer, receipts []Receipt) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, csvHeader, nil)
	for _, r := range receipts {
		writeRow(bw, csvRow(r), alwaysQuoted)
	}
	return bw.Flush()
}

// columns 2 (Merchant) and 8 (Items)
var alwaysQuoted = map[int]bool{2: true, 8: true}

func csvRow(r Receipt) []string {
	return []string{
		r.Date,
		r.Time,
		r.MerchantName,
		string(r.Category),
		r.Subtotal.StringFixed(2),
		r.Tax.StringFixed(2),
		r.Total.StringFixed(2),
		r.PaymentMethod,
		FormatItems(r.Items),
		strconv.Itoa(len(r.Items)),
	}
}

// FormatItems renders items as "2x Burger ($5.50); 1x Fries ($2.00)"
func FormatItems(items []Item) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%dx %s ($%s)", item.Quantity, item.Name, item.Price.StringFixed(2))
	}
	return strings.Join(parts, "; ")
}

func writeRow(w *bufio.Writer, fields []string, quoted map[int]bool) {
	for i, field := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		if quoted[i] || needsQuotes(field) {
			w.WriteByte('"')
			w.WriteString(strings.ReplaceAll(field, `"`, `""`))
			w.WriteByte('"')
			continue
		}
		w.WriteString(field)
	}
	w.WriteByte('\n')
}

func needsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n")
}
