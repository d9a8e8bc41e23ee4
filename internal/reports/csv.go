package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/evergreen-media/backstage/internal/money"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

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

// writeComment flushes pending rows first; the csv writer buffers
// internally and comment lines bypass it.
func (s *csvStreamer) writeComment(line string) error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *csvStreamer) flush() error {
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

// WritePayoutCSV streams the payout reconciliation report. Amount columns
// carry exact decimal strings; a formatted display column follows each.
func WritePayoutCSV(w io.Writer, report PayoutReport, generatedAt time.Time) error {
	s := newCSVStreamer(w)
	if err := s.writeComment(fmt.Sprintf("# Partner payout reconciliation %s to %s", report.From, report.To)); err != nil {
		return err
	}
	if err := s.writeComment(fmt.Sprintf("# generated %s", generatedAt.UTC().Format(time.RFC3339))); err != nil {
		return err
	}
	if err := s.writeComment(fmt.Sprintf("# total paid %s, total billed %s, outstanding %s, unpaid bills %d",
		report.TotalPaid, report.TotalBilled, report.OutstandingBilled, report.UnpaidBills)); err != nil {
		return err
	}

	if err := s.writeRow([]string{"group", "id", "total_paid", "total_paid_display"}); err != nil {
		return err
	}
	for _, p := range report.ByPartner {
		if err := s.writeRow([]string{"partner", strconv.FormatInt(p.ID, 10), p.TotalPaid.String(), FormatUSD(p.TotalPaid)}); err != nil {
			return err
		}
	}
	for _, p := range report.ByShow {
		if err := s.writeRow([]string{"show", strconv.FormatInt(p.ID, 10), p.TotalPaid.String(), FormatUSD(p.TotalPaid)}); err != nil {
			return err
		}
	}
	for _, f := range report.Flags {
		if err := s.writeComment(fmt.Sprintf("# flagged bill %s payment %s: %s", f.BillNumber, f.PaymentID, f.Reason)); err != nil {
			return err
		}
	}
	return s.flush()
}

// WriteCompensationCSV streams the per-invoice compensation report.
func WriteCompensationCSV(w io.Writer, report CompensationReport, generatedAt time.Time) error {
	s := newCSVStreamer(w)
	if err := s.writeComment(fmt.Sprintf("# Compensation report %s to %s (splits snapshot %s)",
		report.From, report.To, report.SnapshotVersion)); err != nil {
		return err
	}
	if err := s.writeComment(fmt.Sprintf("# generated %s", generatedAt.UTC().Format(time.RFC3339))); err != nil {
		return err
	}
	if err := s.writeComment(fmt.Sprintf("# net revenue %s, evergreen share %s, excluded entries %d",
		report.Totals.TotalNetRevenue, report.Totals.TotalEvergreenShare, report.Totals.Excluded)); err != nil {
		return err
	}

	header := []string{"entry_id", "show_id", "vendor_id", "customer", "category", "invoice_date",
		"invoice_amount", "payment_received", "evergreen", "partner", "outstanding",
		"evergreen_display", "partner_display"}
	if err := s.writeRow(header); err != nil {
		return err
	}
	for _, line := range report.Lines {
		if err := s.writeRow([]string{
			strconv.FormatInt(line.EntryID, 10),
			strconv.FormatInt(line.ShowID, 10),
			strconv.FormatInt(line.VendorID, 10),
			line.Customer,
			string(line.Category),
			line.InvoiceDate,
			line.InvoiceAmount.String(),
			optAmount(line.PaymentReceived),
			optAmount(line.Evergreen),
			optAmount(line.Partner),
			optAmount(line.Outstanding),
			FormatUSDPtr(line.Evergreen),
			FormatUSDPtr(line.Partner),
		}); err != nil {
			return err
		}
	}
	return s.flush()
}

// optAmount keeps unknown values blank in exports; a blank cell and "0"
// mean different things to the accountant reading the file.
func optAmount(a *money.Amount) string {
	if a == nil {
		return ""
	}
	return a.String()
}
