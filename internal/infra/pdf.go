package infra

// pdf.go — Z-report generation using go-pdf/fpdf.
// One A4 page per closed session: station header, open/close window,
// tender breakdown from the frozen totals, cash movements, and the final
// drawer count if one was recorded.
//
// The output file is saved to storagePath/zreport_{sessionID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"tillcore/internal/model"
	"tillcore/internal/money"
)

// ZReportRenderer writes end-of-shift reports to local disk.
type ZReportRenderer struct {
	storagePath string
}

func NewZReportRenderer(storagePath string) *ZReportRenderer {
	return &ZReportRenderer{storagePath: storagePath}
}

// RenderSessionReport generates the Z-report PDF for a closed session and
// returns the absolute path to the generated file.
func (r *ZReportRenderer) RenderSessionReport(session *model.CashSession) (string, error) {
	if err := os.MkdirAll(r.storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("zreport_%s.pdf", session.ID)
	filePath := filepath.Join(r.storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Z-Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, "Station "+session.StationID, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	// ── Session window ────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Session: "+session.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Opened:  "+session.OpenedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	if session.ClosedAt != nil {
		pdf.CellFormat(contentW, 5, "Closed:  "+session.ClosedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	// ── Tender breakdown (frozen at close) ────────────────────────────────────
	col1 := contentW * 0.45
	col2 := contentW * 0.25
	col3 := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1, 6, "Tender", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Count", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 6, "Captured", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	grand := decimal.Zero
	for _, method := range sortedKeys(session.TotalsByMethod) {
		amount, err := decimal.NewFromString(session.TotalsByMethod[method])
		if err != nil {
			return "", fmt.Errorf("pdf: bad frozen total for %s: %w", method, err)
		}
		grand = grand.Add(amount)
		pdf.CellFormat(col1, 5, method, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("%d", session.PaymentsCount[method]), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, money.String2(amount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(col1+col2, 7, "TOTAL", "T", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 7, money.String2(grand), "T", 1, "R", false, 0, "")
	pdf.Ln(4)

	// ── Cash movements ────────────────────────────────────────────────────────
	if len(session.Movements) > 0 {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(col1, 6, "Movement", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, "Time", "B", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 6, "Amount", "B", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, m := range session.Movements {
			sign := "+"
			if m.Type == model.MovementSangria {
				sign = "-"
			}
			pdf.CellFormat(col1, 5, string(m.Type)+" — "+truncate(m.Reason, 28), "", 0, "L", false, 0, "")
			pdf.CellFormat(col2, 5, m.CreatedAt.Format("15:04"), "", 0, "C", false, 0, "")
			pdf.CellFormat(col3, 5, sign+money.String2(m.Amount), "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	// ── Final drawer count ────────────────────────────────────────────────────
	for i := len(session.Counts) - 1; i >= 0; i-- {
		if session.Counts[i].Kind != model.CountFinal {
			continue
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(col1+col2, 6, "Final drawer count:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 6, money.String2(session.Counts[i].Total), "", 1, "R", false, 0, "")
		break
	}

	if session.Notes != nil && *session.Notes != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, "Notes: "+*session.Notes, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
