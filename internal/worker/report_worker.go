package worker

import (
	"context"
	"encoding/json"

	"tillcore/internal/model"
	"tillcore/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportRenderer writes the Z-report for a closed session to disk and
// returns the file path. The fpdf implementation lives in infra.
type ReportRenderer interface {
	RenderSessionReport(session *model.CashSession) (string, error)
}

// ReportMailer delivers a rendered report with the PDF attached.
type ReportMailer interface {
	SendReport(to, subject, body, attachmentPath string) error
}

// ReportWorker renders the Z-report PDF for a freshly closed session and
// mails it to the tenant's back office. Failures never surface back to the
// close operation, the session row already carries the frozen totals.
type ReportWorker struct {
	cashRepo   repository.CashRepository
	renderer   ReportRenderer
	mailer     ReportMailer
	backOffice string
}

func NewReportWorker(cashRepo repository.CashRepository, renderer ReportRenderer, mailer ReportMailer, backOffice string) *ReportWorker {
	return &ReportWorker{cashRepo: cashRepo, renderer: renderer, mailer: mailer, backOffice: backOffice}
}

// Process handles one session.closed event.
func (w *ReportWorker) Process(ctx context.Context, raw json.RawMessage) {
	var ev SessionClosedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Error().Err(err).Msg("report_worker: invalid payload")
		return
	}

	tenantID, err := uuid.Parse(ev.TenantID)
	if err != nil {
		log.Error().Str("tenant_id", ev.TenantID).Msg("report_worker: invalid tenant id")
		return
	}
	sessionID, err := uuid.Parse(ev.SessionID)
	if err != nil {
		log.Error().Str("session_id", ev.SessionID).Msg("report_worker: invalid session id")
		return
	}

	session, err := w.cashRepo.FindSessionByID(ctx, tenantID, sessionID)
	if err != nil || session == nil {
		log.Error().Err(err).Str("session_id", ev.SessionID).Msg("report_worker: session load failed")
		return
	}

	path, err := w.renderer.RenderSessionReport(session)
	if err != nil {
		log.Error().Err(err).Str("session_id", ev.SessionID).Msg("report_worker: pdf generation failed")
		return
	}

	if w.mailer == nil || w.backOffice == "" {
		log.Info().Str("path", path).Msg("report_worker: z-report generated (no mail target)")
		return
	}
	subject := "Z-report — station " + session.StationID
	body := "End-of-shift report for session " + session.ID.String() + " is attached."
	if err := w.mailer.SendReport(w.backOffice, subject, body, path); err != nil {
		log.Error().Err(err).Str("to", w.backOffice).Msg("report_worker: send failed")
		return
	}
	log.Info().Str("to", w.backOffice).Str("session_id", ev.SessionID).Msg("report_worker: z-report sent")
}
