package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// speedHistoryLimit is how many past results History shows
const speedHistoryLimit = 5

// DiagnosticsWorkflow runs bandwidth tests. It completes within one message
// and keeps no session.
type DiagnosticsWorkflow struct {
	sessions  *SessionManager
	customers storage.CustomerDirectory
	results   storage.SpeedTestLog
	meter     Measurement
	outbound  Outbound
	timeout   time.Duration
	loc       *time.Location
}

// NewDiagnosticsWorkflow creates the diagnostics workflow
func NewDiagnosticsWorkflow(sessions *SessionManager, customers storage.CustomerDirectory, results storage.SpeedTestLog, meter Measurement, outbound Outbound, timeout time.Duration, loc *time.Location) *DiagnosticsWorkflow {
	if loc == nil {
		loc = time.UTC
	}
	return &DiagnosticsWorkflow{
		sessions:  sessions,
		customers: customers,
		results:   results,
		meter:     meter,
		outbound:  outbound,
		timeout:   timeout,
		loc:       loc,
	}
}

func (d *DiagnosticsWorkflow) Kind() models.WorkflowKind { return models.WorkflowDiagnostics }

func (d *DiagnosticsWorkflow) Start(ctx context.Context, userID, text string) (string, error) {
	if err := d.outbound.Send(ctx, userID, "⏳ Running speed test. This may take up to a minute..."); err != nil {
		log.Printf("⚠️ Failed to send speed test notice to %s: %v", userID, err)
	}

	mctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := d.meter.Measure(mctx)
	if err != nil {
		log.Printf("❌ Speed test failed for %s: %v", userID, err)
		return "❌ Speed test failed. Please check your connection and try again later.", nil
	}

	d.record(ctx, userID, result)

	return fmt.Sprintf("📊 Speed Test Results\n\n⬇️ Download: %.2f MB/s\n⬆️ Upload: %.2f MB/s\n📶 Ping: %.0f ms\n🖥 Server: %s",
		result.DownloadMbps/8, result.UploadMbps/8, result.PingMs, result.Server), nil
}

// record persists the result for registered customers only
func (d *DiagnosticsWorkflow) record(ctx context.Context, userID string, result *SpeedResult) {
	customer, err := d.customers.FindCustomerByPhone(ctx, models.PhoneFromUserID(userID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("⚠️ Customer lookup failed for %s: %v", userID, err)
		}
		return
	}
	err = d.results.SaveSpeedTest(ctx, &models.SpeedTest{
		CustomerID:   customer.CustomerID,
		DownloadMbps: result.DownloadMbps,
		UploadMbps:   result.UploadMbps,
		PingMs:       result.PingMs,
		Server:       result.Server,
	})
	if err != nil {
		log.Printf("❌ Failed to save speed test for %s: %v", customer.CustomerID, err)
	}
}

// Resume only sees a session if one was left behind by an older build; it
// is discarded.
func (d *DiagnosticsWorkflow) Resume(ctx context.Context, s *models.Session, text string) (string, error) {
	if err := d.sessions.Delete(ctx, s.UserID); err != nil {
		return "", err
	}
	return HelpMessage, nil
}

func (d *DiagnosticsWorkflow) Cancel(ctx context.Context, userID string) (string, error) {
	if err := d.sessions.Delete(ctx, userID); err != nil {
		return "", err
	}
	return "Nothing to cancel.", nil
}

// History lists the customer's most recent results, newest first
func (d *DiagnosticsWorkflow) History(ctx context.Context, userID string) (string, error) {
	customer, err := d.customers.FindCustomerByPhone(ctx, models.PhoneFromUserID(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return MsgRegisterFirst, nil
		}
		return "", transient("find customer", err)
	}

	tests, err := d.results.RecentSpeedTests(ctx, customer.CustomerID, speedHistoryLimit)
	if err != nil {
		return "", transient("load speed tests", err)
	}
	if len(tests) == 0 {
		return "No speed test history found. Type 'speedtest' to run one.", nil
	}

	var b strings.Builder
	b.WriteString("📜 Your recent speed tests:\n")
	for i, t := range tests {
		fmt.Fprintf(&b, "\n%d. %s\n   ⬇️ %.2f MB/s  ⬆️ %.2f MB/s  📶 %.0f ms",
			i+1, t.CreatedAt.In(d.loc).Format("02-01-2006 15:04"), t.DownloadMBps(), t.UploadMBps(), t.PingMs)
	}
	return b.String(), nil
}
