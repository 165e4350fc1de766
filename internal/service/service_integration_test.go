// Integration tests for the admission flow and draw control registry,
// backed by a disposable PostgreSQL container. Skipped without Docker.
package service

import (
	"context"
	"math/rand"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
	"lottery-bot/internal/pkg/db"
	"lottery-bot/internal/repository"
)

type photoAlert struct {
	fileID  string
	caption string
}

type recordingNotifier struct {
	mu          sync.Mutex
	dms         map[int64][]string
	alerts      []string
	photoAlerts []photoAlert
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{dms: make(map[int64][]string)}
}

func (n *recordingNotifier) DirectMessage(userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dms[userID] = append(n.dms[userID], text)
	return nil
}

func (n *recordingNotifier) AlertAdmins(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
	return nil
}

func (n *recordingNotifier) AlertAdminsPhoto(fileID, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.photoAlerts = append(n.photoAlerts, photoAlert{fileID: fileID, caption: caption})
	return nil
}

func setupServiceTest(t *testing.T) (*db.Pool, func()) {
	if !dockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pgxPool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	pool := &db.Pool{Pool: pgxPool}

	statements := []string{
		`CREATE TABLE tickets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			ticket_number VARCHAR(5) NOT NULL,
			purchase_date VARCHAR(10) NOT NULL,
			ticket_type VARCHAR(20) NOT NULL,
			is_winner BOOLEAN NOT NULL DEFAULT FALSE,
			receipt_number TEXT
		)`,
		`CREATE TABLE pending_requests (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			ticket_type VARCHAR(20) NOT NULL,
			payment_method VARCHAR(50) NOT NULL,
			request_time VARCHAR(19) NOT NULL,
			receipt_number TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			quantity INT NOT NULL DEFAULT 1,
			admin_notes TEXT
		)`,
		`CREATE UNIQUE INDEX idx_pending_receipt
			ON pending_requests(receipt_number) WHERE receipt_number IS NOT NULL`,
		`CREATE TABLE audit_log (
			id BIGSERIAL PRIMARY KEY,
			admin_id BIGINT NOT NULL,
			action VARCHAR(50) NOT NULL,
			target_id BIGINT NOT NULL DEFAULT 0,
			details TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE winners (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			ticket_number VARCHAR(5) NOT NULL,
			purchase_date VARCHAR(10) NOT NULL,
			ticket_type VARCHAR(20) NOT NULL,
			win_date VARCHAR(19) NOT NULL,
			prize_amount BIGINT NOT NULL
		)`,
		`CREATE TABLE settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		_, err = pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

func dockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

func newTestAdmission(pool *db.Pool, notifier Notifier) *AdmissionService {
	return NewAdmissionService(
		pool,
		repository.NewTicketRepository(pool.Pool),
		repository.NewPendingRequestRepository(pool.Pool),
		repository.NewAuditLogRepository(pool.Pool),
		notifier,
		rand.New(rand.NewSource(42)),
	)
}

func TestAdmissionApproveFlow(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	notifier := newRecordingNotifier()
	admission := newTestAdmission(pool, notifier)
	tickets := repository.NewTicketRepository(pool.Pool)

	receipt := &Receipt{Reference: "999888777666"}
	requestID, err := admission.Submit(ctx, 1001, "alice", model.TierDaily, model.PaymentShamCash, 3, receipt)
	require.NoError(t, err)
	require.Positive(t, requestID)
	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notifier.alerts[0], "999888777666")

	issued, err := admission.Approve(ctx, requestID, 5555)
	require.NoError(t, err)
	require.Len(t, issued, 3)

	// Issued numbers land in the current daily window and stay distinct.
	window := clock.WindowFor(model.TierDaily, clock.Now())
	numbers, err := tickets.NumbersInWindow(ctx, model.TierDaily, window)
	require.NoError(t, err)
	assert.Len(t, numbers, 3)
	for _, tk := range issued {
		assert.Contains(t, numbers, tk.TicketNumber)
		assert.Equal(t, window.Start, tk.PurchaseDate)
	}

	// The buyer hears about their tickets.
	require.Len(t, notifier.dms[1001], 1)
	assert.Contains(t, notifier.dms[1001][0], issued[0].TicketNumber)

	// A second approve of the same request must not mint more tickets.
	_, err = admission.Approve(ctx, requestID, 5555)
	assert.ErrorIs(t, err, ErrRequestNotFound)
	numbers, err = tickets.NumbersInWindow(ctx, model.TierDaily, window)
	require.NoError(t, err)
	assert.Len(t, numbers, 3)

	// The approval is in the audit trail.
	var actions int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE action = $1 AND target_id = $2`,
		model.AuditApprove, int64(1001),
	).Scan(&actions)
	require.NoError(t, err)
	assert.Equal(t, 1, actions)
}

func TestAdmissionRejectFlow(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	notifier := newRecordingNotifier()
	admission := newTestAdmission(pool, notifier)

	requestID, err := admission.Submit(ctx, 2002, "bob", model.TierWeekly, model.PaymentSyriatelCash, 1, nil)
	require.NoError(t, err)

	require.NoError(t, admission.Reject(ctx, requestID, 5555))
	assert.Len(t, notifier.dms[2002], 1)
	assert.Contains(t, notifier.dms[2002][0], "rejected")

	// No tickets minted, request gone.
	err = admission.Reject(ctx, requestID, 5555)
	assert.ErrorIs(t, err, ErrRequestNotFound)
	tickets, err := repository.NewTicketRepository(pool.Pool).ListByUser(ctx, 2002)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestAdmissionSubmitValidation(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	admission := newTestAdmission(pool, newRecordingNotifier())

	_, err := admission.Submit(ctx, 1, "a", model.TierDaily, model.PaymentShamCash, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = admission.Submit(ctx, 1, "a", model.TierDaily, model.PaymentShamCash, model.MaxQuantity+1, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = admission.Submit(ctx, 1, "a", model.TierDaily, "paypal", 1, nil)
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestAdmissionPhotoReceipt(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	notifier := newRecordingNotifier()
	admission := newTestAdmission(pool, notifier)

	receipt := &Receipt{Reference: "AgACAgQAAxkBAAIB", Photo: true}
	requestID, err := admission.Submit(ctx, 3003, "carol", model.TierDaily, model.PaymentShamCash, 2, receipt)
	require.NoError(t, err)

	// The photo itself lands in the alerts channel, not a text alert.
	require.Len(t, notifier.photoAlerts, 1)
	assert.Equal(t, "AgACAgQAAxkBAAIB", notifier.photoAlerts[0].fileID)
	assert.Contains(t, notifier.photoAlerts[0].caption, "carol")
	assert.Empty(t, notifier.alerts)

	// The file id is stored as the receipt reference.
	stored, err := repository.NewPendingRequestRepository(pool.Pool).GetByID(ctx, requestID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReceiptNumber)
	assert.Equal(t, "AgACAgQAAxkBAAIB", *stored.ReceiptNumber)

	// Re-sending the same photo trips the duplicate check.
	_, err = admission.Submit(ctx, 4004, "dave", model.TierWeekly, model.PaymentSyriatelCash, 1, receipt)
	assert.ErrorIs(t, err, ErrDuplicateReceipt)
}

type noopEvictor struct{}

func (noopEvictor) EvictExpired() int { return 0 }

func TestSweepRecordsPurge(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	pending := repository.NewPendingRequestRepository(pool.Pool)
	audit := repository.NewAuditLogRepository(pool.Pool)
	winners := repository.NewWinnerRepository(pool.Pool)
	sweep := NewSweepService(pending, audit, winners, noopEvictor{})

	stale := &model.PendingRequest{
		UserID: 1, Username: "old", TicketType: "daily",
		PaymentMethod: model.PaymentShamCash,
		RequestTime:   "2024-01-01 09:00:00", Status: "pending", Quantity: 1,
	}
	_, err := pending.Create(ctx, stale)
	require.NoError(t, err)

	sweep.Run(ctx)

	remaining, err := pending.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	var purges int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE action = $1`, model.AuditPurge).Scan(&purges)
	require.NoError(t, err)
	assert.Equal(t, 1, purges)

	// A pass with nothing to prune records no purge entry.
	sweep.Run(ctx)
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE action = $1`, model.AuditPurge).Scan(&purges)
	require.NoError(t, err)
	assert.Equal(t, 1, purges)
}

func TestStatsGlobalIncludesPaidOut(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	settings := repository.NewSettingsRepository(pool.Pool)
	stats := NewStatsService(
		repository.NewTicketRepository(pool.Pool),
		repository.NewWinnerRepository(pool.Pool),
		settings,
	)

	// No counter yet: the screen shows zero rather than erroring.
	global, err := stats.Global(ctx)
	require.NoError(t, err)
	assert.Zero(t, global.PaidOut)

	require.NoError(t, settings.Set(ctx, model.SettingCumulativePrize, "12750"))
	global, err = stats.Global(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12750), global.PaidOut)

	// A malformed counter degrades to zero.
	require.NoError(t, settings.Set(ctx, model.SettingCumulativePrize, "garbage"))
	global, err = stats.Global(ctx)
	require.NoError(t, err)
	assert.Zero(t, global.PaidOut)
}

func TestDrawControlToggle(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	settings := repository.NewSettingsRepository(pool.Pool)
	control := NewDrawControlService(settings)

	// Fresh database: nothing disabled.
	_, disabled := control.DisabledReason(ctx, model.TierDaily)
	assert.False(t, disabled)

	gotDisabled, reason, err := control.Toggle(ctx, model.TierDaily)
	require.NoError(t, err)
	assert.True(t, gotDisabled)
	assert.NotEmpty(t, reason)

	gotReason, disabled := control.DisabledReason(ctx, model.TierDaily)
	assert.True(t, disabled)
	assert.Equal(t, reason, gotReason)

	// Other tiers unaffected.
	_, disabled = control.DisabledReason(ctx, model.TierWeekly)
	assert.False(t, disabled)

	// Toggle back on.
	gotDisabled, _, err = control.Toggle(ctx, model.TierDaily)
	require.NoError(t, err)
	assert.False(t, gotDisabled)
	_, disabled = control.DisabledReason(ctx, model.TierDaily)
	assert.False(t, disabled)
}

func TestDrawControlFailsOpenOnMalformedSetting(t *testing.T) {
	pool, cleanup := setupServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	settings := repository.NewSettingsRepository(pool.Pool)
	control := NewDrawControlService(settings)

	require.NoError(t, settings.Set(ctx, model.SettingDisabledDraws, "{not json"))

	// A corrupted registry must never block a draw.
	_, disabled := control.DisabledReason(ctx, model.TierMonthly)
	assert.False(t, disabled)

	// Toggling repairs the stored value.
	gotDisabled, _, err := control.Toggle(ctx, model.TierMonthly)
	require.NoError(t, err)
	assert.True(t, gotDisabled)
	_, disabled = control.DisabledReason(ctx, model.TierMonthly)
	assert.True(t, disabled)
}
