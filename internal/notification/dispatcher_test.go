package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"resellerportal/internal/database"
	"resellerportal/internal/metrics"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dispatchNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type scriptedSender struct {
	mu    sync.Mutex
	errs  []error
	calls []model.Notification
}

func (s *scriptedSender) Send(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, n)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

type outboxFixture struct {
	db         *gorm.DB
	repo       repository.NotificationRepository
	outbox     *Outbox
	sender     *scriptedSender
	dispatcher *Dispatcher
}

func newOutboxFixture(t *testing.T, sendErrs ...error) *outboxFixture {
	t.Helper()

	cfg := database.Config()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	repo := repository.NewNotificationRepository(db)
	outbox := NewOutbox(repo)
	outbox.now = func() time.Time { return dispatchNow }

	sender := &scriptedSender{errs: sendErrs}
	dispatcher := NewDispatcher(repo, sender, DispatcherConfig{
		BaseRetryDelay: time.Minute,
		MaxRetryDelay:  time.Hour,
		JitterFraction: 0.2,
	}, zap.NewNop(), metrics.NewNop())
	dispatcher.now = func() time.Time { return dispatchNow }
	dispatcher.jitter = func() float64 { return 0 }

	return &outboxFixture{db: db, repo: repo, outbox: outbox, sender: sender, dispatcher: dispatcher}
}

func (f *outboxFixture) enqueue(t *testing.T) {
	t.Helper()
	accountID := uuid.New()
	require.NoError(t, f.outbox.Enqueue(context.Background(), Message{
		Event:              model.EventAssignmentSold,
		RecipientEmail:     " Admin@Example.com ",
		RecipientAccountID: &accountID,
		Subject:            "A reseller reported a sale",
		Payload:            map[string]interface{}{"salePrice": "350", "profit": "50"},
	}))
}

func (f *outboxFixture) only(t *testing.T) model.Notification {
	t.Helper()
	var rows []model.Notification
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	return rows[0]
}

func (f *outboxFixture) at(now time.Time) {
	f.dispatcher.now = func() time.Time { return now }
}

func TestDispatcher_DeliversPendingRows(t *testing.T) {
	f := newOutboxFixture(t)
	f.enqueue(t)

	processed, err := f.dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	row := f.only(t)
	assert.Equal(t, model.NotificationSent, row.Status)
	assert.Equal(t, 1, row.AttemptCount)
	assert.NotNil(t, row.SentAt)
	assert.Nil(t, row.LockedAt)

	require.Len(t, f.sender.calls, 1)
	assert.Equal(t, "admin@example.com", f.sender.calls[0].RecipientEmail)
	assert.JSONEq(t, `{"salePrice":"350","profit":"50"}`, f.sender.calls[0].Payload)

	processed, err = f.dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed, "sent rows are never delivered twice")
}

func TestDispatcher_RetriesWithBackoff(t *testing.T) {
	f := newOutboxFixture(t, errors.New("smtp timeout"), errors.New("smtp timeout"))
	f.enqueue(t)
	ctx := context.Background()

	_, err := f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	row := f.only(t)
	assert.Equal(t, model.NotificationPending, row.Status)
	assert.Equal(t, 1, row.AttemptCount)
	assert.Equal(t, "smtp timeout", row.LastError)
	assert.True(t, row.NextAttemptAt.Equal(dispatchNow.Add(time.Minute)), row.NextAttemptAt.String())

	processed, err := f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed, "not due yet")

	f.at(dispatchNow.Add(time.Minute))
	_, err = f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	row = f.only(t)
	assert.Equal(t, 2, row.AttemptCount)
	assert.True(t, row.NextAttemptAt.Equal(dispatchNow.Add(3*time.Minute)), row.NextAttemptAt.String())

	f.at(dispatchNow.Add(3 * time.Minute))
	_, err = f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	row = f.only(t)
	assert.Equal(t, model.NotificationSent, row.Status)
	assert.Equal(t, 3, row.AttemptCount)
	assert.Empty(t, row.LastError)
}

func TestDispatcher_DeadLettersAfterMaxAttempts(t *testing.T) {
	fail := errors.New("mailbox unavailable")
	f := newOutboxFixture(t, fail, fail)
	f.outbox.maxAttempts = 2
	f.enqueue(t)
	ctx := context.Background()

	_, err := f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	f.at(dispatchNow.Add(time.Hour))
	_, err = f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)

	row := f.only(t)
	assert.Equal(t, model.NotificationDead, row.Status)
	assert.Equal(t, 2, row.AttemptCount)
	assert.Equal(t, "mailbox unavailable", row.LastError)

	f.at(dispatchNow.Add(24 * time.Hour))
	processed, err := f.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestDispatcher_PermanentErrorSkipsRetries(t *testing.T) {
	f := newOutboxFixture(t, Permanent(errors.New("no recipient")))
	f.enqueue(t)

	_, err := f.dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)

	row := f.only(t)
	assert.Equal(t, model.NotificationDead, row.Status)
	assert.Equal(t, 1, row.AttemptCount)
}

func TestDispatcher_RecoversStaleClaims(t *testing.T) {
	f := newOutboxFixture(t)
	f.enqueue(t)
	row := f.only(t)

	lockedAt := dispatchNow.Add(-10 * time.Minute)
	require.NoError(t, f.db.Model(&model.Notification{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":    model.NotificationSending,
		"locked_at": lockedAt,
	}).Error)

	processed, err := f.dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, model.NotificationSent, f.only(t).Status)
}

func TestDispatcher_RetryDelay(t *testing.T) {
	d := NewDispatcher(nil, nil, DispatcherConfig{
		BaseRetryDelay: time.Minute,
		MaxRetryDelay:  10 * time.Minute,
		JitterFraction: 0.5,
	}, zap.NewNop(), metrics.NewNop())
	d.jitter = func() float64 { return 0 }

	assert.Equal(t, time.Minute, d.retryDelay(1))
	assert.Equal(t, 2*time.Minute, d.retryDelay(2))
	assert.Equal(t, 8*time.Minute, d.retryDelay(4))
	assert.Equal(t, 10*time.Minute, d.retryDelay(9))

	d.jitter = func() float64 { return 1 }
	assert.Equal(t, 3*time.Minute, d.retryDelay(2))
	assert.Equal(t, 10*time.Minute, d.retryDelay(4))
}

type recordingPublisher struct {
	accounts    []uuid.UUID
	admins      int
	adminFrames []string
}

func (p *recordingPublisher) SendToAccount(accountID uuid.UUID, _ []byte) {
	p.accounts = append(p.accounts, accountID)
}

func (p *recordingPublisher) BroadcastToAdmins(frame []byte) {
	p.admins++
	p.adminFrames = append(p.adminFrames, string(frame))
}

func TestMultiSender_SecondaryFailuresAreIgnored(t *testing.T) {
	primary := &scriptedSender{}
	secondary := &scriptedSender{errs: []error{errors.New("hub down")}}
	multi := NewMultiSender(zap.NewNop(), primary, secondary)

	n := model.Notification{ID: uuid.New(), Event: model.EventAssignmentApproved, Payload: `{}`}
	assert.NoError(t, multi.Send(context.Background(), n))
	assert.Len(t, secondary.calls, 1)

	failing := NewMultiSender(zap.NewNop(), &scriptedSender{errs: []error{errors.New("smtp down")}}, secondary)
	assert.Error(t, failing.Send(context.Background(), n))
	assert.Len(t, secondary.calls, 1, "secondaries only run after the primary succeeded")
}

func TestHubSender_PublishesToRecipientAndAdmins(t *testing.T) {
	hub := &recordingPublisher{}
	accountID := uuid.New()

	err := NewHubSender(hub).Send(context.Background(), model.Notification{
		Event:              model.EventAssignmentShipped,
		RecipientAccountID: &accountID,
		Payload:            `{"deviceName":"Phone"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{accountID}, hub.accounts)
	assert.Equal(t, 1, hub.admins)
}

func TestHubSender_KeepsTokenLinksOffTheHub(t *testing.T) {
	hub := &recordingPublisher{}
	sender := NewHubSender(hub)
	accountID := uuid.New()

	for _, event := range []string{model.EventPasswordResetRequest, model.EventInviteIssued, model.EventInviteResent} {
		err := sender.Send(context.Background(), model.Notification{
			Event:              event,
			RecipientEmail:     "r1@example.com",
			RecipientAccountID: &accountID,
			Payload:            `{"username":"r1","link":"https://portal.example.com/reset-password?token=SECRET123"}`,
		})
		require.NoError(t, err, event)
	}

	assert.Empty(t, hub.accounts)
	assert.Zero(t, hub.admins)

	require.NoError(t, sender.Send(context.Background(), model.Notification{
		Event:   model.EventAssignmentSold,
		Payload: `{"deviceName":"Phone","salePrice":"350"}`,
	}))
	require.Len(t, hub.adminFrames, 1)
	for _, frame := range hub.adminFrames {
		assert.NotContains(t, frame, "token=")
	}
}
