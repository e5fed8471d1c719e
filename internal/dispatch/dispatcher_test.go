package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casemail-go/internal/config"
	"casemail-go/internal/metrics"
	"casemail-go/internal/model"
	"casemail-go/internal/transport"
)

// memStore is an in-memory Store used to exercise the send path without a
// database. It mirrors the unique-key and immutability semantics of the real
// repository.
type memStore struct {
	mu        sync.Mutex
	records   map[string]*model.IdempotencyRecord
	attempts  []*model.SendAttempt
	dedupLogs []*model.DeduplicationLog
	nextID    uint
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.IdempotencyRecord)}
}

func (s *memStore) InsertRecordIfAbsent(rec *model.IdempotencyRecord) (*model.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, false, s.failWith
	}
	if existing, ok := s.records[rec.IdempotencyKey]; ok {
		return existing, false, nil
	}
	s.nextID++
	rec.ID = s.nextID
	s.records[rec.IdempotencyKey] = rec
	return rec, true, nil
}

func (s *memStore) GetRecord(key string) (*model.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.records[key], nil
}

func (s *memStore) MarkRecordSent(key string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if rec, ok := s.records[key]; ok && rec.Status != model.StatusSent {
		rec.Status = model.StatusSent
		rec.SentAt = &sentAt
	}
	return nil
}

func (s *memStore) MarkRecordFailed(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if rec, ok := s.records[key]; ok && rec.Status != model.StatusSent {
		rec.Status = model.StatusFailed
	}
	return nil
}

func (s *memStore) FindRecentSent(recipient string, emailType model.EmailType, contentHash string, since time.Time) (*model.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, rec := range s.records {
		if rec.Status != model.StatusSent || rec.SentAt == nil {
			continue
		}
		if rec.Recipient == recipient && rec.EmailType == emailType && rec.ContentHash == contentHash && !rec.SentAt.Before(since) {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *memStore) CountAttempts(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	count := 0
	for _, att := range s.attempts {
		if att.IdempotencyKey == key {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CreateAttempt(att *model.SendAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.nextID++
	att.ID = s.nextID
	s.attempts = append(s.attempts, att)
	return nil
}

func (s *memStore) CompleteAttempt(attemptID uint, status model.SendStatus, errorMessage string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, att := range s.attempts {
		if att.ID == attemptID && att.CompletedAt == nil {
			att.Status = status
			att.ErrorMessage = errorMessage
			att.CompletedAt = &completedAt
		}
	}
	return nil
}

func (s *memStore) CreateDedupLog(entry *model.DeduplicationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.nextID++
	entry.ID = s.nextID
	s.dedupLogs = append(s.dedupLogs, entry)
	return nil
}

// fakeTransport counts deliveries and fails on demand.
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	err     error
	lastMsg transport.Message
}

func (t *fakeTransport) Send(ctx context.Context, msg transport.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.lastMsg = msg
	return t.err
}

func (t *fakeTransport) Close() error { return nil }

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func newTestDispatcher(store Store, tp transport.EmailTransport) *Dispatcher {
	cfg := &config.DispatchConfig{
		DefaultFrom:         "noreply@violations.example.gov",
		MaxRetryAttempts:    3,
		DedupWindowMinutes:  5,
		IdempotencyTTLHours: 24,
	}
	return NewDispatcher(store, tp, cfg, metrics.New(prometheus.NewRegistry()))
}

func systemRequest(key string) *EmailRequest {
	return &EmailRequest{
		To:             "a@b.com",
		Subject:        "X",
		Text:           "body",
		EmailType:      model.EmailTypeSystem,
		IdempotencyKey: key,
	}
}

func TestSendIdempotency(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	first := d.Send(context.Background(), systemRequest("k1"))
	require.True(t, first.Success)
	assert.False(t, first.IsDuplicate)
	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, "k1", first.IdempotencyKey)

	second := d.Send(context.Background(), systemRequest("k1"))
	require.True(t, second.Success)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, 0, second.AttemptNumber)
	assert.Equal(t, MsgAlreadySent, second.Message)

	assert.Equal(t, 1, tp.callCount())
	assert.Len(t, store.attempts, 1)
}

func TestSendFillsDefaultFrom(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	result := d.Send(context.Background(), systemRequest("k-from"))
	require.True(t, result.Success)
	assert.Equal(t, "noreply@violations.example.gov", tp.lastMsg.From)
	assert.Equal(t, "a@b.com", tp.lastMsg.To)
}

func TestContentDuplicateWindow(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	first := d.Send(context.Background(), systemRequest("key-a"))
	require.True(t, first.Success)

	// Different key, identical recipient, type and content.
	second := d.Send(context.Background(), systemRequest("key-b"))
	require.True(t, second.Success)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, MsgContentDuplicate, second.Message)
	assert.Equal(t, 0, second.AttemptNumber)

	assert.Equal(t, 1, tp.callCount())

	// The suppression is audited with both keys.
	require.Len(t, store.dedupLogs, 1)
	assert.Equal(t, "key-a", store.dedupLogs[0].OriginalKey)
	assert.Equal(t, "key-b", store.dedupLogs[0].DuplicateKey)

	// A suppressed content duplicate never consumes an attempt of its key.
	count, err := store.CountAttempts("key-b")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestContentDuplicateWindowExpiry(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	first := d.Send(context.Background(), systemRequest("key-a"))
	require.True(t, first.Success)

	// Age the original send past the 5-minute window.
	past := time.Now().Add(-10 * time.Minute)
	store.records["key-a"].SentAt = &past

	second := d.Send(context.Background(), systemRequest("key-b"))
	require.True(t, second.Success)
	assert.False(t, second.IsDuplicate)
	assert.Equal(t, 1, second.AttemptNumber)
	assert.Equal(t, 2, tp.callCount())
}

func TestRetryBound(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{err: errors.New("connection refused")}
	d := newTestDispatcher(store, tp)

	for i := 1; i <= 3; i++ {
		result := d.Send(context.Background(), systemRequest("k-retry"))
		require.False(t, result.Success)
		assert.False(t, result.IsDuplicate)
		assert.Equal(t, i, result.AttemptNumber)
		assert.Equal(t, "connection refused", result.Message)
	}

	fourth := d.Send(context.Background(), systemRequest("k-retry"))
	assert.False(t, fourth.Success)
	assert.Equal(t, MsgRetryExhausted, fourth.Message)
	assert.Equal(t, 0, fourth.AttemptNumber)

	assert.Equal(t, 3, tp.callCount())
	assert.Len(t, store.attempts, 3)
	for _, att := range store.attempts {
		assert.Equal(t, model.StatusFailed, att.Status)
		assert.Equal(t, "connection refused", att.ErrorMessage)
		assert.NotNil(t, att.CompletedAt)
	}
}

func TestRetrySucceedsAfterFailure(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{err: errors.New("temporary failure")}
	d := newTestDispatcher(store, tp)

	first := d.Send(context.Background(), systemRequest("k-flaky"))
	require.False(t, first.Success)

	tp.err = nil
	second := d.Send(context.Background(), systemRequest("k-flaky"))
	require.True(t, second.Success)
	assert.False(t, second.IsDuplicate)
	assert.Equal(t, 2, second.AttemptNumber)

	rec := store.records["k-flaky"]
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusSent, rec.Status)
	require.NotNil(t, rec.SentAt)

	third := d.Send(context.Background(), systemRequest("k-flaky"))
	assert.True(t, third.IsDuplicate)
	assert.Equal(t, MsgAlreadySent, third.Message)
	assert.Equal(t, 2, tp.callCount())
}

func TestInFlightDuplicate(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	// Another instance holds the pending record for this key.
	_, created, err := store.InsertRecordIfAbsent(&model.IdempotencyRecord{
		IdempotencyKey: "k-pending",
		EmailType:      model.EmailTypeSystem,
		Recipient:      "a@b.com",
		ContentHash:    "deadbeef",
		Status:         model.StatusPending,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	require.True(t, created)

	result := d.Send(context.Background(), systemRequest("k-pending"))
	assert.False(t, result.Success)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, MsgInFlight, result.Message)
	assert.Equal(t, 0, tp.callCount())
}

func TestStoreFailureDoesNotPropagate(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("connection pool exhausted")
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	result := d.Send(context.Background(), systemRequest("k-down"))
	assert.False(t, result.Success)
	assert.False(t, result.IsDuplicate)
	assert.Contains(t, result.Message, "Store unavailable")
	assert.Equal(t, 0, tp.callCount())
}

func TestDerivedKeyWhenNoneSupplied(t *testing.T) {
	store := newMemStore()
	tp := &fakeTransport{}
	d := newTestDispatcher(store, tp)

	req := &EmailRequest{
		To:        "Resident@Example.com",
		Subject:   "Violation notice",
		HTML:      "<p>Notice</p>",
		EmailType: model.EmailTypeNotification,
		Metadata:  model.Metadata{"case_id": "42"},
	}

	first := d.Send(context.Background(), req)
	require.True(t, first.Success)
	assert.Len(t, first.IdempotencyKey, 32)

	// The same request repeated is suppressed: by key inside the same hour
	// bucket, by the content window across a bucket rollover.
	second := d.Send(context.Background(), req)
	require.True(t, second.Success)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, 1, tp.callCount())
}
