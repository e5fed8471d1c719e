package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"casemail-go/internal/config"
	"casemail-go/internal/metrics"
	"casemail-go/internal/model"
	"casemail-go/internal/transport"
)

// Result messages returned to callers
const (
	MsgSent             = "Email sent successfully"
	MsgAlreadySent      = "Email already sent"
	MsgInFlight         = "Send already in progress"
	MsgContentDuplicate = "Duplicate content suppressed"
	MsgRetryExhausted   = "Maximum retry attempts exceeded"
)

// EmailRequest is the inbound call contract: one fully-rendered email.
// IdempotencyKey is optional; when the caller's context already guarantees
// uniqueness (e.g. "violation-42-approved-7") an explicit key bypasses
// derivation.
type EmailRequest struct {
	To             string          `json:"to" binding:"required,email"`
	Subject        string          `json:"subject" binding:"required"`
	HTML           string          `json:"html"`
	Text           string          `json:"text"`
	From           string          `json:"from"`
	EmailType      model.EmailType `json:"email_type" binding:"required"`
	Metadata       model.Metadata  `json:"metadata"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// EmailResult reports the outcome of a send. Failures are reported here, not
// as errors, so a batch of sends continues past individual failures.
// AttemptNumber is 0 when no transport call was made.
type EmailResult struct {
	Success        bool   `json:"success"`
	IdempotencyKey string `json:"idempotency_key"`
	IsDuplicate    bool   `json:"is_duplicate"`
	Message        string `json:"message"`
	AttemptNumber  int    `json:"attempt_number"`
}

// Dispatcher orchestrates the guards, the attempt tracker and the transport.
type Dispatcher struct {
	guard       *IdempotencyGuard
	dedup       *ContentDuplicateGuard
	tracker     *AttemptTracker
	transport   transport.EmailTransport
	metrics     *metrics.Metrics
	defaultFrom string
}

// NewDispatcher wires the send path from a store, a transport and the
// dispatch configuration.
func NewDispatcher(store Store, tp transport.EmailTransport, cfg *config.DispatchConfig, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		guard:       NewIdempotencyGuard(store, cfg.IdempotencyTTL()),
		dedup:       NewContentDuplicateGuard(store, cfg.DedupWindow()),
		tracker:     NewAttemptTracker(store, cfg.MaxRetryAttempts),
		transport:   tp,
		metrics:     m,
		defaultFrom: cfg.DefaultFrom,
	}
}

// Send dispatches one email request. It never returns an error: duplicate
// suppression, retry exhaustion, transport failures and store failures are
// all folded into the result.
func (d *Dispatcher) Send(ctx context.Context, req *EmailRequest) *EmailResult {
	timer := prometheus.NewTimer(d.metrics.DispatchDuration)
	defer timer.ObserveDuration()

	key := req.IdempotencyKey
	if key == "" {
		key = DeriveIdempotencyKey(req, time.Now())
	}
	recipient := NormalizeRecipient(req.To)
	contentHash := contentHashOf(req)

	check, err := d.guard.CheckOrCreate(key, req.EmailType, recipient, contentHash, req.Metadata)
	if err != nil {
		return d.storeFailure(key, err)
	}

	if !check.Created {
		switch check.Record.Status {
		case model.StatusSent:
			d.metrics.DuplicatesPrevented.WithLabelValues(metrics.ReasonAlreadySent).Inc()
			logrus.Debugf("Suppressed duplicate send for key %s: already sent", key)
			return &EmailResult{Success: true, IdempotencyKey: key, IsDuplicate: true, Message: MsgAlreadySent}
		case model.StatusPending:
			d.metrics.DuplicatesPrevented.WithLabelValues(metrics.ReasonInFlight).Inc()
			logrus.Debugf("Suppressed duplicate send for key %s: send in progress", key)
			return &EmailResult{Success: false, IdempotencyKey: key, IsDuplicate: true, Message: MsgInFlight}
		}
		// failed: retry path
	}

	// Content check runs before any attempt row, so a suppressed duplicate
	// never consumes an attempt of the new key.
	original, err := d.dedup.FindRecentDuplicate(recipient, req.EmailType, contentHash, key, req.Metadata)
	if err != nil {
		return d.storeFailure(key, err)
	}
	if original != nil {
		d.metrics.DuplicatesPrevented.WithLabelValues(metrics.ReasonContent).Inc()
		logrus.Infof("Suppressed duplicate content for %s (original key %s)", recipient, original.IdempotencyKey)
		return &EmailResult{Success: true, IdempotencyKey: key, IsDuplicate: true, Message: MsgContentDuplicate}
	}

	attemptNumber, err := d.tracker.NextAttemptNumber(key)
	if err != nil {
		return d.storeFailure(key, err)
	}
	if d.tracker.Exhausted(attemptNumber) {
		d.metrics.RetryExhaustions.Inc()
		logrus.Warnf("Retry bound reached for key %s, transport not contacted", key)
		return &EmailResult{Success: false, IdempotencyKey: key, Message: MsgRetryExhausted}
	}
	if attemptNumber > 1 {
		d.metrics.RetryAttempts.Inc()
	}

	att, err := d.tracker.RecordAttempt(key, attemptNumber)
	if err != nil {
		return d.storeFailure(key, err)
	}

	from := req.From
	if from == "" {
		from = d.defaultFrom
	}
	msg := transport.Message{
		To:      req.To,
		From:    from,
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
	}

	if sendErr := d.transport.Send(ctx, msg); sendErr != nil {
		if err := d.tracker.CompleteAttempt(att, model.StatusFailed, sendErr.Error()); err != nil {
			logrus.Errorf("Failed to complete attempt %d for key %s: %v", attemptNumber, key, err)
		}
		if err := d.guard.MarkFailed(key); err != nil {
			logrus.Errorf("Failed to mark key %s failed: %v", key, err)
		}
		d.metrics.SendFailures.Inc()
		logrus.Warnf("Send attempt %d for key %s failed: %v", attemptNumber, key, sendErr)
		return &EmailResult{Success: false, IdempotencyKey: key, Message: sendErr.Error(), AttemptNumber: attemptNumber}
	}

	// The mail is out; bookkeeping failures past this point are logged but
	// the result stays successful.
	if err := d.tracker.CompleteAttempt(att, model.StatusSent, ""); err != nil {
		logrus.Errorf("Failed to complete attempt %d for key %s: %v", attemptNumber, key, err)
	}
	if err := d.guard.MarkSent(key); err != nil {
		logrus.Errorf("Failed to mark key %s sent: %v", key, err)
	}
	d.metrics.SendSuccesses.Inc()
	logrus.Infof("Sent %s email to %s (key %s, attempt %d)", req.EmailType, recipient, key, attemptNumber)
	return &EmailResult{Success: true, IdempotencyKey: key, Message: MsgSent, AttemptNumber: attemptNumber}
}

// storeFailure converts a repository error into a failed result so that a
// single bad record never aborts a batch of sends.
func (d *Dispatcher) storeFailure(key string, err error) *EmailResult {
	d.metrics.SendFailures.Inc()
	logrus.Errorf("Store unavailable during dispatch for key %s: %v", key, err)
	return &EmailResult{Success: false, IdempotencyKey: key, Message: "Store unavailable: " + err.Error()}
}
