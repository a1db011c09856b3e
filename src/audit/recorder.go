package audit

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"tradesim/src/model"
)

// EventStore persists trigger events.
type EventStore interface {
	CreateBatch(ctx context.Context, events []model.TriggerEvent) error
}

// ExceptionStore persists captured failures.
type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Recorder journals engine decisions and captured failures. With nil stores
// it only logs.
type Recorder struct {
	service    string
	events     EventStore
	exceptions ExceptionStore
	logger     *logrus.Entry
	now        func() time.Time
}

func NewRecorder(service string, events EventStore, exceptions ExceptionStore, logger *logrus.Entry) *Recorder {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Recorder{
		service:    service,
		events:     events,
		exceptions: exceptions,
		logger:     logger,
		now:        time.Now,
	}
}

// Record logs every event and persists the batch. Transient fire failures
// are also captured as exceptions.
func (r *Recorder) Record(ctx context.Context, events []model.TriggerEvent) {
	if len(events) == 0 {
		return
	}

	now := r.now().UTC()
	for i := range events {
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = now
		}
		ev := events[i]
		entry := r.logger.WithFields(logrus.Fields{
			"order_id":   ev.OrderID,
			"user_id":    ev.UserID,
			"instrument": ev.Instrument,
			"action":     ev.Action,
			"leg":        ev.Leg,
			"outcome":    ev.Outcome,
			"ltp":        ev.LTP,
		})
		switch ev.Outcome {
		case model.TriggerOutcomeApplied:
			entry.Info(ev.Reason)
		case model.TriggerOutcomeTransient, model.TriggerOutcomeRejected:
			entry.Warn(ev.Reason)
		default:
			entry.Debug(ev.Reason)
		}
	}

	if r.events != nil {
		if err := r.events.CreateBatch(ctx, events); err != nil {
			r.logger.WithError(err).Error("failed to persist trigger events")
		}
	}

	for _, ev := range events {
		if ev.Outcome != model.TriggerOutcomeTransient {
			continue
		}
		r.Capture(ctx, "engine", "fire", "warn", transientError(ev.Reason), map[string]interface{}{
			"order_id":   ev.OrderID,
			"user_id":    ev.UserID,
			"instrument": ev.Instrument,
			"leg":        ev.Leg,
			"ltp":        ev.LTP,
		})
	}
}

// Capture records a failure, logs it locally, and persists it when an
// exception store is configured.
func (r *Recorder) Capture(
	ctx context.Context,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   r.service,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: r.now().UTC(),
	}
	if level == "error" {
		exc.Stack = string(debug.Stack())
	}

	r.logger.WithFields(logrus.Fields{
		"service": r.service,
		"module":  module,
		"method":  method,
		"level":   level,
	}).WithError(err).Warn("exception captured")

	if r.exceptions != nil {
		if e := r.exceptions.Create(ctx, exc); e != nil {
			r.logger.WithError(e).Error("failed to persist exception")
		}
	}
}

type transientError string

func (e transientError) Error() string {
	if e == "" {
		return "transient failure"
	}
	return string(e)
}
