package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradesim/src/connectors"
	"tradesim/src/gtt"
	"tradesim/src/model"
	"tradesim/src/trigger"
)

var ErrStopped = errors.New("engine stopped")

// Authority is what the engine needs from the execution authority.
type Authority interface {
	Evaluate(ctx context.Context, in connectors.EvaluateRequest) (*connectors.EvaluateResponse, error)
	ListGtt(ctx context.Context, userID string) ([]model.GttOrder, error)
}

type Firer interface {
	Fire(ctx context.Context, d trigger.Decision) model.Outcome
}

// EventRecorder journals trigger decisions. Implementations must not block for long.
type EventRecorder interface {
	Record(ctx context.Context, events []model.TriggerEvent)
}

// Engine routes ticks to one worker goroutine per instrument with ACTIVE
// orders. Each worker runs the resting-order evaluation and the authority's
// evaluate call for pending limit orders, so ticks of one instrument are
// handled in order. A worker stops once its instrument has nothing resting.
type Engine struct {
	logger    *logrus.Entry
	manager   *gtt.Manager
	firer     Firer
	authority Authority
	recorder  EventRecorder
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]chan model.Tick
	wg      sync.WaitGroup
}

func NewEngine(logger *logrus.Entry, manager *gtt.Manager, firer Firer, authority Authority, recorder EventRecorder, cfg Config) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.FireTimeout <= 0 {
		cfg.FireTimeout = 5 * time.Second
	}
	if cfg.IdleCheck <= 0 {
		cfg.IdleCheck = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		logger:    logger,
		manager:   manager,
		firer:     firer,
		authority: authority,
		recorder:  recorder,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		workers:   make(map[string]chan model.Tick),
	}
}

// Dispatch queues a tick for its instrument's worker, starting the worker on
// first use. Ticks for instruments without ACTIVE orders are dropped, as are
// ticks arriving on a full queue: the next one re-evaluates anyway.
func (e *Engine) Dispatch(tick model.Tick) error {
	if tick.Symbol != "" && tick.TokenOrSymbol != "" {
		e.manager.LearnAlias(tick.Symbol, tick.TokenOrSymbol)
	}
	key := e.manager.Resolve(tick.TokenOrSymbol)
	if key == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() != nil {
		return ErrStopped
	}
	if !e.manager.HasActive(key) {
		return nil
	}
	ch, ok := e.workers[key]
	if !ok {
		ch = make(chan model.Tick, e.cfg.QueueSize)
		e.workers[key] = ch
		e.wg.Add(1)
		go e.worker(key, ch)
	}

	// the send happens under mu so retire never strands a queued tick
	select {
	case ch <- tick:
	default:
		e.logger.WithField("instrument", key).Warn("tick queue full, dropping tick")
	}
	return nil
}

// Run blocks until ctx is cancelled, re-syncing GTT lists every SyncPeriod,
// then stops the workers and waits for them.
func (e *Engine) Run(ctx context.Context) error {
	var tickC <-chan time.Time
	if e.cfg.SyncPeriod > 0 {
		ticker := time.NewTicker(e.cfg.SyncPeriod)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			e.logger.Info("engine stopped")
			return nil
		case <-e.ctx.Done():
			e.wg.Wait()
			return nil
		case <-tickC:
			e.resyncAll(ctx)
		}
	}
}

// Stop cancels the workers and waits for in-flight ticks to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()
	e.wg.Wait()
}

// Workers reports the number of running instrument workers.
func (e *Engine) Workers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.workers)
}

func (e *Engine) worker(key string, ch chan model.Tick) {
	defer e.wg.Done()
	log := e.logger.WithField("instrument", key)
	log.Debug("instrument worker started")

	idle := time.NewTicker(e.cfg.IdleCheck)
	defer idle.Stop()

	for {
		select {
		case <-e.ctx.Done():
			log.Debug("instrument worker stopped")
			return
		case tick := <-ch:
			e.handle(tick)
			if e.retire(key, ch) {
				log.Debug("instrument worker idle, stopping")
				return
			}
		case <-idle.C:
			if e.retire(key, ch) {
				log.Debug("instrument worker idle, stopping")
				return
			}
		}
	}
}

// retire unregisters a worker with an empty queue whose instrument has no
// ACTIVE orders left, or whose key was folded into a token by an alias.
func (e *Engine) retire(key string, ch chan model.Tick) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(ch) > 0 {
		return false
	}
	if e.manager.Resolve(key) == key && e.manager.HasActive(key) {
		return false
	}
	if e.workers[key] == ch {
		delete(e.workers, key)
	}
	return true
}

func (e *Engine) handle(tick model.Tick) {
	fire := func(d trigger.Decision) model.Outcome {
		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.FireTimeout)
		defer cancel()
		return e.firer.Fire(ctx, d)
	}

	events := e.manager.Process(tick, fire)
	events = append(events, e.evaluatePending(tick)...)

	if len(events) > 0 && e.recorder != nil {
		e.recorder.Record(e.ctx, events)
	}
}

// evaluatePending asks the authority to match pending limit orders, once per
// (user, challenge) on the tick's instrument. Failures are logged and the
// next tick tries again.
func (e *Engine) evaluatePending(tick model.Tick) []model.TriggerEvent {
	var events []model.TriggerEvent
	for _, s := range e.manager.Sessions(tick.TokenOrSymbol) {
		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.FireTimeout)
		resp, err := e.authority.Evaluate(ctx, connectors.EvaluateRequest{
			UserID:        s.UserID,
			ChallengeID:   s.ChallengeID,
			TokenOrSymbol: tick.TokenOrSymbol,
			Bid:           tick.Bid,
			Ask:           tick.Ask,
			LTP:           tick.LTP,
		})
		cancel()
		if err != nil {
			e.logger.WithFields(map[string]interface{}{
				"user_id":    s.UserID,
				"instrument": tick.TokenOrSymbol,
			}).WithError(err).Warn("pending order evaluation failed")
			continue
		}
		if resp == nil || len(resp.Fired) == 0 {
			continue
		}

		ids := make([]string, 0, len(resp.Fired))
		for _, f := range resp.Fired {
			if f.OrderID != "" {
				ids = append(ids, f.OrderID)
			}
		}
		events = append(events, e.manager.MarkExecuted(ids, tick)...)
	}
	return events
}

// ResyncUser merges the authority's GTT list for a user into the view.
func (e *Engine) ResyncUser(ctx context.Context, userID string) error {
	orders, err := e.authority.ListGtt(ctx, userID)
	if err != nil {
		e.logger.WithField("user_id", userID).WithError(err).Warn("failed to fetch gtt orders")
		return err
	}
	changed := e.manager.Sync(userID, orders)
	e.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"orders":  len(orders),
		"changed": changed,
	}).Debug("gtt orders synced")
	return nil
}

func (e *Engine) resyncAll(ctx context.Context) {
	for _, userID := range e.manager.Users() {
		if ctx.Err() != nil {
			return
		}
		_ = e.ResyncUser(ctx, userID)
	}
}
