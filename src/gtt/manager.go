package gtt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
	"tradesim/src/normalizer"
	"tradesim/src/trigger"
)

var ErrNotFound = errors.New("gtt order not found")

type TransitionResult string

const (
	TransitionApplied         TransitionResult = "applied"
	TransitionAlreadyTerminal TransitionResult = "already_terminal"
)

// FireFunc sends a fired decision to the execution authority.
type FireFunc func(d trigger.Decision) model.Outcome

// Session is a (user, challenge) pair with pending limit orders on an instrument.
type Session struct {
	UserID      string
	ChallengeID string
}

// Subscriber follows the instruments that have resting orders. Acquire is
// called when an instrument gets its first ACTIVE order and Release when its
// last one leaves ACTIVE.
type Subscriber interface {
	Acquire(ctx context.Context, instrument string) error
	Release(instrument string) error
}

type notice struct {
	instrument string
	acquire    bool
}

// Manager owns the transient resting-order view, sharded by instrument.
// It is rebuilt from the authority at any time and is never the source of truth.
type Manager struct {
	mu      sync.RWMutex
	orders  map[string]*model.GttOrder
	shards  map[string][]string // instrument key -> ids in creation order
	aliases map[string]string   // symbol -> token
	symbols map[string]string   // token -> symbol
	locks   map[string]*sync.Mutex
	claims  map[string]bool // ids with a fire or expiry in flight
	now     func() time.Time

	subscriber Subscriber
	watched    map[string]bool
	notices    []notice
	noticeMu   sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		orders:  make(map[string]*model.GttOrder),
		shards:  make(map[string][]string),
		aliases: make(map[string]string),
		symbols: make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
		claims:  make(map[string]bool),
		watched: make(map[string]bool),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for timestamps and expiry validation.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithSubscriber registers the market-data subscriber and acquires every
// instrument that already has ACTIVE orders.
func (m *Manager) WithSubscriber(s Subscriber) *Manager {
	m.mu.Lock()
	m.subscriber = s
	keys := make([]string, 0, len(m.shards))
	for key := range m.shards {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	m.watchLocked(keys...)
	m.mu.Unlock()

	m.flush()
	return m
}

// -----------------------------
// CREATE / PARK / CANCEL
// -----------------------------

// Validate checks a GTT request without storing it.
func (m *Manager) Validate(g model.GttOrder) error {
	if g.UserID == "" || g.ChallengeID == "" {
		return fmt.Errorf("%w: userId and challengeId are required", normalizer.ErrValidation)
	}
	if g.InstrumentKey() == "" {
		return fmt.Errorf("%w: symbol or instrumentToken is required", normalizer.ErrValidation)
	}
	if g.Side != model.SideBuy && g.Side != model.SideSell {
		return fmt.Errorf("%w: side must be BUY or SELL", normalizer.ErrValidation)
	}
	if g.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", normalizer.ErrValidation)
	}

	switch g.TriggerType {
	case model.TriggerSingle:
		if !validPrice(g.TriggerPrice) {
			return fmt.Errorf("%w: single GTT requires triggerPrice", normalizer.ErrValidation)
		}
	case model.TriggerOCO:
		if !validPrice(g.TargetTriggerPrice) || !validPrice(g.StoplossTriggerPrice) {
			return fmt.Errorf("%w: OCO GTT requires targetTriggerPrice and stoplossTriggerPrice", normalizer.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown triggerType %q", normalizer.ErrValidation, g.TriggerType)
	}

	if g.Expiry.IsZero() {
		return fmt.Errorf("%w: expiry is required", normalizer.ErrValidation)
	}
	if model.DateOf(g.Expiry).Before(model.DateOf(m.now())) {
		return fmt.Errorf("%w: expiry %s is in the past", normalizer.ErrValidation, g.Expiry.Format("2006-01-02"))
	}
	return nil
}

// Create validates and stores a user GTT as ACTIVE.
func (m *Manager) Create(g model.GttOrder) (model.GttOrder, error) {
	if err := m.Validate(g); err != nil {
		return model.GttOrder{}, err
	}

	g = g.Clone()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.Kind = model.RestingGtt
	g.Status = model.GttStatusActive
	g.FiredLeg = ""
	g.CancelReason = ""
	g.Legs = activeLegs(g.TriggerType)
	now := m.now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	if err := m.insert(&g); err != nil {
		return model.GttOrder{}, err
	}

	logger.WithFields(map[string]interface{}{
		"order_id":    g.ID,
		"user_id":     g.UserID,
		"instrument":  g.InstrumentKey(),
		"triggerType": g.TriggerType,
	}).Info("gtt order created")
	return g.Clone(), nil
}

// Park stores a canonical order as a resting record. STOP_LIMIT orders are
// parked as kind stop, orders whose immediate execution did not complete as
// kind limit. Parking the same order id twice returns the stored record.
func (m *Manager) Park(o model.Order, kind model.RestingKind) (model.GttOrder, error) {
	if o.ID == "" {
		return model.GttOrder{}, fmt.Errorf("%w: order id is required", normalizer.ErrValidation)
	}
	if kind != model.RestingStop && kind != model.RestingLimit {
		return model.GttOrder{}, fmt.Errorf("%w: cannot park as %q", normalizer.ErrValidation, kind)
	}
	if kind == model.RestingStop && !o.TriggerPrice.Valid {
		return model.GttOrder{}, fmt.Errorf("%w: stop order requires triggerPrice", normalizer.ErrValidation)
	}

	if existing, err := m.Get(o.ID); err == nil {
		return existing, nil
	}

	now := m.now().UTC()
	g := model.GttOrder{
		ID:              o.ID,
		UserID:          o.UserID,
		ChallengeID:     o.ChallengeID,
		Symbol:          o.Symbol,
		InstrumentToken: o.InstrumentToken,
		Side:            o.Side,
		OrderType:       o.Type,
		Quantity:        o.Quantity,
		Kind:            kind,
		Price:           o.Price,
		TriggerType:     model.TriggerSingle,
		TriggerPrice:    o.TriggerPrice,
		Status:          model.GttStatusActive,
		Legs:            activeLegs(model.TriggerSingle),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       now,
	}
	if len(o.Meta) > 0 {
		g.Meta = make(map[string]string, len(o.Meta))
		for k, v := range o.Meta {
			g.Meta[k] = v
		}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}

	if err := m.insert(&g); err != nil {
		return model.GttOrder{}, err
	}
	logger.WithFields(map[string]interface{}{
		"order_id":   g.ID,
		"kind":       kind,
		"instrument": g.InstrumentKey(),
	}).Info("order parked as pending")
	return g.Clone(), nil
}

// Cancel moves an ACTIVE order to CANCELLED. Cancelling a terminal order is
// not an error: it reports AlreadyTerminal with the stored state.
func (m *Manager) Cancel(id, reason string) (model.GttOrder, TransitionResult, error) {
	m.mu.RLock()
	o, ok := m.orders[id]
	var key string
	if ok {
		key = m.resolveLocked(o.InstrumentKey())
	}
	m.mu.RUnlock()
	if !ok {
		return model.GttOrder{}, "", ErrNotFound
	}

	lock := m.shardLock(key)
	lock.Lock()
	defer lock.Unlock()

	if reason == "" {
		reason = "user"
	}
	return m.transition(id, func(g *model.GttOrder) {
		g.Status = model.GttStatusCancelled
		g.CancelReason = reason
		setLegs(g, model.GttStatusCancelled)
	})
}

// -----------------------------
// TICK PROCESSING
// -----------------------------

// Process evaluates one tick against the instrument's resting orders and
// applies the decisions under the instrument's lock. Each order is claimed
// before its fire call, so a tick routed through another key after an alias
// fold cannot fire it a second time.
func (m *Manager) Process(tick model.Tick, fire FireFunc) []model.TriggerEvent {
	key := m.resolve(tick.TokenOrSymbol)
	if key == "" {
		return nil
	}

	lock := m.shardLock(key)
	lock.Lock()
	defer lock.Unlock()

	decisions := trigger.Evaluate(tick, m.snapshot(key))
	if len(decisions) == 0 {
		return nil
	}

	events := make([]model.TriggerEvent, 0, len(decisions))
	for _, d := range decisions {
		switch d.Action {
		case trigger.ActionExpire:
			events = append(events, m.applyExpire(d))
		case trigger.ActionFire:
			events = append(events, m.applyFire(d, fire))
		}
	}
	return events
}

func (m *Manager) applyExpire(d trigger.Decision) model.TriggerEvent {
	if !m.claim(d.Order.ID) {
		return newEvent(d.Order, model.TriggerActionExpire, "", model.TriggerOutcomeNoop, "claimed elsewhere", d.Tick, decimal.Decimal{})
	}
	defer m.unclaim(d.Order.ID)

	o, res, err := m.transition(d.Order.ID, func(g *model.GttOrder) {
		g.Status = model.GttStatusExpired
		setLegs(g, model.GttStatusExpired)
	})
	outcome := model.TriggerOutcomeApplied
	if err != nil || res == TransitionAlreadyTerminal {
		outcome = model.TriggerOutcomeNoop
		o = d.Order
	}
	logger.WithFields(map[string]interface{}{
		"order_id": o.ID,
		"expiry":   o.Expiry.Format("2006-01-02"),
		"outcome":  outcome,
	}).Info("gtt order expired")
	return newEvent(o, model.TriggerActionExpire, "", outcome, "", d.Tick, decimal.Decimal{})
}

func (m *Manager) applyFire(d trigger.Decision, fire FireFunc) model.TriggerEvent {
	fields := logger.WithFields(map[string]interface{}{
		"order_id":   d.Order.ID,
		"instrument": d.Order.InstrumentKey(),
		"leg":        d.Leg,
		"ltp":        d.Tick.LTP.String(),
		"trigger":    d.TriggerPrice.String(),
	})

	if !m.claim(d.Order.ID) {
		fields.Debug("order already firing or terminal")
		return newEvent(d.Order, model.TriggerActionFire, d.Leg, model.TriggerOutcomeNoop, "claimed elsewhere", d.Tick, d.TriggerPrice)
	}
	defer m.unclaim(d.Order.ID)

	out := fire(d)
	switch out.Kind {
	case model.OutcomeSuccess:
		o, res, err := m.transition(d.Order.ID, func(g *model.GttOrder) {
			g.Status = model.GttStatusTriggered
			g.FiredLeg = d.Leg
			if g.Legs == nil {
				g.Legs = make(map[model.Leg]model.GttStatus, 2)
			}
			g.Legs[d.Leg] = model.GttStatusTriggered
			if d.CancelledLeg != "" {
				g.Legs[d.CancelledLeg] = model.GttStatusCancelled
			}
		})
		if err != nil || res == TransitionAlreadyTerminal {
			fields.Warn("order fired but was no longer active")
			return newEvent(d.Order, model.TriggerActionFire, d.Leg, model.TriggerOutcomeNoop, "already terminal", d.Tick, d.TriggerPrice)
		}
		fields.WithField("trade_id", out.TradeID).Info("resting order triggered")
		reason := ""
		if out.TradeID != "" {
			reason = "trade:" + out.TradeID
		}
		return newEvent(o, model.TriggerActionFire, d.Leg, model.TriggerOutcomeApplied, reason, d.Tick, d.TriggerPrice)

	case model.OutcomeRejected, model.OutcomeValidation:
		reason := out.Reason
		if reason == "" && out.Err != nil {
			reason = out.Err.Error()
		}
		o, _, err := m.transition(d.Order.ID, func(g *model.GttOrder) {
			g.Status = model.GttStatusCancelled
			g.CancelReason = "rejected:" + reason
			setLegs(g, model.GttStatusCancelled)
		})
		if err != nil {
			o = d.Order
		}
		fields.WithField("reason", reason).Warn("fired order rejected by authority")
		return newEvent(o, model.TriggerActionFire, d.Leg, model.TriggerOutcomeRejected, reason, d.Tick, d.TriggerPrice)

	default:
		fields.WithError(out.Err).Warn("fire failed, order stays active")
		reason := ""
		if out.Err != nil {
			reason = out.Err.Error()
		}
		return newEvent(d.Order, model.TriggerActionFire, d.Leg, model.TriggerOutcomeTransient, reason, d.Tick, d.TriggerPrice)
	}
}

// MarkExecuted records authority-confirmed fills of pending orders.
func (m *Manager) MarkExecuted(ids []string, tick model.Tick) []model.TriggerEvent {
	var events []model.TriggerEvent
	for _, id := range ids {
		o, res, err := m.transition(id, func(g *model.GttOrder) {
			g.Status = model.GttStatusTriggered
			g.FiredLeg = model.LegSingle
			setLegs(g, model.GttStatusTriggered)
		})
		if err != nil {
			logger.WithField("order_id", id).Debug("executed order not in resting view")
			continue
		}
		outcome := model.TriggerOutcomeApplied
		if res == TransitionAlreadyTerminal {
			outcome = model.TriggerOutcomeNoop
		}
		events = append(events, newEvent(o, model.TriggerActionExecuted, model.LegSingle, outcome, "", tick, decimal.Decimal{}))
	}
	return events
}

// -----------------------------
// SYNC WITH THE AUTHORITY
// -----------------------------

// Sync merges the authority's GTT list for a user into the view. Records from
// the list replace local ACTIVE copies; a local terminal record never goes back
// to ACTIVE. Local records missing from the list are kept.
func (m *Manager) Sync(userID string, orders []model.GttOrder) int {
	changed := 0
	for _, remote := range orders {
		if remote.ID == "" || (remote.UserID != "" && remote.UserID != userID) {
			continue
		}
		remote = remote.Clone()
		remote.UserID = userID
		if remote.Kind == "" {
			remote.Kind = model.RestingGtt
		}
		if remote.Status == "" {
			remote.Status = model.GttStatusActive
		}
		if remote.Legs == nil {
			remote.Legs = activeLegs(remote.TriggerType)
			if remote.Status.Terminal() {
				setLegs(&remote, remote.Status)
				if remote.FiredLeg != "" {
					remote.Legs[remote.FiredLeg] = model.GttStatusTriggered
				}
			}
		}

		if m.mergeRemote(remote) {
			changed++
		}
	}
	return changed
}

func (m *Manager) mergeRemote(remote model.GttOrder) bool {
	m.mu.Lock()
	local, ok := m.orders[remote.ID]
	if ok {
		if local.Status.Terminal() {
			m.mu.Unlock()
			return false
		}
		key := m.resolveLocked(local.InstrumentKey())
		if remote.Symbol == "" {
			remote.Symbol = local.Symbol
		}
		if remote.InstrumentToken == "" {
			remote.InstrumentToken = local.InstrumentToken
		}
		remote.Kind = local.Kind
		remote.CreatedAt = local.CreatedAt
		remote.UpdatedAt = m.now().UTC()
		*local = remote
		if remote.Symbol != "" && remote.InstrumentToken != "" {
			m.learnAliasLocked(remote.Symbol, remote.InstrumentToken)
		}
		m.watchLocked(m.resolveLocked(key))
		m.mu.Unlock()
		m.flush()
		return true
	}
	m.mu.Unlock()

	if remote.CreatedAt.IsZero() {
		remote.CreatedAt = m.now().UTC()
	}
	remote.UpdatedAt = m.now().UTC()
	return m.insert(&remote) == nil
}

// -----------------------------
// QUERIES
// -----------------------------
func (m *Manager) Get(id string) (model.GttOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return model.GttOrder{}, ErrNotFound
	}
	return o.Clone(), nil
}

// List returns every record of a user, oldest first.
func (m *Manager) List(userID string) []model.GttOrder {
	m.mu.RLock()
	out := make([]model.GttOrder, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Sessions lists the (user, challenge) pairs with ACTIVE limit orders on an
// instrument, in first-seen order.
func (m *Manager) Sessions(instrument string) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[Session]bool)
	var out []Session
	for _, id := range m.shards[m.resolveLocked(instrument)] {
		o := m.orders[id]
		if o == nil || o.Kind != model.RestingLimit || o.Status != model.GttStatusActive {
			continue
		}
		s := Session{UserID: o.UserID, ChallengeID: o.ChallengeID}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Instruments returns the keys of instruments with at least one ACTIVE order.
func (m *Manager) Instruments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for key, ids := range m.shards {
		for _, id := range ids {
			if o := m.orders[id]; o != nil && o.Status == model.GttStatusActive {
				out = append(out, key)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Users returns the users with at least one ACTIVE user GTT.
func (m *Manager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, o := range m.orders {
		if o.Kind == model.RestingGtt && o.Status == model.GttStatusActive && !seen[o.UserID] {
			seen[o.UserID] = true
			out = append(out, o.UserID)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve maps a tick identity onto the instrument key orders are sharded by.
func (m *Manager) Resolve(id string) string {
	return m.resolve(id)
}

// HasActive reports whether the instrument a tick names has ACTIVE orders.
func (m *Manager) HasActive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasActiveLocked(m.resolveLocked(id))
}

// LearnAlias records that symbol and token name the same instrument. Orders
// keyed by the symbol move to the token's shard.
func (m *Manager) LearnAlias(symbol, token string) {
	if symbol == "" || token == "" || symbol == token {
		return
	}
	m.mu.RLock()
	known := m.aliases[symbol] == token
	m.mu.RUnlock()
	if known {
		return
	}

	m.mu.Lock()
	m.learnAliasLocked(symbol, token)
	m.mu.Unlock()
	m.flush()
}

// -----------------------------
// INTERNALS
// -----------------------------
func (m *Manager) insert(g *model.GttOrder) error {
	m.mu.Lock()
	if _, exists := m.orders[g.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: order id %s already exists", normalizer.ErrValidation, g.ID)
	}
	if g.Symbol != "" && g.InstrumentToken != "" {
		m.learnAliasLocked(g.Symbol, g.InstrumentToken)
	}
	key := m.resolveLocked(g.InstrumentKey())
	m.orders[g.ID] = g
	m.shards[key] = append(m.shards[key], g.ID)
	m.watchLocked(key)
	m.mu.Unlock()

	m.flush()
	return nil
}

// learnAliasLocked folds a symbol-keyed shard into its token shard.
func (m *Manager) learnAliasLocked(symbol, token string) {
	if m.aliases[symbol] == token || symbol == token {
		return
	}
	m.aliases[symbol] = token
	m.symbols[token] = symbol
	if ids, ok := m.shards[symbol]; ok {
		m.shards[token] = append(m.shards[token], ids...)
		delete(m.shards, symbol)
	}
	// token first so a fold never drops the feed to zero subscriptions
	m.watchLocked(token, symbol)
}

// claim marks an ACTIVE order as being fired or expired. It fails when the
// order is terminal or another caller holds the claim.
func (m *Manager) claim(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status.Terminal() || m.claims[id] {
		return false
	}
	m.claims[id] = true
	return true
}

func (m *Manager) unclaim(id string) {
	m.mu.Lock()
	delete(m.claims, id)
	m.mu.Unlock()
}

func (m *Manager) hasActiveLocked(key string) bool {
	for _, id := range m.shards[key] {
		if o := m.orders[id]; o != nil && o.Status == model.GttStatusActive {
			return true
		}
	}
	return false
}

// watchLocked queues subscriber notices for keys whose ACTIVE state changed.
func (m *Manager) watchLocked(keys ...string) {
	if m.subscriber == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		active := m.hasActiveLocked(key)
		if active == m.watched[key] {
			continue
		}
		if active {
			m.watched[key] = true
		} else {
			delete(m.watched, key)
		}
		m.notices = append(m.notices, notice{instrument: key, acquire: active})
	}
}

// flush delivers queued notices in queue order. It must be called without m.mu.
func (m *Manager) flush() {
	m.noticeMu.Lock()
	defer m.noticeMu.Unlock()

	for {
		m.mu.Lock()
		pending, sub := m.notices, m.subscriber
		m.notices = nil
		m.mu.Unlock()
		if len(pending) == 0 || sub == nil {
			return
		}

		for _, n := range pending {
			var err error
			if n.acquire {
				err = sub.Acquire(context.Background(), n.instrument)
			} else {
				err = sub.Release(n.instrument)
			}
			if err != nil {
				logger.WithFields(map[string]interface{}{
					"instrument": n.instrument,
					"acquire":    n.acquire,
				}).WithError(err).Warn("instrument subscription update failed")
			}
		}
	}
}

func (m *Manager) resolve(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveLocked(id)
}

func (m *Manager) resolveLocked(id string) string {
	if token, ok := m.aliases[id]; ok {
		return token
	}
	return id
}

func (m *Manager) shardLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// snapshot copies the shard's unclaimed orders, filling in the identity the
// tick may use.
func (m *Manager) snapshot(key string) []model.GttOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.shards[key]
	out := make([]model.GttOrder, 0, len(ids))
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || m.claims[id] {
			continue
		}
		c := o.Clone()
		if c.InstrumentToken == "" && m.symbols[key] != "" {
			c.InstrumentToken = key
		}
		if c.Symbol == "" {
			c.Symbol = m.symbols[key]
		}
		out = append(out, c)
	}
	return out
}

// transition applies fn to an ACTIVE order. Terminal orders are left alone.
func (m *Manager) transition(id string, fn func(*model.GttOrder)) (model.GttOrder, TransitionResult, error) {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return model.GttOrder{}, "", ErrNotFound
	}
	if o.Status.Terminal() {
		c := o.Clone()
		m.mu.Unlock()
		return c, TransitionAlreadyTerminal, nil
	}
	fn(o)
	o.UpdatedAt = m.now().UTC()
	m.watchLocked(m.resolveLocked(o.InstrumentKey()))
	c := o.Clone()
	m.mu.Unlock()

	m.flush()
	return c, TransitionApplied, nil
}

func activeLegs(tt model.TriggerType) map[model.Leg]model.GttStatus {
	if tt == model.TriggerOCO {
		return map[model.Leg]model.GttStatus{
			model.LegTarget:   model.GttStatusActive,
			model.LegStoploss: model.GttStatusActive,
		}
	}
	return map[model.Leg]model.GttStatus{model.LegSingle: model.GttStatusActive}
}

func setLegs(g *model.GttOrder, status model.GttStatus) {
	if g.Legs == nil {
		g.Legs = activeLegs(g.TriggerType)
	}
	for leg, s := range g.Legs {
		if s == model.GttStatusActive {
			g.Legs[leg] = status
		}
	}
}

func validPrice(p decimal.NullDecimal) bool {
	return p.Valid && p.Decimal.IsPositive()
}

func newEvent(o model.GttOrder, action string, leg model.Leg, outcome, reason string, tick model.Tick, triggerPrice decimal.Decimal) model.TriggerEvent {
	ev := model.TriggerEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		ChallengeID: o.ChallengeID,
		Instrument:  o.InstrumentKey(),
		Kind:        string(o.Kind),
		Action:      action,
		Leg:         string(leg),
		Outcome:     outcome,
		Reason:      reason,
		TickTime:    tick.Time,
	}
	if !tick.LTP.IsZero() {
		ev.LTP = tick.LTP.String()
	}
	if !triggerPrice.IsZero() {
		ev.TriggerPrice = triggerPrice.String()
	}
	return ev
}
