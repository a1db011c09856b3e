package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/connectors"
	"tradesim/src/gtt"
	"tradesim/src/model"
	"tradesim/src/normalizer"
	"tradesim/src/trigger"
)

// Authority is the part of the execution authority the dispatcher talks to.
type Authority interface {
	ExecuteNow(ctx context.Context, in connectors.ExecuteNowRequest) (*connectors.ExecuteNowResponse, error)
	Close(ctx context.Context, in connectors.CloseRequest) (*connectors.TradeResponse, error)
	Add(ctx context.Context, in connectors.AddRequest) (*connectors.TradeResponse, error)
	CreateGtt(ctx context.Context, g model.GttOrder) (*model.GttOrder, error)
	CancelGtt(ctx context.Context, orderID string) (*connectors.CancelGttResponse, error)
}

// RestingStore is the resting-order view the dispatcher parks orders in.
type RestingStore interface {
	Validate(g model.GttOrder) error
	Create(g model.GttOrder) (model.GttOrder, error)
	Park(o model.Order, kind model.RestingKind) (model.GttOrder, error)
	Cancel(id, reason string) (model.GttOrder, gtt.TransitionResult, error)
}

// SubmitResult says whether an order executed immediately or is pending.
type SubmitResult struct {
	Status  model.OrderStatus `json:"status"`
	Order   model.Order       `json:"order"`
	Resting *model.GttOrder   `json:"resting,omitempty"`
	Trade   *connectors.Trade `json:"trade,omitempty"`
	Outcome model.OutcomeKind `json:"outcome"`
}

type Dispatcher struct {
	authority Authority
	store     RestingStore
	tickSize  decimal.Decimal
	now       func() time.Time
}

func NewDispatcher(authority Authority, store RestingStore, tickSize decimal.Decimal) *Dispatcher {
	if !tickSize.IsPositive() {
		tickSize = normalizer.DefaultTickSize
	}
	return &Dispatcher{
		authority: authority,
		store:     store,
		tickSize:  tickSize,
		now:       time.Now,
	}
}

// OutcomeOf classifies an authority error.
func OutcomeOf(err error) model.Outcome {
	if err == nil {
		return model.Outcome{Kind: model.OutcomeSuccess}
	}
	if errors.Is(err, normalizer.ErrValidation) {
		return model.Outcome{Kind: model.OutcomeValidation, Err: err, Reason: err.Error()}
	}
	var rej *connectors.RejectedError
	if errors.As(err, &rej) {
		reason := rej.Reason
		if rej.Code != "" {
			reason = rej.Code
		}
		return model.Outcome{Kind: model.OutcomeRejected, Err: err, Reason: reason}
	}
	return model.Outcome{Kind: model.OutcomeTransient, Err: err}
}

// -----------------------------
// SUBMIT
// -----------------------------

// Submit decides between immediate execution and a pending resting order.
// MARKET and LIMIT orders are sent to the authority; if it does not fill them
// or cannot be reached they are parked as pending, never dropped. STOP_LIMIT
// orders always wait for their trigger. Authority rejections are returned.
func (d *Dispatcher) Submit(ctx context.Context, order model.Order) (SubmitResult, error) {
	if err := validateOrder(order); err != nil {
		return SubmitResult{}, err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = d.now().UTC()
	}
	if order.Status == "" {
		order.Status = model.OrderStatusPending
	}

	fields := logger.WithFields(map[string]interface{}{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"instrument": order.InstrumentKey(),
		"type":       order.Type,
		"side":       order.Side,
	})

	switch order.Type {
	case model.OrderTypeStopLimit:
		return d.park(order, model.RestingStop, model.OutcomeSuccess)

	case model.OrderTypeMarket, model.OrderTypeLimit:
		resp, err := d.authority.ExecuteNow(ctx, connectors.ExecuteNowRequest{
			UserID:      order.UserID,
			ChallengeID: order.ChallengeID,
			OrderID:     order.ID,
			Order:       &order,
		})
		out := OutcomeOf(err)
		switch {
		case out.Kind == model.OutcomeRejected:
			fields.WithError(err).Warn("order rejected by authority")
			return SubmitResult{}, err
		case out.Kind == model.OutcomeTransient:
			fields.WithError(err).Warn("immediate execution failed, order kept pending")
			return d.park(order, model.RestingLimit, model.OutcomeTransient)
		case resp == nil || !resp.Success:
			fields.Info("order not filled, kept pending")
			return d.park(order, model.RestingLimit, model.OutcomeSuccess)
		}

		order.Status = model.OrderStatusExecuted
		fields.Info("order executed")
		return SubmitResult{
			Status:  model.OrderStatusExecuted,
			Order:   order,
			Trade:   resp.Trade,
			Outcome: model.OutcomeSuccess,
		}, nil
	}

	return SubmitResult{}, fmt.Errorf("%w: unsupported order type %q", normalizer.ErrValidation, order.Type)
}

func (d *Dispatcher) park(order model.Order, kind model.RestingKind, outcome model.OutcomeKind) (SubmitResult, error) {
	resting, err := d.store.Park(order, kind)
	if err != nil {
		return SubmitResult{}, err
	}
	order.Status = model.OrderStatusPending
	return SubmitResult{
		Status:  model.OrderStatusPending,
		Order:   order,
		Resting: &resting,
		Outcome: outcome,
	}, nil
}

func validateOrder(o model.Order) error {
	if o.UserID == "" || o.ChallengeID == "" {
		return fmt.Errorf("%w: userId and challengeId are required", normalizer.ErrValidation)
	}
	if o.InstrumentKey() == "" {
		return fmt.Errorf("%w: symbol or instrumentToken is required", normalizer.ErrValidation)
	}
	if o.Side != model.SideBuy && o.Side != model.SideSell {
		return fmt.Errorf("%w: side must be BUY or SELL", normalizer.ErrValidation)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", normalizer.ErrValidation)
	}
	if o.Type == model.OrderTypeLimit && !o.Price.Valid {
		return fmt.Errorf("%w: LIMIT order requires price", normalizer.ErrValidation)
	}
	if o.Type == model.OrderTypeStopLimit && (!o.Price.Valid || !o.TriggerPrice.Valid) {
		return fmt.Errorf("%w: STOP_LIMIT order requires price and triggerPrice", normalizer.ErrValidation)
	}
	return nil
}

// -----------------------------
// FIRE
// -----------------------------

// Fire executes a resting order whose trigger was hit. An accepted but
// unfilled order is reported as transient so the next tick tries again.
func (d *Dispatcher) Fire(ctx context.Context, dec trigger.Decision) model.Outcome {
	g := dec.Order
	order := model.Order{
		ID:              g.ID,
		UserID:          g.UserID,
		ChallengeID:     g.ChallengeID,
		Symbol:          g.Symbol,
		InstrumentToken: g.InstrumentToken,
		Side:            g.Side,
		Type:            firedType(g),
		Price:           g.Price,
		Quantity:        g.Quantity,
		Status:          model.OrderStatusPending,
		CreatedAt:       g.CreatedAt,
	}
	if order.Type == model.OrderTypeMarket {
		order.Price = decimal.NullDecimal{}
	}

	resp, err := d.authority.ExecuteNow(ctx, connectors.ExecuteNowRequest{
		UserID:      g.UserID,
		ChallengeID: g.ChallengeID,
		OrderID:     g.ID,
		LTP:         decimal.NewNullDecimal(dec.Tick.LTP),
		Order:       &order,
	})
	out := OutcomeOf(err)
	if out.Kind != model.OutcomeSuccess {
		return out
	}
	if resp == nil || !resp.Success {
		return model.Outcome{Kind: model.OutcomeTransient, Err: errors.New("authority did not fill fired order")}
	}
	if resp.Trade != nil {
		out.TradeID = resp.Trade.ID
	}
	return out
}

// firedType is LIMIT when the resting order carries a limit price.
func firedType(g model.GttOrder) model.OrderType {
	if g.Price.Valid {
		return model.OrderTypeLimit
	}
	return model.OrderTypeMarket
}

// -----------------------------
// TRADES
// -----------------------------

// Close squares off a trade. The exit price is sent as given; the authority
// owns its rounding.
func (d *Dispatcher) Close(ctx context.Context, userID, challengeID, tradeID string, exitPrice decimal.NullDecimal) (*connectors.Trade, error) {
	if err := requireIDs(userID, challengeID, tradeID); err != nil {
		return nil, err
	}
	if !exitPrice.Valid {
		return nil, fmt.Errorf("%w: exitPrice must be a number", normalizer.ErrValidation)
	}

	resp, err := d.authority.Close(ctx, connectors.CloseRequest{
		UserID:      userID,
		ChallengeID: challengeID,
		TradeID:     tradeID,
		ExitPrice:   exitPrice.Decimal,
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"trade_id": tradeID,
			"user_id":  userID,
		}).WithError(err).Warn("close trade failed")
		return nil, err
	}
	return resp.Trade, nil
}

// AddToTrade increases a position at a new price. Cost-basis averaging is
// computed by the authority.
func (d *Dispatcher) AddToTrade(ctx context.Context, userID, challengeID, tradeID string, addQuantity, addPrice decimal.NullDecimal) (*connectors.Trade, error) {
	if err := requireIDs(userID, challengeID, tradeID); err != nil {
		return nil, err
	}
	if !addQuantity.Valid || !addQuantity.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: addQuantity must be a positive number", normalizer.ErrValidation)
	}
	if !addPrice.Valid || !addPrice.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: addPrice must be a positive number", normalizer.ErrValidation)
	}

	resp, err := d.authority.Add(ctx, connectors.AddRequest{
		UserID:      userID,
		ChallengeID: challengeID,
		TradeID:     tradeID,
		AddQuantity: addQuantity.Decimal,
		AddPrice:    addPrice.Decimal,
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"trade_id": tradeID,
			"user_id":  userID,
		}).WithError(err).Warn("add to trade failed")
		return nil, err
	}
	return resp.Trade, nil
}

func requireIDs(userID, challengeID, tradeID string) error {
	if userID == "" || challengeID == "" || tradeID == "" {
		return fmt.Errorf("%w: userId, challengeId and tradeId are required", normalizer.ErrValidation)
	}
	return nil
}

// -----------------------------
// GTT
// -----------------------------

// CreateGtt rounds the prices, validates, registers the GTT with the
// authority and adds it to the resting view. When the authority cannot be
// reached the GTT is still kept locally.
func (d *Dispatcher) CreateGtt(ctx context.Context, g model.GttOrder) (model.GttOrder, error) {
	g = g.Clone()
	g.Price = normalizer.RoundNullToTick(g.Price, d.tickSize)
	g.TriggerPrice = normalizer.RoundNullToTick(g.TriggerPrice, d.tickSize)
	g.TargetTriggerPrice = normalizer.RoundNullToTick(g.TargetTriggerPrice, d.tickSize)
	g.StoplossTriggerPrice = normalizer.RoundNullToTick(g.StoplossTriggerPrice, d.tickSize)
	if g.TriggerType == "" {
		g.TriggerType = model.TriggerSingle
	}
	g.Status = model.GttStatusActive

	if err := d.store.Validate(g); err != nil {
		return model.GttOrder{}, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	fields := logger.WithFields(map[string]interface{}{
		"order_id": g.ID,
		"user_id":  g.UserID,
	})
	remote, err := d.authority.CreateGtt(ctx, g)
	switch OutcomeOf(err).Kind {
	case model.OutcomeRejected:
		fields.WithError(err).Warn("gtt rejected by authority")
		return model.GttOrder{}, err
	case model.OutcomeTransient:
		fields.WithError(err).Warn("authority unavailable, gtt kept locally")
	default:
		if remote != nil && remote.ID != "" {
			g.ID = remote.ID
		}
	}

	return d.store.Create(g)
}

// CancelGtt cancels locally first. A failed authority call is logged and the
// local terminal state is kept; the next sync reconciles.
func (d *Dispatcher) CancelGtt(ctx context.Context, id string) (model.GttOrder, gtt.TransitionResult, error) {
	if id == "" {
		return model.GttOrder{}, "", fmt.Errorf("%w: orderId is required", normalizer.ErrValidation)
	}

	local, res, err := d.store.Cancel(id, "user")
	if err != nil && !errors.Is(err, gtt.ErrNotFound) {
		return model.GttOrder{}, "", err
	}
	if err == nil && res == gtt.TransitionAlreadyTerminal {
		return local, res, nil
	}

	resp, callErr := d.authority.CancelGtt(ctx, id)
	if errors.Is(err, gtt.ErrNotFound) {
		// not in the view; the authority decides
		if callErr != nil {
			return model.GttOrder{}, "", callErr
		}
		return model.GttOrder{ID: id, Status: resp.Status}, gtt.TransitionApplied, nil
	}
	if callErr != nil {
		logger.WithField("order_id", id).WithError(callErr).Warn("authority cancel failed, local state kept")
	}
	return local, res, nil
}
