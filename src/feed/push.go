package feed

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
)

// EventGttTriggered is pushed by the authority when a resting order fired.
const EventGttTriggered = "gtt-triggered"

var ErrNoUser = errors.New("push payload has no user id")

// Resyncer re-fetches a user's GTT list from the authority.
type Resyncer interface {
	ResyncUser(ctx context.Context, userID string) error
}

// PushHandler reacts to gtt-triggered notifications. The payload only tells
// which user to refresh; the authoritative list is always re-fetched.
type PushHandler struct {
	resync Resyncer
	logger *logrus.Entry
}

func NewPushHandler(resync Resyncer, logger *logrus.Entry) *PushHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PushHandler{resync: resync, logger: logger}
}

type pushPayload struct {
	UserID string `json:"userId"`
	Order  struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	} `json:"order"`
}

func (h *PushHandler) HandleGttTriggered(ctx context.Context, data json.RawMessage) error {
	var p pushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.logger.WithError(err).Warn("unparseable gtt-triggered payload")
		return err
	}
	userID := p.Order.UserID
	if userID == "" {
		userID = p.UserID
	}
	if userID == "" {
		h.logger.Warn("gtt-triggered payload without user id")
		return ErrNoUser
	}

	h.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"order_id": p.Order.ID,
	}).Info("gtt triggered, re-fetching orders")
	return h.resync.ResyncUser(ctx, userID)
}
