package handler

import (
	"io"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradesim/src/model"
	"tradesim/src/normalizer"
)

type tickSink interface {
	Dispatch(tick model.Tick) error
}

type ticksResponse struct {
	Accepted int `json:"accepted"`
}

// TicksHandler accepts one tick or an array of ticks, for replay and for
// feeds that push over HTTP.
func TicksHandler(sink tickSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, invalidBody())
			return
		}

		ticks := normalizer.ParseTicks(body, time.Now().UTC())
		if len(ticks) == 0 {
			writeError(w, validationError("no usable tick in payload"))
			return
		}

		accepted := 0
		for _, tick := range ticks {
			if err := sink.Dispatch(tick); err != nil {
				logger.WithError(err).WithField("instrument", tick.TokenOrSymbol).Warn("tick not dispatched")
				continue
			}
			accepted++
		}
		writeJSON(w, http.StatusAccepted, ticksResponse{Accepted: accepted})
	}
}
