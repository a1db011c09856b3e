package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradesim/src/dispatcher"
	"tradesim/src/gtt"
	"tradesim/src/handler"
	"tradesim/src/model"
)

// TickSink receives ticks posted over HTTP.
type TickSink interface {
	Dispatch(tick model.Tick) error
}

// EventLister reads the trigger journal. Nil when the database is disabled.
type EventLister interface {
	ListByOrder(ctx context.Context, orderID string) ([]model.TriggerEvent, error)
}

// Deps are the services the routes are wired to.
type Deps struct {
	Dispatcher *dispatcher.Dispatcher
	Manager    *gtt.Manager
	Ticks      TickSink
	Events     EventLister
	TickSize   decimal.Decimal
}

// NewRouter builds the HTTP routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("healthcheck write failed")
		}
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/normalize", handler.NormalizeOrderHandler(deps.TickSize))
		r.Post("/", handler.SubmitOrderHandler(deps.Dispatcher, deps.TickSize))
	})

	r.Post("/ticks", handler.TicksHandler(deps.Ticks))

	r.Route("/gtt-orders", func(r chi.Router) {
		r.Post("/", handler.CreateGttHandler(deps.Dispatcher))
		// {id} is the user id on GET and the order id on DELETE
		r.Get("/{id}", handler.ListGttHandler(deps.Manager))
		r.Delete("/{id}", handler.CancelGttHandler(deps.Dispatcher))
		r.Get("/{id}/events", handler.GttEventsHandler(deps.Events))
	})

	r.Route("/trades/{tradeId}", func(r chi.Router) {
		r.Post("/close", handler.CloseTradeHandler(deps.Dispatcher))
		r.Post("/add", handler.AddToTradeHandler(deps.Dispatcher))
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *Config, h http.Handler) error {
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
