package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tradesim/src/audit"
	"tradesim/src/connectors"
	"tradesim/src/database"
	"tradesim/src/dispatcher"
	"tradesim/src/engine"
	"tradesim/src/feed"
	"tradesim/src/gtt"
	"tradesim/src/normalizer"
	"tradesim/src/repository"
	"tradesim/src/server"
)

type Serve struct{}

// Start runs the service until SIGINT or SIGTERM.
func (s *Serve) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	return s.Run(ctx)
}

// Run wires the authority client, the resting-order view, the engine, the
// HTTP API and the configured tick feed, and blocks until ctx is done or one
// of them fails.
func (s *Serve) Run(ctx context.Context) error {
	config := GetConfig()
	log := logrus.WithField("app", config.AppName)

	if err := database.InitMainDB(); err != nil {
		log.WithError(err).Error("Failed to initialize database")
		return err
	}

	var (
		eventStore     audit.EventStore
		exceptionStore audit.ExceptionStore
		eventLister    server.EventLister
	)
	if database.MainDB != nil {
		events := repository.NewTriggerEventRepository()
		eventStore, eventLister = events, events
		exceptionStore = repository.NewExceptionRepository()
	}
	recorder := audit.NewRecorder(config.AppName, eventStore, exceptionStore, log.WithField("component", "audit"))

	client := connectors.NewAuthorityClient(connectors.GetConfig())
	manager := gtt.NewManager()
	tickSize := normalizer.GetConfig().TickSizeDecimal()
	disp := dispatcher.NewDispatcher(client, manager, tickSize)
	eng := engine.NewEngine(log.WithField("component", "engine"), manager, disp, client, recorder, engine.GetConfig())

	router := server.NewRouter(server.Deps{
		Dispatcher: disp,
		Manager:    manager,
		Ticks:      eng,
		Events:     eventLister,
		TickSize:   tickSize,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		err := server.Run(gctx, server.GetConfig(), router)
		recorder.Capture(gctx, "server", "Run", "error", err, nil)
		return err
	})

	feedConfig := feed.GetConfig()
	feedLog := log.WithFields(logrus.Fields{"component": "feed", "source": feedConfig.Source})
	switch feedConfig.Source {
	case feed.SourceWebsocket:
		push := feed.NewPushHandler(eng, feedLog)
		session := feed.NewSession(feedConfig, eng, push, feedLog)
		manager.WithSubscriber(session)
		g.Go(func() error {
			// feed failures never take the HTTP API down
			if err := session.Run(gctx, feedConfig.Instruments); err != nil {
				recorder.Capture(gctx, "feed", "Session.Run", "error", err, map[string]interface{}{"url": feedConfig.WSURL})
				feedLog.WithError(err).Error("feed session stopped")
			}
			return nil
		})
	case feed.SourceNATS:
		nc, err := feed.Connect(feedConfig.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		source := feed.NewNATSSource(nc, feedConfig.NATSSubject, eng, feedLog)
		g.Go(func() error { return source.Run(gctx) })
	case feed.SourceNone, "":
		feedLog.Info("no tick feed configured, ticks are accepted on POST /ticks only")
	default:
		return fmt.Errorf("unknown FEED_SOURCE %q", feedConfig.Source)
	}

	log.Info("tradesim started")
	err := g.Wait()
	log.Info("tradesim stopped")
	return err
}
