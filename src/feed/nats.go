package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"tradesim/src/model"
	"tradesim/src/normalizer"
)

// NATSSource feeds ticks published on a NATS subject. The last subject token
// names the instrument when the payload itself does not.
type NATSSource struct {
	nc      *nats.Conn
	subject string
	sink    TickSink
	logger  *logrus.Entry
	now     func() time.Time
	sub     *nats.Subscription
}

func NewNATSSource(nc *nats.Conn, subject string, sink TickSink, logger *logrus.Entry) *NATSSource {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if subject == "" {
		subject = "ticks.*"
	}
	return &NATSSource{
		nc:      nc,
		subject: subject,
		sink:    sink,
		logger:  logger.WithField("subject", subject),
		now:     time.Now,
	}
}

// Connect opens a NATS connection with the client's reconnect defaults.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("tradesim-feed"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}
	return nc, nil
}

func (s *NATSSource) Start() error {
	sub, err := s.nc.Subscribe(s.subject, s.handle)
	if err != nil {
		return fmt.Errorf("nats subscribe %s failed: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("subscribed to tick subject")
	return nil
}

func (s *NATSSource) Stop() error {
	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	return err
}

// Run subscribes and holds the subscription until ctx is done.
func (s *NATSSource) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *NATSSource) handle(msg *nats.Msg) {
	for _, tick := range s.ticks(msg) {
		if err := s.sink.Dispatch(tick); err != nil {
			s.logger.WithError(err).Debug("tick not dispatched")
		}
	}
}

func (s *NATSSource) ticks(msg *nats.Msg) []model.Tick {
	now := s.now().UTC()
	if ticks := normalizer.ParseTicks(msg.Data, now); len(ticks) > 0 {
		return ticks
	}

	fields, err := normalizer.DecodeFields(msg.Data)
	if err != nil {
		s.logger.WithError(err).Debug("invalid tick message")
		return nil
	}
	idx := strings.LastIndex(msg.Subject, ".")
	if idx < 0 || idx == len(msg.Subject)-1 {
		return nil
	}
	fields["tradingsymbol"] = msg.Subject[idx+1:]
	if tick, ok := normalizer.TickFromFields(fields, now); ok {
		return []model.Tick{tick}
	}
	return nil
}
