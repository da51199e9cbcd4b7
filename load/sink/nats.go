package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/wavegen/wavegen/load"
)

// DefaultNATSSubject is the subject probe records are published on.
const DefaultNATSSubject = "wavegen.probes"

// Publisher is the subset of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes every probe as one protobuf-encoded record.
type NATS struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
	now     func() time.Time
}

// NewNATS creates a NATS sink on top of an existing publisher.
func NewNATS(pub Publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATS{pub: pub, subject: subject, now: time.Now}
}

// DialNATS connects to the NATS server at url and returns a sink owning the
// connection.
func DialNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("wavegen"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	logrus.Infof("Connected to NATS server at %s", url)
	s := NewNATS(nc, subject)
	s.conn = nc
	return s, nil
}

func (s *NATS) Dispatch(ctx context.Context, batch load.Batch) (int, error) {
	ts := s.now()
	for i, p := range batch {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.pub.Publish(s.subject, AppendProbe(nil, p, ts)); err != nil {
			return i, fmt.Errorf("publishing to %s: %w", s.subject, err)
		}
	}
	return len(batch), nil
}

// Close drains and closes a connection opened by DialNATS.
func (s *NATS) Close() {
	if s.conn != nil {
		if err := s.conn.Drain(); err != nil {
			logrus.Warnf("Draining NATS connection: %v", err)
		}
		logrus.Info("NATS connection drained and closed.")
	}
}
