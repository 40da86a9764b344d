package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

// envelope is the message published on every subject.
type envelope struct {
	Subject    string      `json:"subject"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger core.Logger
}

var _ core.EventPublisher = (*NatsPublisher)(nil)

// NewNatsPublisher connects to url. Subjects are published under "<app name>." in lower case.
func NewNatsPublisher(url string, logger core.Logger, conf *core.Config) (*NatsPublisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(conf.AppName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(fmt.Sprintf("nats disconnected: %v", err), err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected to " + nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	return &NatsPublisher{conn: nc, prefix: subjectPrefix(conf), logger: logger}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Subject: subject, Payload: payload, OccurredAt: core.NowFunc()})
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	if err := p.conn.Publish(p.prefix+subject, data); err != nil {
		return errors.Wrapf(err, "publishing %s", subject)
	}
	p.logger.Debug("published event " + p.prefix + subject)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	err := p.conn.Drain()
	return errors.Wrap(err, "draining nats connection")
}

// Recorder keeps published events in memory. It serves when no broker is configured and in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

type Event struct {
	Subject string
	Payload interface{}
}

var _ core.EventPublisher = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, subject string, payload interface{}) error {
	r.mu.Lock()
	r.events = append(r.events, Event{Subject: subject, Payload: payload})
	if len(r.events) > 1000 {
		r.events = r.events[len(r.events)-1000:]
	}
	r.mu.Unlock()
	return nil
}

// Events returns the recorded events published on one of subjects, or every event without subjects.
func (r *Recorder) Events(subjects ...string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Event, 0, len(r.events))
	for _, ev := range r.events {
		if len(subjects) == 0 || core.StringsContain(subjects, ev.Subject) {
			res = append(res, ev)
		}
	}
	return res
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func subjectPrefix(conf *core.Config) string {
	return core.CleanString(conf.AppName, true /* lower */) + "."
}
