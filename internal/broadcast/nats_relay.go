package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
)

// Relay mirrors published envelopes onto NATS subjects, one subject per
// project under a fixed prefix, so off-process consumers can follow live
// streams without holding a websocket. Delivery is fire and forget: a
// publish failure is logged and the envelope is gone.
type Relay struct {
	ctx    context.Context
	conn   *nats.Conn
	prefix string
}

// NewRelay connects to the NATS server at url. ctx is retained for
// logging only; it should carry the application logger.
func NewRelay(ctx context.Context, url, subjectPrefix string) (*Relay, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if subjectPrefix == "" {
		subjectPrefix = "faultline.events"
	}

	conn, err := nats.Connect(url, nats.Name("faultline-broadcast-relay"))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats relay")
	}

	return &Relay{ctx: ctx, conn: conn, prefix: subjectPrefix}, nil
}

// Tap satisfies Options.Tap. It never blocks the publisher beyond the
// local nats.go buffer.
func (r *Relay) Tap(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Warn(r.ctx, "relay envelope marshal failed",
			slog.String("project", env.ProjectID),
			slog.Any("err", errs.Loggable(err)))
		return
	}

	subject := r.prefix + "." + env.ProjectID
	if err := r.conn.Publish(subject, data); err != nil {
		logging.Warn(r.ctx, "relay publish failed",
			slog.String("subject", subject),
			slog.Any("err", errs.Loggable(err)))
	}
}

// Close flushes buffered publishes and drops the connection.
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil {
		r.conn.Close()
		return errs.Wrap(err, "drain nats relay")
	}
	return nil
}
