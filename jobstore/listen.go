package jobstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
)

const jobStatusChannel = "job_status"

// Listener maintains a dedicated LISTEN connection against job_status,
// reconnecting with backoff whenever the connection drops. It is
// separate from PostgresJobStore's pool because LISTEN requires a
// session-pinned connection that pgxpool would otherwise recycle out
// from under it.
type Listener struct {
	dsn    string
	cancel context.CancelFunc
}

func newListener(dsn string) *Listener {
	return &Listener{dsn: dsn}
}

// Subscribe starts (or restarts) the background LISTEN loop and returns a
// channel of status transitions. The channel closes when ctx is cancelled.
func (l *Listener) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	out := make(chan StatusEvent, 64)
	go l.run(ctx, out)
	return out, nil
}

func (l *Listener) Close() {
	if l.cancel != nil {
		l.cancel()
	}
}

func (l *Listener) run(ctx context.Context, out chan<- StatusEvent) {
	defer close(out)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry indefinitely until ctx is cancelled

	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.listenOnce(ctx, out); err != nil {
			wait := bo.NextBackOff()
			logger.Warn("listener connection lost, reconnecting", "err", err, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}
		bo.Reset()
	}
}

func (l *Listener) listenOnce(ctx context.Context, out chan<- StatusEvent) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "LISTEN "+jobStatusChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		event, ok := parseStatusEvent(notification.Payload)
		if !ok {
			continue
		}
		select {
		case out <- event:
		case <-ctx.Done():
			return nil
		}
	}
}

// parseStatusEvent decodes the "<id>:<status>" payload produced by
// schema.sql's notify_job_status() trigger.
func parseStatusEvent(payload string) (StatusEvent, bool) {
	idStr, status, found := strings.Cut(payload, ":")
	if !found {
		return StatusEvent{}, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return StatusEvent{}, false
	}
	return StatusEvent{JobID: id, NewStatus: Status(status)}, true
}
