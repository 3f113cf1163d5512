package notesclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/folio/internal/docs"
)

// DefaultPollInterval is how often PollDocStatus refreshes.
const DefaultPollInterval = 5 * time.Second

// PollDocStatus fetches the documentation status immediately and then every interval, passing each
// successful result to fn, until ctx is cancelled. Failed polls are logged and skipped.
func (c *Client) PollDocStatus(ctx context.Context, interval time.Duration, fn func(docs.Status)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		st, err := c.DocsStatus(ctx)
		switch {
		case err == nil:
			fn(*st)
		case ctx.Err() != nil:
			return nil
		default:
			c.logger.Warn("docs status poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
