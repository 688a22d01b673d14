package client

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Handler receives the records of one successful poll. Returning an error
// leaves the watermark where it was so the same window is fetched again.
type Handler func(ctx context.Context, recs []Record) error

type PollerOptions struct {
	// Overlap is subtracted from the watermark on every query so records that
	// became visible late on a lagging replica are still picked up.
	Overlap time.Duration
	// Interval between successful polls.
	Interval time.Duration
	// MaxBackoff caps the delay after consecutive failures.
	MaxBackoff time.Duration
	Logger     *zap.Logger
}

// Poller keeps a local watermark and fetches everything revoked since it.
// The watermark only moves forward, and only after a query and its handler
// both succeeded.
type Poller struct {
	c      *Client
	handle Handler
	opts   PollerOptions

	// pollMu serialises polls; mu guards only the watermark so readers never
	// wait on a query in flight.
	pollMu    sync.Mutex
	mu        sync.Mutex
	watermark int64
}

func NewPoller(c *Client, start int64, handle Handler, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{c: c, handle: handle, opts: opts, watermark: start}
}

func (p *Poller) Watermark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// PollOnce runs a single query and returns the number of records handed to
// the handler.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	since := p.Watermark() - int64(p.opts.Overlap/time.Second)
	res, err := p.c.Query(ctx, since)
	if err != nil {
		return 0, err
	}
	if err := p.handle(ctx, res.Revocations); err != nil {
		return 0, err
	}

	p.mu.Lock()
	for _, r := range res.Revocations {
		if r.RevokedAt > p.watermark {
			p.watermark = r.RevokedAt
		}
	}
	p.mu.Unlock()
	return len(res.Revocations), nil
}

// Run polls until ctx is done. Failures back off exponentially up to
// MaxBackoff; a success resets the delay.
func (p *Poller) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.Interval
	b.MaxInterval = p.opts.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		delay := p.opts.Interval
		n, err := p.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay = b.NextBackOff()
			p.opts.Logger.Warn("revocation poll failed",
				zap.Int64("watermark", p.Watermark()),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
		} else {
			b.Reset()
			p.opts.Logger.Debug("revocation poll",
				zap.Int("count", n),
				zap.Int64("watermark", p.Watermark()),
			)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
