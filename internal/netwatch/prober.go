package netwatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/fieldsync/internal/clock"
)

// DefaultProbeInterval is how often the backend health URL is polled.
const DefaultProbeInterval = 15 * time.Second

// Prober reports connectivity by polling a health URL. Only a 2xx response
// counts as online; transport errors, timeouts and other statuses are
// offline.
type Prober struct {
	url      string
	client   *http.Client
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) { p.client = c }
}

// WithProbeClock sets the clock that drives the probe ticker.
func WithProbeClock(c clock.Clock) ProberOption {
	return func(p *Prober) { p.clock = c }
}

// WithProbeLogger sets the logger. Defaults to slog.Default().
func WithProbeLogger(l *slog.Logger) ProberOption {
	return func(p *Prober) { p.logger = l }
}

// NewProber creates a Prober for healthURL. A non-positive interval uses
// DefaultProbeInterval.
func NewProber(healthURL string, interval time.Duration, opts ...ProberOption) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	p := &Prober{
		url:      healthURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: interval,
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check performs one probe.
func (p *Prober) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Debug("health probe: bad request", "url", p.url, "error", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("health probe failed", "url", p.url, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) <-chan bool {
	out := make(chan bool)
	go func() {
		defer close(out)

		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()

		var last *bool
		for {
			online := p.Check(ctx)
			if ctx.Err() != nil {
				return
			}
			if last == nil || *last != online {
				select {
				case out <- online:
				case <-ctx.Done():
					return
				}
				last = &online
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
