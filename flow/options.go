package flow

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/coflow/metrics"
	"github.com/teranos/coflow/presence"
)

type options struct {
	throttleInterval    time.Duration
	cursorFreshness     time.Duration
	connectionFreshness time.Duration
	strictDecode        bool
	now                 func() time.Time
	afterFunc           presence.AfterFunc
	metrics             *metrics.Registry
	logger              *zap.SugaredLogger
}

// Option configures a Session
type Option func(*options)

// WithThrottleInterval sets the minimum time between presence publishes
func WithThrottleInterval(d time.Duration) Option {
	return func(o *options) {
		o.throttleInterval = d
	}
}

// WithFreshness sets how long cursor and connection entries stay live.
// Zero keeps the default for that kind.
func WithFreshness(cursor, connection time.Duration) Option {
	return func(o *options) {
		o.cursorFreshness = cursor
		o.connectionFreshness = connection
	}
}

// WithStrictDecode makes undecodable presence entries panic
func WithStrictDecode(strict bool) Option {
	return func(o *options) {
		o.strictDecode = strict
	}
}

// WithClock sets the clock used for throttling and freshness
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithAfterFunc sets how trailing presence publishes are scheduled
func WithAfterFunc(fn presence.AfterFunc) Option {
	return func(o *options) {
		o.afterFunc = fn
	}
}

// WithMetrics records session activity in r
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithLogger sets the session logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}
