package presence

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/logger"
)

// DecodeFunc parses one feed value
type DecodeFunc[P any] func(string) (P, error)

type collectorConfig struct {
	now    func() time.Time
	strict bool
	logger *zap.SugaredLogger
}

// CollectorOption configures a Collector
type CollectorOption func(*collectorConfig)

// WithCollectorClock sets the evaluation clock
func WithCollectorClock(now func() time.Time) CollectorOption {
	return func(c *collectorConfig) {
		c.now = now
	}
}

// WithStrictDecode makes an undecodable entry panic instead of being skipped
func WithStrictDecode(strict bool) CollectorOption {
	return func(c *collectorConfig) {
		c.strict = strict
	}
}

// WithCollectorLogger sets the logger undecodable entries are reported to
func WithCollectorLogger(l *zap.SugaredLogger) CollectorOption {
	return func(c *collectorConfig) {
		c.logger = l
	}
}

// Collector reduces a presence feed to the latest fresh payload of every
// remote author
type Collector[P any] struct {
	decode    DecodeFunc[P]
	self      string
	freshness time.Duration
	palette   *Palette
	now       func() time.Time
	strict    bool
	logger    *zap.SugaredLogger
}

// NewCollector creates a collector evaluating feeds on behalf of self
func NewCollector[P any](decode DecodeFunc[P], self string, freshness time.Duration, palette *Palette, opts ...CollectorOption) *Collector[P] {
	cfg := collectorConfig{
		now:    time.Now,
		logger: logger.ComponentLogger("presence"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if palette == nil {
		palette = NewPalette()
	}
	return &Collector[P]{
		decode:    decode,
		self:      self,
		freshness: freshness,
		palette:   palette,
		now:       cfg.now,
		strict:    cfg.strict,
		logger:    cfg.logger,
	}
}

// NewCursorCollector collects cursors. A freshness <= 0 uses DefaultCursorFreshness.
func NewCursorCollector(self string, freshness time.Duration, palette *Palette, opts ...CollectorOption) *Collector[Cursor] {
	if freshness <= 0 {
		freshness = DefaultCursorFreshness
	}
	return NewCollector(DecodeCursor, self, freshness, palette, opts...)
}

// NewConnectionCollector collects connection previews. A freshness <= 0 uses DefaultConnectionFreshness.
func NewConnectionCollector(self string, freshness time.Duration, palette *Palette, opts ...CollectorOption) *Collector[Connection] {
	if freshness <= 0 {
		freshness = DefaultConnectionFreshness
	}
	return NewCollector(DecodeConnection, self, freshness, palette, opts...)
}

// Collect returns one Live per remote author whose latest entry is fresh.
// Output is ordered by author; callers should key on Author rather than index.
func (c *Collector[P]) Collect(feed doc.FeedSnapshot) []Live[P] {
	latest := feed.Latest()
	authors := make([]string, 0, len(latest))
	for author := range latest {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	now := c.now()
	out := make([]Live[P], 0, len(authors))
	for _, author := range authors {
		entry := latest[author]
		if author == c.self || entry.Value == "" {
			continue
		}
		if now.Sub(entry.MadeAt) > c.freshness {
			continue
		}

		payload, err := c.decode(entry.Value)
		if err != nil {
			if c.strict {
				panic(err)
			}
			c.logger.Warnw("Skipping undecodable presence entry",
				logger.FieldAuthor, author,
				logger.FieldError, err,
			)
			continue
		}

		out = append(out, Live[P]{
			Author:  author,
			Color:   c.palette.Color(author),
			Payload: payload,
		})
	}
	return out
}

// Self returns the author this collector excludes
func (c *Collector[P]) Self() string {
	return c.self
}
