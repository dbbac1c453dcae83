// Package collector polls a panel's metrics and writes them to the
// time-series store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"solar-monitor/internal/decoder"
	"solar-monitor/internal/metrics"
	"solar-monitor/internal/model"
	"solar-monitor/internal/panel"
	"solar-monitor/internal/tsdb"
)

const (
	defaultInterval  = time.Minute
	defaultRetries   = 3
	defaultRetryWait = time.Second
)

// Options tunes one collector.
type Options struct {
	// Name identifies the panel in logs.
	Name     string
	Interval time.Duration
	// Retries is the number of read attempts for a metric after a
	// transport error; RetryWait is the fixed pause between them.
	Retries   int
	RetryWait time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.CollectorMetrics
	Now       func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.Retries <= 0 {
		o.Retries = defaultRetries
	}
	if o.RetryWait <= 0 {
		o.RetryWait = defaultRetryWait
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewCollectorMetrics("solar", nil)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Collector polls one panel.
type Collector struct {
	panel  *panel.Accessor
	store  tsdb.Store
	opts   Options
	log    *zap.Logger
	topics map[string]int64
}

func New(p *panel.Accessor, store tsdb.Store, opts Options) *Collector {
	opts.applyDefaults()
	return &Collector{
		panel:  p,
		store:  store,
		opts:   opts,
		log:    opts.Logger.With(zap.String("panel", opts.Name)),
		topics: make(map[string]int64),
	}
}

// EnsureTopics creates a topic for every metric that does not have one yet
// and caches the ids.
func (c *Collector) EnsureTopics(ctx context.Context) error {
	for _, m := range c.panel.Metrics() {
		id, err := c.store.EnsureTopic(ctx, m.TopicName)
		if err != nil {
			return fmt.Errorf("ensure topic %s: %w", m.TopicName, err)
		}
		c.topics[m.TopicName] = id
	}
	c.opts.Metrics.TopicsRegistered.Set(float64(len(c.topics)))
	c.log.Info("topics ready", zap.Int("count", len(c.topics)))
	return nil
}

// TopicID returns the cached id for topic.
func (c *Collector) TopicID(topic string) (int64, bool) {
	id, ok := c.topics[topic]
	return id, ok
}

// PollOnce reads every metric under one timestamp and writes the batch.
// Metrics that fail to read are logged and skipped; the returned error is
// non-nil when nothing could be read or the write failed.
func (c *Collector) PollOnce(ctx context.Context) (int, error) {
	start := time.Now()
	ts := c.opts.Now().UTC()

	var (
		records []model.Datum
		readErr []error
	)
	for _, m := range c.panel.Metrics() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		id, ok := c.topics[m.TopicName]
		if !ok {
			return 0, fmt.Errorf("topic %s not ensured", m.TopicName)
		}

		v, err := c.read(ctx, m)
		if err != nil {
			c.countReadError(err)
			c.log.Warn("read metric failed", zap.String("metric", m.Name), zap.Error(err))
			readErr = append(readErr, fmt.Errorf("%s: %w", m.Name, err))
			continue
		}
		records = append(records, model.Datum{Timestamp: ts, TopicID: id, ValueString: v.String()})
	}

	if len(records) == 0 && len(readErr) > 0 {
		c.opts.Metrics.PollsTotal.WithLabelValues("error").Inc()
		return 0, errors.Join(readErr...)
	}

	writeStart := time.Now()
	err := c.store.WriteData(ctx, records)
	c.opts.Metrics.WriteDuration.Observe(time.Since(writeStart).Seconds())
	if err != nil {
		c.opts.Metrics.PollsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("write poll: %w", err)
	}

	c.opts.Metrics.RecordsWritten.Add(float64(len(records)))
	c.opts.Metrics.PollDuration.Observe(time.Since(start).Seconds())
	c.opts.Metrics.LastPollTimestamp.Set(float64(ts.Unix()))
	if len(readErr) > 0 {
		c.opts.Metrics.PollsTotal.WithLabelValues("partial").Inc()
	} else {
		c.opts.Metrics.PollsTotal.WithLabelValues("success").Inc()
	}
	c.log.Debug("poll written", zap.Time("ts", ts), zap.Int("records", len(records)))
	return len(records), nil
}

// read retries transport failures with a fixed delay. Decode errors are
// returned at once.
func (c *Collector) read(ctx context.Context, m model.Metric) (decoder.Value, error) {
	var (
		v        decoder.Value
		attempts int
	)
	err := retry.Do(
		func() error {
			if attempts > 0 {
				c.opts.Metrics.ReadRetries.Inc()
			}
			attempts++
			var err error
			v, err = c.panel.Read(m)
			return err
		},
		retry.Attempts(uint(c.opts.Retries)),
		retry.Delay(c.opts.RetryWait),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(isTransportError),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	return v, err
}

func isTransportError(err error) bool {
	var te *panel.TransportError
	return errors.As(err, &te)
}

func (c *Collector) countReadError(err error) {
	kind := "other"
	var de *decoder.DecodeError
	switch {
	case isTransportError(err):
		kind = "transport"
	case errors.As(err, &de):
		kind = "decode"
	}
	c.opts.Metrics.ReadErrors.WithLabelValues(kind).Inc()
}

// Run ensures topics, polls immediately and then every Interval until ctx
// is cancelled. A failure to ensure topics is returned; poll failures are
// logged and do not stop the loop.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.EnsureTopics(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	if _, err := c.PollOnce(ctx); err != nil && ctx.Err() == nil {
		c.log.Error("initial poll failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.PollOnce(ctx); err != nil && ctx.Err() == nil {
				c.log.Error("poll failed", zap.Error(err))
			}
		}
	}
}
