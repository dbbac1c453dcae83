// Package gendata generates sinusoidal sample series for development
// databases.
//
// Each option block describes one topic over [Start, End):
//
//	value = offset + Acos*cos(wt) + Asin*sin(wt) + U(-spread, spread)
//
// with w = 2*pi/period and t the seconds since Start. Samples are spaced
// 1/SampleRate seconds apart.
package gendata

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	jsoniter "github.com/json-iterator/go"

	"solar-monitor/internal/decoder"
	"solar-monitor/internal/model"
)

const (
	DefaultSampleRate = 0.01
	DefaultPeriod     = 86400
	DefaultSpread     = 0.05
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options is one generation block.
type Options struct {
	Start           time.Time
	End             time.Time
	TopicID         int64
	SampleRate      float64 // samples per second
	Period          float64 // seconds
	AmplitudeCos    float64
	AmplitudeSin    float64
	AmplitudeOffset float64
	Spread          float64
}

// Overrides replace the matching field of every parsed block when non-zero.
type Overrides struct {
	TopicID    int64
	SampleRate float64
	Spread     float64
}

type jsonOptions struct {
	Start           string   `json:"start"`
	End             string   `json:"end"`
	TopicID         *int64   `json:"topic_id"`
	SampleRate      *float64 `json:"sample_rate"`
	Period          *float64 `json:"period"`
	AmplitudeCos    float64  `json:"amplitude_cos"`
	AmplitudeSin    float64  `json:"amplitude_sin"`
	AmplitudeOffset float64  `json:"amplitude_offset"`
	Spread          *float64 `json:"spread"`
}

// ParseOptions decodes a JSON array of blocks and applies defaults and
// overrides.
func ParseOptions(data []byte, ov Overrides) ([]Options, error) {
	var items []jsonOptions
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}

	out := make([]Options, 0, len(items))
	for i, it := range items {
		if it.Start == "" || it.End == "" {
			return nil, fmt.Errorf("block %d: a start and end date are required", i)
		}
		if it.TopicID == nil && ov.TopicID == 0 {
			return nil, fmt.Errorf("block %d: a topic id is required", i)
		}
		start, err := parseTime(it.Start)
		if err != nil {
			return nil, fmt.Errorf("block %d: start: %w", i, err)
		}
		end, err := parseTime(it.End)
		if err != nil {
			return nil, fmt.Errorf("block %d: end: %w", i, err)
		}

		o := Options{
			Start:           start,
			End:             end,
			SampleRate:      DefaultSampleRate,
			Period:          DefaultPeriod,
			AmplitudeCos:    it.AmplitudeCos,
			AmplitudeSin:    it.AmplitudeSin,
			AmplitudeOffset: it.AmplitudeOffset,
			Spread:          DefaultSpread,
		}
		if it.TopicID != nil {
			o.TopicID = *it.TopicID
		}
		if it.SampleRate != nil {
			o.SampleRate = *it.SampleRate
		}
		if it.Period != nil {
			o.Period = *it.Period
		}
		if it.Spread != nil {
			o.Spread = *it.Spread
		}

		if ov.TopicID != 0 {
			o.TopicID = ov.TopicID
		}
		if ov.SampleRate != 0 {
			o.SampleRate = ov.SampleRate
		}
		if ov.Spread != 0 {
			o.Spread = ov.Spread
		}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// parseTime accepts RFC 3339 and zone-less ISO-8601 (read as UTC).
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func (o Options) Validate() error {
	switch {
	case o.SampleRate <= 0 || math.IsNaN(o.SampleRate):
		return errors.New("sample_rate must be positive")
	case o.Period <= 0 || math.IsNaN(o.Period):
		return errors.New("period must be positive")
	case o.Spread < 0:
		return errors.New("spread must not be negative")
	case o.End.Before(o.Start):
		return errors.New("end is before start")
	}
	return nil
}

// Samples is the number of points the block produces.
func (o Options) Samples() int {
	return int(math.Floor(o.End.Sub(o.Start).Seconds() * o.SampleRate))
}

// Value evaluates the curve at ts with the given noise term.
func (o Options) Value(ts time.Time, noise float64) float64 {
	x := 2 * math.Pi / o.Period * ts.Sub(o.Start).Seconds()
	return o.AmplitudeOffset + o.AmplitudeCos*math.Cos(x) + o.AmplitudeSin*math.Sin(x) + noise
}

// Generator draws the noise term; a fixed seed makes runs repeatable.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator. Seed 0 picks a random seed.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

func (g *Generator) noise(spread float64) float64 {
	if spread == 0 {
		return 0
	}
	return g.faker.Float64Range(-spread, spread)
}

type key struct {
	ts    int64
	topic int64
}

// Generate evaluates every block. Blocks that hit the same (timestamp,
// topic) are summed. The result is ordered by (ts, topic_id).
func (g *Generator) Generate(blocks []Options) []model.Datum {
	sums := make(map[key]float64)
	for _, o := range blocks {
		step := float64(time.Second) / o.SampleRate
		for i := 0; i < o.Samples(); i++ {
			ts := o.Start.Add(time.Duration(float64(i) * step))
			sums[key{ts.UnixNano(), o.TopicID}] += o.Value(ts, g.noise(o.Spread))
		}
	}

	out := make([]model.Datum, 0, len(sums))
	for k, v := range sums {
		out = append(out, model.Datum{
			Timestamp:   time.Unix(0, k.ts).UTC(),
			TopicID:     k.topic,
			ValueString: decoder.FormatNumber(v),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].TopicID < out[j].TopicID
	})
	return out
}
