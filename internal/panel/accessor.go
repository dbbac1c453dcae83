package panel

import (
	"errors"
	"fmt"

	"solar-monitor/internal/decoder"
	"solar-monitor/internal/model"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Accessor reads named metrics from one panel.
type Accessor struct {
	reader  RegisterReader
	metrics []model.Metric
	byName  map[string]model.Metric
}

// NewAccessor indexes metrics by name. The slice order is kept for Metrics.
func NewAccessor(r RegisterReader, metrics []model.Metric) *Accessor {
	byName := make(map[string]model.Metric, len(metrics))
	for _, m := range metrics {
		byName[m.Name] = m
	}
	return &Accessor{reader: r, metrics: metrics, byName: byName}
}

func (a *Accessor) HasMetric(name string) bool {
	_, ok := a.byName[name]
	return ok
}

// Metrics returns the descriptors in load order.
func (a *Accessor) Metrics() []model.Metric {
	out := make([]model.Metric, len(a.metrics))
	copy(out, a.metrics)
	return out
}

// GetMetric reads and decodes the metric called name.
func (a *Accessor) GetMetric(name string) (decoder.Value, error) {
	m, ok := a.byName[name]
	if !ok {
		return decoder.Value{}, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return a.Read(m)
}

// Read fetches m.Size registers at m.Address and decodes them. Transport
// failures come back as *TransportError, bad descriptors or short blocks as
// *decoder.DecodeError.
func (a *Accessor) Read(m model.Metric) (decoder.Value, error) {
	words, err := a.reader.ReadRegisters(m.Address, m.Size)
	if err != nil {
		return decoder.Value{}, err
	}
	return decoder.Decode(m, words)
}
