package tsdb

import "solar-monitor/internal/model"

// meterFields are the per-panel topics in historical id order: a site's
// n-th field has id base+n.
var meterFields = []string{
	"VA", "W_A", "Voltage_AN", "Voltage_CN", "Angle_I_C",
	"W_C", "Voltage_BN", "Angle_I_A", "pf_B", "pf_A",
	"Angle_I_B", "pf", "pf_C", "W", "Current_N",
	"VAR", "freq", "W_B", "Angle_V_CN", "Angle_V_AN",
	"Angle_V_BN",
}

var fixtureSites = []struct {
	prefix string
	base   int64
}{
	{"UW/Alder/eaton_meter", 0},
	{"UW/Elm/eaton_meter", 21},
	{"UW/Maple/eaton_meter", 42},
	{"UW/Mercer/nexus_meter", 63},
}

// FixtureTopics is the fixed topic list an embedded store can be seeded
// with: the four campus meters and their historical topic ids (1-84).
func FixtureTopics() []model.Topic {
	topics := make([]model.Topic, 0, len(fixtureSites)*len(meterFields))
	for _, site := range fixtureSites {
		for i, field := range meterFields {
			topics = append(topics, model.Topic{
				TopicID:   site.base + int64(i) + 1,
				TopicName: model.TopicNameFor(site.prefix, field),
			})
		}
	}
	return topics
}
