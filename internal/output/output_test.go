package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-monitor/internal/model"
)

var (
	ts     = time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC)
	topics = []model.Topic{{TopicID: 17, TopicName: "UW/Alder/eaton_meter/freq"}}
	data   = []model.Datum{
		{Timestamp: ts, TopicID: 17, ValueString: "59.95"},
		{Timestamp: ts, TopicID: 99, ValueString: "1"},
	}
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestDataCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Data(&buf, CSV, Rows(data, topics)))
	assert.Equal(t,
		"ts,topic_id,topic_name,value\n"+
			"2018-01-01T12:00:00Z,17,UW/Alder/eaton_meter/freq,59.95\n"+
			"2018-01-01T12:00:00Z,99,,1\n",
		buf.String())
}

func TestDataJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Data(&buf, JSON, Rows(data[:1], topics)))
	assert.JSONEq(t,
		`[{"ts":"2018-01-01T12:00:00Z","topic_id":17,"topic_name":"UW/Alder/eaton_meter/freq","value":"59.95"}]`,
		buf.String())
}

func TestTopics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Topics(&buf, CSV, topics))
	assert.Equal(t, "topic_id,topic_name\n17,UW/Alder/eaton_meter/freq\n", buf.String())

	buf.Reset()
	require.NoError(t, Topics(&buf, JSON, topics))
	assert.JSONEq(t, `[{"topic_id":17,"topic_name":"UW/Alder/eaton_meter/freq"}]`, buf.String())
}

func TestMetadata(t *testing.T) {
	meta := []model.Metadata{
		{TopicID: 17, Metadata: `{"units":"Hz","tz":"PT","type":"float"}`},
		{TopicID: 18, Metadata: `not json`},
	}
	var buf bytes.Buffer
	require.NoError(t, Metadata(&buf, CSV, meta))
	assert.Equal(t, "topic_id,units,tz,type,raw\n17,Hz,PT,float,\n18,,,,not json\n", buf.String())
}

func TestTimes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Times(&buf, JSON, "dates", []time.Time{ts}, true))
	assert.JSONEq(t, `{"dates":["2018-01-01"]}`, buf.String())

	buf.Reset()
	require.NoError(t, Times(&buf, CSV, "earliest", []time.Time{ts}, false))
	assert.Equal(t, "earliest\n2018-01-01T12:00:00Z\n", buf.String())
}
