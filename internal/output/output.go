// Package output renders store query results as JSON or CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"solar-monitor/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV:
		return f, nil
	case "":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Row is one datum with its topic name resolved.
type Row struct {
	Timestamp time.Time `json:"ts"`
	TopicID   int64     `json:"topic_id"`
	TopicName string    `json:"topic_name,omitempty"`
	Value     string    `json:"value"`
}

// Rows joins data with topic names; unknown ids keep an empty name.
func Rows(data []model.Datum, topics []model.Topic) []Row {
	names := make(map[int64]string, len(topics))
	for _, t := range topics {
		names[t.TopicID] = t.TopicName
	}
	out := make([]Row, len(data))
	for i, d := range data {
		out[i] = Row{Timestamp: d.Timestamp.UTC(), TopicID: d.TopicID, TopicName: names[d.TopicID], Value: d.ValueString}
	}
	return out
}

// Data writes query rows.
// CSV columns: ts,topic_id,topic_name,value
func Data(w io.Writer, f Format, rows []Row) error {
	if f == JSON {
		return writeJSON(w, rows)
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			timeToRFC3339(r.Timestamp),
			strconv.FormatInt(r.TopicID, 10),
			r.TopicName,
			r.Value,
		})
	}
	return writeCSV(w, []string{"ts", "topic_id", "topic_name", "value"}, records)
}

// Topics writes the topic catalog.
func Topics(w io.Writer, f Format, topics []model.Topic) error {
	if f == JSON {
		return writeJSON(w, topics)
	}
	records := make([][]string, 0, len(topics))
	for _, t := range topics {
		records = append(records, []string{strconv.FormatInt(t.TopicID, 10), t.TopicName})
	}
	return writeCSV(w, []string{"topic_id", "topic_name"}, records)
}

// Metadata writes meta rows with the blob decoded where possible.
func Metadata(w io.Writer, f Format, meta []model.Metadata) error {
	type entry struct {
		TopicID int64           `json:"topic_id"`
		Meta    model.TopicMeta `json:"metadata"`
		Raw     string          `json:"raw,omitempty"`
	}
	entries := make([]entry, 0, len(meta))
	for _, m := range meta {
		e := entry{TopicID: m.TopicID}
		tm, err := m.Decode()
		if err != nil {
			e.Raw = m.Metadata
		} else {
			e.Meta = tm
		}
		entries = append(entries, e)
	}
	if f == JSON {
		return writeJSON(w, entries)
	}
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			strconv.FormatInt(e.TopicID, 10), e.Meta.Units, e.Meta.Timezone, e.Meta.Type, e.Raw,
		})
	}
	return writeCSV(w, []string{"topic_id", "units", "tz", "type", "raw"}, records)
}

// Times writes a single column of timestamps (or dates when dateOnly).
func Times(w io.Writer, f Format, name string, times []time.Time, dateOnly bool) error {
	strs := make([]string, len(times))
	for i, t := range times {
		if dateOnly {
			strs[i] = t.UTC().Format(time.DateOnly)
		} else {
			strs[i] = timeToRFC3339(t)
		}
	}
	if f == JSON {
		return writeJSON(w, map[string][]string{name: strs})
	}
	records := make([][]string, len(strs))
	for i, s := range strs {
		records[i] = []string{s}
	}
	return writeCSV(w, []string{name}, records)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func timeToRFC3339(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
