package model

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Topic names one time series, e.g. "UW/Maple/eaton_meter/freq".
// Table: topics
type Topic struct {
	TopicID   int64  `gorm:"column:topic_id;primaryKey;autoIncrement" json:"topic_id"`
	TopicName string `gorm:"column:topic_name;size:512;not null;uniqueIndex:topics_topic_name_key" json:"topic_name"`
}

func (Topic) TableName() string { return "topics" }

// Datum is one recorded value for one topic at one instant.
// Table: data, keyed by (ts, topic_id).
type Datum struct {
	Timestamp   time.Time `gorm:"column:ts;primaryKey;autoIncrement:false;index:data_ts_idx" json:"ts"`
	TopicID     int64     `gorm:"column:topic_id;primaryKey;autoIncrement:false;index:data_topic_id_idx" json:"topic_id"`
	ValueString string    `gorm:"column:value_string;type:text;not null" json:"value_string"`
}

func (Datum) TableName() string { return "data" }

// Key renders the composite key for error messages.
func (d Datum) Key() string {
	return fmt.Sprintf("%s/%d", d.Timestamp.UTC().Format(time.RFC3339Nano), d.TopicID)
}

// Metadata holds a JSON blob describing a topic (units, timezone, type).
// Rows are created out-of-band and only read here.
// Table: meta
type Metadata struct {
	TopicID  int64  `gorm:"column:topic_id;primaryKey;autoIncrement:false" json:"topic_id"`
	Metadata string `gorm:"column:metadata;type:text;not null" json:"metadata"`
}

func (Metadata) TableName() string { return "meta" }

// TopicMeta is the decoded form of Metadata.Metadata.
// Not every key is present for every topic.
type TopicMeta struct {
	Units    string `json:"units"`
	Timezone string `json:"tz"`
	Type     string `json:"type"`
}

// Decode parses the metadata blob.
func (m Metadata) Decode() (TopicMeta, error) {
	var tm TopicMeta
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(m.Metadata, &tm); err != nil {
		return TopicMeta{}, fmt.Errorf("decode metadata for topic %d: %w", m.TopicID, err)
	}
	return tm, nil
}
