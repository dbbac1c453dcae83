package tsdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"solar-monitor/internal/model"
)

// dialect holds everything that differs between backends.
type dialect interface {
	name() Dialect
	// sampleThreshold maps a caller sample rate in [0,1] onto the range of
	// the backend's random() so that `random() <= threshold` keeps a row
	// with that probability.
	sampleThreshold(rate float64) float64
	// dateExpr renders ts as a YYYY-MM-DD string.
	dateExpr() string
	isUniqueViolation(err error) bool
}

// sqlStore implements Store on top of gorm; EmbeddedStore and
// NetworkedStore embed it.
type sqlStore struct {
	db      *gorm.DB
	dialect dialect
	log     *zap.Logger
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlStore) Dialect() Dialect { return s.dialect.name() }


func (s *sqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *sqlStore) TopicExists(ctx context.Context, name string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Topic{}).Where("topic_name = ?", name).Count(&n).Error
	if err != nil {
		return false, &StoreError{Op: "topicExists", Key: name, Err: err}
	}
	return n > 0, nil
}

func (s *sqlStore) lookupTopic(ctx context.Context, name string) (int64, bool, error) {
	var topics []model.Topic
	if err := s.db.WithContext(ctx).Where("topic_name = ?", name).Find(&topics).Error; err != nil {
		return 0, false, err
	}
	if len(topics) == 0 {
		return 0, false, nil
	}
	return topics[0].TopicID, true, nil
}

// EnsureTopic returns the id for name, inserting the topic if needed. A
// unique-index violation means another writer inserted it first; the
// existing id is re-read instead of failing.
func (s *sqlStore) EnsureTopic(ctx context.Context, name string) (int64, error) {
	id, ok, err := s.lookupTopic(ctx, name)
	if err != nil {
		return 0, &StoreError{Op: "ensureTopic", Key: name, Err: err}
	}
	if ok {
		return id, nil
	}

	t := model.Topic{TopicName: name}
	err = s.db.WithContext(ctx).Create(&t).Error
	if err == nil {
		return t.TopicID, nil
	}
	if !s.dialect.isUniqueViolation(err) {
		return 0, &StoreError{Op: "ensureTopic", Key: name, Err: err}
	}

	s.log.Debug("topic inserted concurrently, re-reading id", zap.String("topic", name), zap.Error(err))
	id, ok, err = s.lookupTopic(ctx, name)
	if err != nil {
		return 0, &StoreError{Op: "ensureTopic", Key: name, Err: err}
	}
	if !ok {
		return 0, &StoreError{Op: "ensureTopic", Key: name, Err: fmt.Errorf("topic missing after unique violation")}
	}
	return id, nil
}

func (s *sqlStore) GetAllTopics(ctx context.Context) ([]model.Topic, error) {
	var topics []model.Topic
	if err := s.db.WithContext(ctx).Order("topic_id").Find(&topics).Error; err != nil {
		return nil, &StoreError{Op: "getAllTopics", Err: err}
	}
	return topics, nil
}

func (s *sqlStore) GetAllMetadata(ctx context.Context) ([]model.Metadata, error) {
	var meta []model.Metadata
	if err := s.db.WithContext(ctx).Order("topic_id").Find(&meta).Error; err != nil {
		return nil, &StoreError{Op: "getAllMetadata", Err: err}
	}
	return meta, nil
}

// WriteData upserts records one at a time. Each upsert is atomic; on the
// first failure earlier records stay written and the failing key is reported.
func (s *sqlStore) WriteData(ctx context.Context, records []model.Datum) error {
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "ts"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value_string"}),
	}
	for _, rec := range records {
		rec.Timestamp = rec.Timestamp.UTC()
		if err := s.db.WithContext(ctx).Clauses(upsert).Create(&rec).Error; err != nil {
			return &StoreError{Op: "writeData", Key: rec.Key(), Err: err}
		}
	}
	return nil
}

// GetData returns rows for topicIDs with start <= ts <= end, each kept
// independently with probability sampleRate, ordered by (ts, topic_id).
func (s *sqlStore) GetData(ctx context.Context, topicIDs []int64, start, end time.Time, sampleRate float64) ([]model.Datum, error) {
	if math.IsNaN(sampleRate) || sampleRate < 0 || sampleRate > 1 {
		return nil, &StoreError{Op: "getData", Key: fmt.Sprint(sampleRate), Err: ErrInvalidSampleRate}
	}
	if len(topicIDs) == 0 {
		return []model.Datum{}, nil
	}

	var rows []model.Datum
	err := s.db.WithContext(ctx).
		Where("topic_id IN ?", topicIDs).
		Where("ts >= ? AND ts <= ?", start.UTC(), end.UTC()).
		Where("random() <= ?", s.dialect.sampleThreshold(sampleRate)).
		Order("ts, topic_id").
		Find(&rows).Error
	if err != nil {
		return nil, &StoreError{Op: "getData", Key: fmt.Sprint(topicIDs), Err: err}
	}
	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC()
	}
	return rows, nil
}

func (s *sqlStore) GetEarliestDataTimestamp(ctx context.Context) (time.Time, bool, error) {
	return s.boundaryTimestamp(ctx, "getEarliestDataTimestamp", "ts ASC")
}

func (s *sqlStore) GetLatestDataTimestamp(ctx context.Context) (time.Time, bool, error) {
	return s.boundaryTimestamp(ctx, "getLatestDataTimestamp", "ts DESC")
}

func (s *sqlStore) boundaryTimestamp(ctx context.Context, op, order string) (time.Time, bool, error) {
	var rows []model.Datum
	if err := s.db.WithContext(ctx).Order(order).Limit(1).Find(&rows).Error; err != nil {
		return time.Time{}, false, &StoreError{Op: op, Err: err}
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].Timestamp.UTC(), true, nil
}

func (s *sqlStore) GetAllDataDates(ctx context.Context) ([]time.Time, error) {
	q := "SELECT DISTINCT " + s.dialect.dateExpr() + " AS day FROM data ORDER BY day"
	rows, err := s.db.WithContext(ctx).Raw(q).Rows()
	if err != nil {
		return nil, &StoreError{Op: "getAllDataDates", Err: err}
	}
	defer rows.Close()

	out := []time.Time{}
	for rows.Next() {
		var day sql.NullString
		if err := rows.Scan(&day); err != nil {
			return nil, &StoreError{Op: "getAllDataDates", Err: err}
		}
		if !day.Valid {
			continue
		}
		t, err := time.Parse(time.DateOnly, day.String)
		if err != nil {
			return nil, &StoreError{Op: "getAllDataDates", Key: day.String, Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "getAllDataDates", Err: err}
	}
	return out, nil
}
