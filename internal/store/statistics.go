package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

// StatisticsStore keeps the statistics record computed when a job completes.
type StatisticsStore interface {
	Save(ctx context.Context, jobID string, stats model.Statistics) error
	Get(ctx context.Context, jobID string) (*model.Statistics, error)
}

type StatisticsStoreKV struct {
	kv        kvstore.Store
	retention time.Duration
}

var _ StatisticsStore = (*StatisticsStoreKV)(nil)

func NewStatisticsStore(kv kvstore.Store, retention time.Duration) *StatisticsStoreKV {
	return &StatisticsStoreKV{kv: kv, retention: retention}
}

func (s *StatisticsStoreKV) Save(ctx context.Context, jobID string, stats model.Statistics) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}
	return s.kv.Set(ctx, StatsKey(jobID), string(b), s.retention)
}

func (s *StatisticsStoreKV) Get(ctx context.Context, jobID string) (*model.Statistics, error) {
	raw, err := s.kv.Get(ctx, StatsKey(jobID))
	if errors.Is(err, kvstore.ErrNil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading statistics: %w", err)
	}
	var stats model.Statistics
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("decoding statistics: %w", err)
	}
	return &stats, nil
}
