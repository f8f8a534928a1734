package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

type ResultPage struct {
	Items         []model.ResultItem `json:"results"`
	Page          int                `json:"page"`
	PageSize      int                `json:"page_size"`
	TotalMatching int                `json:"total_results"`
	TotalPages    int                `json:"total_pages"`
}

// ResultStore keeps the per-item results of a job, keyed by item index.
type ResultStore interface {
	// Append writes items, overwriting any earlier write of the same index.
	Append(ctx context.Context, jobID string, items []model.ResultItem) error
	// List returns every matching item in index order.
	List(ctx context.Context, jobID string, filter *ResultQueryFilter) ([]model.ResultItem, error)
	Page(ctx context.Context, jobID string, filter *ResultQueryFilter, page, pageSize int) (*ResultPage, error)
	Count(ctx context.Context, jobID string) (int, error)
}

type ResultStoreKV struct {
	kv        kvstore.Store
	retention time.Duration
}

var _ ResultStore = (*ResultStoreKV)(nil)

func NewResultStore(kv kvstore.Store, retention time.Duration) *ResultStoreKV {
	return &ResultStoreKV{kv: kv, retention: retention}
}

func (s *ResultStoreKV) Append(ctx context.Context, jobID string, items []model.ResultItem) error {
	if len(items) == 0 {
		return nil
	}
	fields := make(map[string]string, len(items))
	for i := range items {
		b, err := json.Marshal(&items[i])
		if err != nil {
			return fmt.Errorf("encoding result %d: %w", items[i].Index, err)
		}
		fields[strconv.Itoa(items[i].Index)] = string(b)
	}
	key := ResultsKey(jobID)
	if err := s.kv.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return s.kv.Expire(ctx, key, s.retention)
}

func (s *ResultStoreKV) List(ctx context.Context, jobID string, filter *ResultQueryFilter) ([]model.ResultItem, error) {
	raw, err := s.kv.HGetAll(ctx, ResultsKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	items := make([]model.ResultItem, 0, len(raw))
	for field, value := range raw {
		var item model.ResultItem
		if err := json.Unmarshal([]byte(value), &item); err != nil {
			return nil, fmt.Errorf("decoding result %s: %w", field, err)
		}
		if filter.Match(&item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	return items, nil
}

func (s *ResultStoreKV) Page(ctx context.Context, jobID string, filter *ResultQueryFilter, page, pageSize int) (*ResultPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	items, err := s.List(ctx, jobID, filter)
	if err != nil {
		return nil, err
	}
	out := &ResultPage{
		Page:          page,
		PageSize:      pageSize,
		TotalMatching: len(items),
		TotalPages:    (len(items) + pageSize - 1) / pageSize,
		Items:         []model.ResultItem{},
	}
	start := (page - 1) * pageSize
	if start < len(items) {
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}
		out.Items = items[start:end]
	}
	return out, nil
}

func (s *ResultStoreKV) Count(ctx context.Context, jobID string) (int, error) {
	n, err := s.kv.HLen(ctx, ResultsKey(jobID))
	if err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return int(n), nil
}
