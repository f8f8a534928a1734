package store

import (
	"time"

	"github.com/chemaudit/chemaudit/internal/kvstore"
)

type Store interface {
	Jobs() JobRegistry
	Results() ResultStore
	Cache() ResultCache
	Statistics() StatisticsStore
	KV() kvstore.Store
	Close() error
}

type Options struct {
	Retention    time.Duration
	CacheTTL     time.Duration
	CacheEnabled bool
	Now          func() time.Time
}

type DataStore struct {
	kv         kvstore.Store
	jobs       JobRegistry
	results    ResultStore
	cache      ResultCache
	statistics StatisticsStore
}

func NewStore(kv kvstore.Store, opts Options) Store {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &DataStore{
		kv:         kv,
		jobs:       NewJobStore(kv, opts.Retention, opts.Now),
		results:    NewResultStore(kv, opts.Retention),
		cache:      NewResultCache(kv, opts.CacheTTL, opts.CacheEnabled),
		statistics: NewStatisticsStore(kv, opts.Retention),
	}
}

func (s *DataStore) Jobs() JobRegistry {
	return s.jobs
}

func (s *DataStore) Results() ResultStore {
	return s.results
}

func (s *DataStore) Cache() ResultCache {
	return s.cache
}

func (s *DataStore) Statistics() StatisticsStore {
	return s.statistics
}

func (s *DataStore) KV() kvstore.Store {
	return s.kv
}

func (s *DataStore) Close() error {
	return s.kv.Close()
}
