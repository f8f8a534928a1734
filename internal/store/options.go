package store

import "github.com/chemaudit/chemaudit/internal/store/model"

// ResultQueryFilter selects result items. Indices are intersected after every other filter.
type ResultQueryFilter struct {
	QueryFn []func(item *model.ResultItem) bool
	indices map[int]struct{}
}

func NewResultQueryFilter() *ResultQueryFilter {
	return &ResultQueryFilter{QueryFn: make([]func(item *model.ResultItem) bool, 0)}
}

func (f *ResultQueryFilter) ByStatus(status model.ItemStatus) *ResultQueryFilter {
	f.QueryFn = append(f.QueryFn, func(item *model.ResultItem) bool {
		return item.Status == status
	})
	return f
}

// WithMinScore keeps scored items with score >= min.
func (f *ResultQueryFilter) WithMinScore(min int) *ResultQueryFilter {
	f.QueryFn = append(f.QueryFn, func(item *model.ResultItem) bool {
		score, ok := item.Score()
		return ok && score >= min
	})
	return f
}

// WithMaxScore keeps scored items with score <= max.
func (f *ResultQueryFilter) WithMaxScore(max int) *ResultQueryFilter {
	f.QueryFn = append(f.QueryFn, func(item *model.ResultItem) bool {
		score, ok := item.Score()
		return ok && score <= max
	})
	return f
}

func (f *ResultQueryFilter) ByIndices(indices []int) *ResultQueryFilter {
	if f.indices == nil {
		f.indices = make(map[int]struct{}, len(indices))
	}
	for _, i := range indices {
		f.indices[i] = struct{}{}
	}
	return f
}

func (f *ResultQueryFilter) Match(item *model.ResultItem) bool {
	if f == nil {
		return true
	}
	for _, fn := range f.QueryFn {
		if !fn(item) {
			return false
		}
	}
	if f.indices != nil {
		if _, ok := f.indices[item.Index]; !ok {
			return false
		}
	}
	return true
}
