package model

import (
	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/scoring"
	"github.com/chemaudit/chemaudit/internal/standardize"
	"github.com/chemaudit/chemaudit/internal/validation"
)

type ItemStatus string

const (
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusError   ItemStatus = "error"
)

// ResultItem is the outcome for one input of a batch.
type ResultItem struct {
	Index           int                  `json:"index"`
	Input           string               `json:"smiles"`
	Name            string               `json:"name,omitempty"`
	Status          ItemStatus           `json:"status"`
	Error           string               `json:"error,omitempty"`
	CanonicalSMILES string               `json:"canonical_smiles,omitempty"`
	CanonicalKey    string               `json:"inchikey,omitempty"`
	Validation      *validation.Outcome  `json:"validation,omitempty"`
	Alerts          *alerts.Outcome      `json:"alerts,omitempty"`
	Scoring         *scoring.Outcome     `json:"scoring,omitempty"`
	Standardization *standardize.Outcome `json:"standardization,omitempty"`
}

// Score returns the overall validation score when the item has one.
func (r *ResultItem) Score() (int, bool) {
	if r.Status != ItemStatusSuccess || r.Validation == nil {
		return 0, false
	}
	return r.Validation.OverallScore, true
}

// ErrorItem builds the result of an input that could not be processed.
func ErrorItem(index int, input, name, message string) ResultItem {
	return ResultItem{Index: index, Input: input, Name: name, Status: ItemStatusError, Error: message}
}
