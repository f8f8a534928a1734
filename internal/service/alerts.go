package service

import (
	"time"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/structure"
)

type AlertsRequest struct {
	Molecule string
	Format   structure.Format
	Catalogs []string
}

type AlertsReport struct {
	*alerts.Outcome
	CanonicalSMILES string `json:"canonical_smiles"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

type AlertsService struct {
	parser   *structure.Parser
	screener *alerts.Screener
}

func NewAlertsService(parser *structure.Parser, screener *alerts.Screener) *AlertsService {
	return &AlertsService{parser: parser, screener: screener}
}

func (s *AlertsService) Screen(req AlertsRequest) (*AlertsReport, error) {
	start := time.Now()
	res, err := s.parser.Parse(req.Molecule, structure.Options{Format: req.Format})
	if err != nil {
		return nil, mapValidateError(err)
	}
	outcome, err := s.screener.Screen(res.Molecule, req.Catalogs)
	if err != nil {
		return nil, mapValidateError(err)
	}
	return &AlertsReport{
		Outcome:         outcome,
		CanonicalSMILES: res.CanonicalSMILES,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// QuickCheck only reports whether any alert matches.
func (s *AlertsService) QuickCheck(req AlertsRequest) (bool, error) {
	res, err := s.parser.Parse(req.Molecule, structure.Options{Format: req.Format})
	if err != nil {
		return false, mapValidateError(err)
	}
	found, err := s.screener.QuickCheck(res.Molecule, req.Catalogs)
	if err != nil {
		return false, mapValidateError(err)
	}
	return found, nil
}

func (s *AlertsService) Catalogs() []alerts.CatalogInfo {
	return s.screener.Catalogs()
}
