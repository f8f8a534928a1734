package service

import (
	"github.com/chemaudit/chemaudit/internal/standardize"
	"github.com/chemaudit/chemaudit/internal/structure"
)

type StandardizeRequest struct {
	Molecule string
	Format   structure.Format
	// Options falls back to standardize.DefaultOptions when nil.
	Options *standardize.Options
}

type StandardizeService struct {
	parser   *structure.Parser
	pipeline *standardize.Pipeline
}

func NewStandardizeService(parser *structure.Parser, pipeline *standardize.Pipeline) *StandardizeService {
	return &StandardizeService{parser: parser, pipeline: pipeline}
}

func (s *StandardizeService) Standardize(req StandardizeRequest) (*standardize.Outcome, error) {
	res, err := s.parser.Parse(req.Molecule, structure.Options{Format: req.Format})
	if err != nil {
		return nil, mapValidateError(err)
	}
	opts := standardize.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	outcome, _ := s.pipeline.Run(res.Molecule, opts)
	return outcome, nil
}

func (s *StandardizeService) Steps() []standardize.StepInfo {
	return standardize.Steps()
}
