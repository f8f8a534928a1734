package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/scoring"
	"github.com/chemaudit/chemaudit/internal/standardize"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/structure"
	"github.com/chemaudit/chemaudit/internal/validation"
)

type ValidateRequest struct {
	Molecule string           `json:"molecule"`
	Format   structure.Format `json:"format,omitempty"`
	Checks   []string         `json:"checks,omitempty"`
	// PreserveAromatic keeps aromatic notation in the canonical form.
	PreserveAromatic bool `json:"preserve_aromatic"`
}

type MoleculeInfo struct {
	InputString               string  `json:"input_string"`
	InputFormat               string  `json:"input_format"`
	CanonicalSMILES           string  `json:"canonical_smiles"`
	InChI                     string  `json:"inchi,omitempty"`
	InChIKey                  string  `json:"inchikey,omitempty"`
	MolecularFormula          string  `json:"molecular_formula"`
	MolecularWeight           float64 `json:"molecular_weight"`
	NumAtoms                  int     `json:"num_atoms"`
	NumBonds                  int     `json:"num_bonds"`
	NumRings                  int     `json:"num_rings"`
	FormalCharge              int     `json:"formal_charge"`
	NumStereocenters          int     `json:"num_stereocenters"`
	NumUndefinedStereocenters int     `json:"num_undefined_stereocenters"`
}

// Report is the answer to a single structure validation.
type Report struct {
	Status          string                   `json:"status"`
	MoleculeInfo    MoleculeInfo             `json:"molecule_info"`
	OverallScore    int                      `json:"overall_score"`
	Issues          []validation.CheckResult `json:"issues"`
	AllChecks       []validation.CheckResult `json:"all_checks"`
	Warnings        []string                 `json:"warnings,omitempty"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
	Cached          bool                     `json:"cached"`
}

// Processor runs one structure through parsing, the checks and the optional kernels.
// It holds no per-call state and is shared by all workers and the synchronous API path.
type Processor struct {
	parser   *structure.Parser
	engine   *validation.Engine
	screener *alerts.Screener
	scorer   *scoring.Scorer
	pipeline *standardize.Pipeline
	cache    store.ResultCache
}

func NewProcessor(parser *structure.Parser, engine *validation.Engine, screener *alerts.Screener, cache store.ResultCache) *Processor {
	kit := parser.Toolkit()
	return &Processor{
		parser:   parser,
		engine:   engine,
		screener: screener,
		scorer:   scoring.NewScorer(kit, screener),
		pipeline: standardize.NewPipeline(kit),
		cache:    cache,
	}
}

func (p *Processor) Parser() *structure.Parser       { return p.parser }
func (p *Processor) Engine() *validation.Engine      { return p.engine }
func (p *Processor) Screener() *alerts.Screener      { return p.screener }
func (p *Processor) Scorer() *scoring.Scorer         { return p.scorer }
func (p *Processor) Pipeline() *standardize.Pipeline { return p.pipeline }

// Validate parses and checks one structure. Parse failures are returned as *structure.ParseError
// or *structure.InputError, an unknown check name as *validation.UnknownCheckError.
func (p *Processor) Validate(ctx context.Context, req ValidateRequest) (*Report, error) {
	start := time.Now()
	if _, err := p.engine.Resolve(req.Checks); err != nil {
		return nil, err
	}
	res, err := p.parser.Parse(req.Molecule, structure.Options{Format: req.Format, Kekulize: !req.PreserveAromatic})
	if err != nil {
		return nil, err
	}
	outcome, cached, err := p.outcome(ctx, res, req.Checks)
	if err != nil {
		return nil, err
	}
	return &Report{
		Status:          "completed",
		MoleculeInfo:    p.moleculeInfo(req.Molecule, res),
		OverallScore:    outcome.OverallScore,
		Issues:          outcome.Issues,
		AllChecks:       outcome.AllChecks,
		Warnings:        res.Warnings,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Cached:          cached,
	}, nil
}

// ProcessItem never fails, problems end up in an error result.
func (p *Processor) ProcessItem(ctx context.Context, item Item, opts model.JobOptions) model.ResultItem {
	if item.PreError != "" {
		return model.ErrorItem(item.Index, item.Input, item.Name, item.PreError)
	}
	res, err := p.parser.Parse(item.Input, structure.Options{})
	if err != nil {
		return model.ErrorItem(item.Index, item.Input, item.Name, err.Error())
	}
	outcome, _, err := p.outcome(ctx, res, opts.Checks)
	if err != nil {
		return model.ErrorItem(item.Index, item.Input, item.Name, err.Error())
	}

	result := model.ResultItem{
		Index:           item.Index,
		Input:           item.Input,
		Name:            item.Name,
		Status:          model.ItemStatusSuccess,
		CanonicalSMILES: res.CanonicalSMILES,
		CanonicalKey:    res.CanonicalKey,
		Validation:      outcome,
	}
	if opts.IncludeAlerts && p.screener != nil {
		screened, err := p.screener.Screen(res.Molecule, opts.Catalogs)
		if err != nil {
			zap.S().Named("processor").Warnw("alert screen failed", "index", item.Index, "error", err)
		} else {
			result.Alerts = screened
		}
	}
	if opts.IncludeScoring {
		result.Scoring = p.scorer.Score(res.Molecule)
	}
	if opts.IncludeStandardization {
		result.Standardization, _ = p.pipeline.Run(res.Molecule, standardize.DefaultOptions())
	}
	return result
}

// outcome returns the cached outcome for the structure and check set, or runs the checks and caches them.
func (p *Processor) outcome(ctx context.Context, res *structure.Result, checks []string) (*validation.Outcome, bool, error) {
	fingerprint := validation.Fingerprint(checks)
	cached, err := p.cache.Get(ctx, res.CanonicalKey, fingerprint)
	if err == nil {
		return cached, true, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		zap.S().Named("processor").Warnw("cache read failed", "inchikey", res.CanonicalKey, "error", err)
	}

	outcome, err := p.engine.Run(validation.Subject{Kit: p.parser.Toolkit(), Molecule: res.Molecule}, checks)
	if err != nil {
		return nil, false, err
	}
	if err := p.cache.Set(ctx, res.CanonicalKey, fingerprint, outcome); err != nil {
		zap.S().Named("processor").Warnw("cache write failed", "inchikey", res.CanonicalKey, "error", err)
	}
	return outcome, false, nil
}

func (p *Processor) moleculeInfo(input string, res *structure.Result) MoleculeInfo {
	kit := p.parser.Toolkit()
	d := kit.Descriptors(res.Molecule)
	stereo := kit.StereoInfo(res.Molecule)
	return MoleculeInfo{
		InputString:               input,
		InputFormat:               string(res.Format),
		CanonicalSMILES:           res.CanonicalSMILES,
		InChI:                     res.Identifier,
		InChIKey:                  res.CanonicalKey,
		MolecularFormula:          d.MolecularFormula,
		MolecularWeight:           d.MolecularWeight,
		NumAtoms:                  d.HeavyAtoms,
		NumBonds:                  d.NumBonds,
		NumRings:                  d.NumRings,
		FormalCharge:              d.FormalCharge,
		NumStereocenters:          len(stereo.DefinedCenters) + len(stereo.UndefinedCenters),
		NumUndefinedStereocenters: len(stereo.UndefinedCenters),
	}
}
