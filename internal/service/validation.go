package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/structure"
	"github.com/chemaudit/chemaudit/internal/usage"
	"github.com/chemaudit/chemaudit/internal/validation"
)

const (
	DefaultAsyncTimeout = 30 * time.Second
	MinAsyncTimeout     = time.Second
	MaxAsyncTimeout     = 60 * time.Second
)

// NewErrTimeoutRange rejects an async timeout outside [MinAsyncTimeout, MaxAsyncTimeout].
func NewErrTimeoutRange() *ErrValidation {
	return NewErrValidation(fmt.Sprintf("timeout must be between %d and %d seconds",
		int(MinAsyncTimeout.Seconds()), int(MaxAsyncTimeout.Seconds())))
}

// CheckInfo describes a registered check.
type CheckInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type ValidationService struct {
	processor  *jobs.Processor
	dispatcher *jobs.Dispatcher
	usage      *usage.Recorder
}

func NewValidationService(processor *jobs.Processor, dispatcher *jobs.Dispatcher, recorder *usage.Recorder) *ValidationService {
	return &ValidationService{processor: processor, dispatcher: dispatcher, usage: recorder}
}

// Validate runs the validation in the calling goroutine.
func (s *ValidationService) Validate(ctx context.Context, req jobs.ValidateRequest) (*jobs.Report, error) {
	report, err := s.processor.Validate(ctx, req)
	if err != nil {
		return nil, mapValidateError(err)
	}
	s.usage.RecordValidation()
	return report, nil
}

// ValidateAsync hands the validation to a worker on the high priority tier and waits for it.
// A zero timeout means DefaultAsyncTimeout, anything outside [MinAsyncTimeout, MaxAsyncTimeout] is rejected.
func (s *ValidationService) ValidateAsync(ctx context.Context, req jobs.ValidateRequest, timeout time.Duration) (*jobs.Report, error) {
	if timeout == 0 {
		timeout = DefaultAsyncTimeout
	}
	if timeout < MinAsyncTimeout || timeout > MaxAsyncTimeout {
		return nil, NewErrTimeoutRange()
	}
	if _, err := s.processor.Engine().Resolve(req.Checks); err != nil {
		return nil, mapValidateError(err)
	}
	if err := s.processor.Parser().CheckInput(req.Molecule); err != nil {
		return nil, mapValidateError(err)
	}

	reply, err := s.dispatcher.Validate(ctx, req, timeout)
	if errors.Is(err, jobs.ErrTaskTimeout) {
		zap.S().Named("validation_service").Warnw("async validation timed out", "timeout", timeout)
		return nil, NewErrTimeout(timeout)
	}
	if err != nil {
		return nil, err
	}
	switch reply.ErrorKind {
	case "":
		s.usage.RecordValidation()
		return reply.Report, nil
	case "parse", "input":
		return nil, NewErrParse(reply.Error, reply.Errors, reply.Warnings)
	case "checks":
		return nil, NewErrValidation(reply.Error)
	}
	return nil, errors.New(reply.Error)
}

func (s *ValidationService) CheckNames() []string {
	return s.processor.Engine().Names()
}

// Checks lists the registered check names grouped by category.
func (s *ValidationService) Checks() map[string][]CheckInfo {
	engine := s.processor.Engine()
	out := make(map[string][]CheckInfo)
	for category, names := range engine.ByCategory() {
		infos := make([]CheckInfo, 0, len(names))
		for _, name := range names {
			c, ok := engine.Describe(name)
			if !ok {
				continue
			}
			infos = append(infos, CheckInfo{Name: name, Description: c.Description(), Severity: string(c.Severity())})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		out[string(category)] = infos
	}
	return out
}

func mapValidateError(err error) error {
	var parseErr *structure.ParseError
	var inputErr *structure.InputError
	var checksErr *validation.UnknownCheckError
	var catalogErr *alerts.UnknownCatalogError
	switch {
	case errors.As(err, &parseErr):
		return NewErrParse(parseErr.Error(), parseErr.Errors, parseErr.Warnings)
	case errors.As(err, &inputErr):
		return NewErrParse(inputErr.Error(), nil, nil)
	case errors.As(err, &checksErr):
		return NewErrValidation(checksErr.Error())
	case errors.As(err, &catalogErr):
		return NewErrValidation(catalogErr.Error())
	}
	return err
}
