package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest lists the failed rule per field.
type ErrInvalidRequest struct {
	error
	Fields map[string]string
}

func NewErrInvalidRequest(errs validator.ValidationErrors) *ErrInvalidRequest {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Namespace()] = describe(fe)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}
	return &ErrInvalidRequest{error: fmt.Errorf("invalid request: %s", strings.Join(parts, "; ")), Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must not exceed " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte", "lte":
		return fmt.Sprintf("must be %s %s", map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param())
	case "structure_format":
		return "must be one of auto, smiles, inchi, mol"
	case "check_name":
		return fmt.Sprintf("unknown check %v", fe.Value())
	case "catalog_name":
		return fmt.Sprintf("unknown alert catalog %v", fe.Value())
	case "export_format":
		return fmt.Sprintf("unsupported export format %v", fe.Value())
	case "structure_text":
		return "contains forbidden characters"
	}
	return "failed rule " + fe.Tag()
}
