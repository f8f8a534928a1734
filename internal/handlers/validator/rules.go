package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewStructureValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("structure_format", structureFormatValidator),
		},
		{
			Rule: registerFn("structure_text", structureTextValidator),
		},
	}
}

// NewOptionValidationRules checks requested names against the registered checks and catalogs.
func NewOptionValidationRules(checkNames, catalogNames []string) []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("check_name", oneOfFold(checkNames)),
		},
		{
			Rule: registerFn("catalog_name", oneOfFold(catalogNames)),
		},
	}
}

func NewExportValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("export_format", exportFormatValidator),
		},
	}
}
