package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chemaudit/chemaudit/internal/service/export"
	"github.com/chemaudit/chemaudit/internal/structure"
)

const forbiddenStructureChars = "<>&;|$`"

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func structureFormatValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := structure.ParseFormat(val)
	return err == nil
}

func exportFormatValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := export.ParseFormat(val)
	return err == nil
}

func structureTextValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return !strings.ContainsAny(val, forbiddenStructureChars)
}

// oneOfFold accepts the names case-insensitively, plus "all".
func oneOfFold(names []string) func(fl validator.FieldLevel) bool {
	known := make(map[string]bool, len(names)+1)
	known["all"] = true
	for _, n := range names {
		known[strings.ToLower(n)] = true
	}
	return func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return known[strings.ToLower(strings.TrimSpace(val))]
	}
}
