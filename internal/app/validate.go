package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"edurumble-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(answerInOptions, generatedQuestion{})
	return v
}

// fieldProblems turns validator failures into messages. messages is keyed by
// "StructField.tag"; failures without an entry read "<field> failed <tag>".
// Repeated messages are reported once.
func fieldProblems(err error, messages map[string]string) ([]string, error) {
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	var problems []string
	seen := make(map[string]bool, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s", trimNamespace(fe.Namespace()), fe.Tag())
		}
		if !seen[msg] {
			seen[msg] = true
			problems = append(problems, msg)
		}
	}
	return problems, nil
}

// validateStruct returns a *domain.ValidationError describing every failed rule of v.
func validateStruct(v any, messages map[string]string) error {
	problems, err := fieldProblems(validate.Struct(v), messages)
	if err != nil {
		return fmt.Errorf("validate %T: %w", v, err)
	}
	if len(problems) > 0 {
		return domain.NewValidationError(problems...)
	}
	return nil
}

func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
