package validation

import (
	"fmt"
	"sort"

	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/pipeline"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema is the subset of draft-07 the applicant schema needs.
type JSONSchema struct {
	Schema               string              `json:"$schema,omitempty"`
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        []string `json:"type"`
	Description string   `json:"description,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool                   `json:"valid"`
	Errors []apperrors.FieldError `json:"errors,omitempty"`
}

// ApplicantSchema derives the request schema from the field catalogue.
// Numeric fields also accept strings, which numeric repair cleans, and
// null, which the imputer fills. Unknown properties are ignored.
func ApplicantSchema() JSONSchema {
	schema := JSONSchema{
		Schema:               "http://json-schema.org/draft-07/schema#",
		Type:                 "object",
		Properties:           make(map[string]Property, len(pipeline.Fields)),
		AdditionalProperties: true,
	}

	for _, f := range pipeline.Fields {
		f := f
		switch f.Kind {
		case pipeline.KindCategorical:
			minLen, maxLen := 1, f.MaxLength
			schema.Properties[f.Name] = Property{
				Type:      []string{"string"},
				MinLength: &minLen,
				MaxLength: &maxLen,
				Enum:      f.Enum,
			}
			schema.Required = append(schema.Required, f.Name)
		case pipeline.KindInteger:
			schema.Properties[f.Name] = Property{
				Type:    []string{"integer", "string", "null"},
				Minimum: &f.Min,
				Maximum: &f.Max,
			}
		default:
			schema.Properties[f.Name] = Property{
				Type:    []string{"number", "string", "null"},
				Minimum: &f.Min,
				Maximum: &f.Max,
			}
		}
	}
	return schema
}

// Validator checks applicant records before they reach the pipeline.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewApplicantValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(ApplicantSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile applicant schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateInput runs the JSON schema and then the domain check on numeric
// strings: a string that repairs to a number outside the field's hard
// domain is rejected like an out-of-range number.
func (v *Validator) ValidateInput(input map[string]interface{}) (*ValidationResult, error) {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("validate applicant: %w", err)
	}

	var errs []apperrors.FieldError
	for _, re := range result.Errors() {
		field := re.Field()
		if re.Type() == "required" {
			if p, ok := re.Details()["property"].(string); ok {
				field = p
			}
		}
		errs = append(errs, apperrors.FieldError{
			Field:   field,
			Message: re.Description(),
			Code:    re.Type(),
		})
	}

	for _, f := range pipeline.Fields {
		s, ok := input[f.Name].(string)
		if !ok || !f.Numeric() {
			continue
		}
		value, outcome := pipeline.RepairString(s)
		if outcome == pipeline.RepairMissing || outcome == pipeline.RepairUnrecoverable {
			continue
		}
		if value < f.Min || value > f.Max {
			errs = append(errs, apperrors.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("repaired value %v outside [%v, %v]", value, f.Min, f.Max),
				Code:    "out_of_range",
			})
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
