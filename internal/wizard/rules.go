package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
)

// ErrIncompleteDetails is matched by *DetailsError.
var ErrIncompleteDetails = errors.New("incomplete project details")

// DetailsError lists the fields that failed their rule.
type DetailsError struct {
	Fields []FieldError
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *DetailsError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrIncompleteDetails, strings.Join(parts, "; "))
}

func (e *DetailsError) Is(target error) bool {
	return target == ErrIncompleteDetails
}

// Rule checks one field of the details form.
type Rule struct {
	Field   string
	Message string
	Check   func(models.ProjectDetails) bool
}

// DetailsRules is the rule set for the Details step.
var DetailsRules = []Rule{
	required("name", func(d models.ProjectDetails) string { return d.Name }),
	required("clientAlias", func(d models.ProjectDetails) string { return d.ClientAlias }),
	{
		Field:   "template",
		Message: "unknown template",
		Check: func(d models.ProjectDetails) bool {
			if d.Template == "" {
				return true
			}
			for _, known := range models.KnownTemplates {
				if d.Template == known {
					return true
				}
			}
			return false
		},
	},
}

func required(field string, get func(models.ProjectDetails) string) Rule {
	return Rule{
		Field:   field,
		Message: "is required",
		Check:   func(d models.ProjectDetails) bool { return strings.TrimSpace(get(d)) != "" },
	}
}

// ValidateDetails runs rules against d and returns a *DetailsError listing
// every failure, or nil.
func ValidateDetails(d models.ProjectDetails, rules []Rule) error {
	var failed []FieldError
	for _, r := range rules {
		if !r.Check(d) {
			failed = append(failed, FieldError{Field: r.Field, Message: r.Message})
		}
	}
	if len(failed) > 0 {
		return &DetailsError{Fields: failed}
	}
	return nil
}

// NormalizeDetails trims the text fields and fills in the default template.
func NormalizeDetails(d models.ProjectDetails) models.ProjectDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.ClientAlias = strings.TrimSpace(d.ClientAlias)
	d.Description = strings.TrimSpace(d.Description)
	if d.Template == "" {
		d.Template = models.TemplateStandard
	}
	return d
}
