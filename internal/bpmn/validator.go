// Package bpmn holds the lightweight structural checks and revision rules
// for BPMN 2.0 diagram artifacts.
//
// Validation looks for element tags only. It is not a schema validator:
// namespace URIs are ignored and unqualified tags (process) are accepted
// alongside prefixed ones (bpmn:process).
package bpmn

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	ElementDefinitions = "definitions"
	ElementProcess     = "process"
	ElementStartEvent  = "startEvent"
	ElementEndEvent    = "endEvent"
)

// RequiredElements is the fixed order in which missing elements are reported.
var RequiredElements = []string{ElementDefinitions, ElementProcess, ElementStartEvent, ElementEndEvent}

var elementPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(RequiredElements))
	for _, name := range RequiredElements {
		// An opening tag, optionally prefixed, followed by whitespace, '/', '>' or end of input.
		m[name] = regexp.MustCompile(`<(?:[A-Za-z_][\w.\-]*:)?` + name + `(?:[\s/>]|$)`)
	}
	return m
}()

// ErrStructuralInvalid is matched by *StructuralError.
var ErrStructuralInvalid = errors.New("diagram is structurally invalid")

// StructuralError carries the exact set of missing elements.
type StructuralError struct {
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrStructuralInvalid, strings.Join(e.Missing, ", "))
}

func (e *StructuralError) Is(target error) bool {
	return target == ErrStructuralInvalid
}

// ValidationResult reports whether a document passed and, if not, which
// required elements were absent.
type ValidationResult struct {
	OK              bool     `json:"ok"`
	MissingElements []string `json:"missingElements"`
}

// Err converts a failed result into a *StructuralError, or nil.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return &StructuralError{Missing: r.MissingElements}
}

// Validate checks xml for a definitions element, at least one process,
// start event and end event, in any order and with any formatting.
func Validate(xml string) ValidationResult {
	missing := []string{}
	for _, name := range RequiredElements {
		if !elementPatterns[name].MatchString(xml) {
			missing = append(missing, name)
		}
	}
	return ValidationResult{OK: len(missing) == 0, MissingElements: missing}
}
