// Package revision resolves the revision-type label of a report into its
// clinical status.
package revision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
)

type Status string

const (
	Final     Status = "final"
	Corrected Status = "corrected"
	Amended   Status = "amended"
)

type Kind int

const (
	Main Kind = iota
	Correction
	Addition
)

// Revision is a resolved revision-type label.
type Revision struct {
	Kind   Kind
	Number int
}

var (
	mainLabels = map[string]struct{}{
		"main report": {},
		"hauptbefund": {},
	}
	numberedLabel = regexp.MustCompile(`^(correction|korrekturbericht|addition|zusatzbefund) ?([0-9]+)$`)
)

// Parse resolves a label. Matching ignores case and repeated whitespace.
func Parse(label string) (Revision, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if _, ok := mainLabels[normalized]; ok {
		return Revision{Kind: Main}, nil
	}

	match := numberedLabel.FindStringSubmatch(normalized)
	if match == nil {
		return Revision{}, &pathology.UnknownRevisionTypeError{Label: label}
	}
	number, err := strconv.Atoi(match[2])
	if err != nil || number < 1 {
		return Revision{}, &pathology.UnknownRevisionTypeError{Label: label}
	}

	switch match[1] {
	case "correction", "korrekturbericht":
		return Revision{Kind: Correction, Number: number}, nil
	default:
		return Revision{Kind: Addition, Number: number}, nil
	}
}

// Resolve maps a label to the status shared by every resource of that
// revision.
func Resolve(label string) (Status, error) {
	rev, err := Parse(label)
	if err != nil {
		return "", err
	}
	return rev.Status(), nil
}

func (r Revision) Status() Status {
	switch r.Kind {
	case Correction:
		return Corrected
	case Addition:
		return Amended
	default:
		return Final
	}
}

// Amends reports whether the revision extends an already delivered report
// instead of creating it.
func (r Revision) Amends() bool {
	return r.Kind != Main
}

// Token discriminates identifiers of resources that belong to one revision.
func (r Revision) Token() string {
	switch r.Kind {
	case Correction:
		return fmt.Sprintf("CORRECTION%d", r.Number)
	case Addition:
		return fmt.Sprintf("ADDITION%d", r.Number)
	default:
		return "MAIN"
	}
}

func (s Status) Observation() fhir.ObservationStatus {
	switch s {
	case Corrected:
		return fhir.ObservationStatusCorrected
	case Amended:
		return fhir.ObservationStatusAmended
	default:
		return fhir.ObservationStatusFinal
	}
}

func (s Status) DiagnosticReport() fhir.DiagnosticReportStatus {
	switch s {
	case Corrected:
		return fhir.DiagnosticReportStatusCorrected
	case Amended:
		return fhir.DiagnosticReportStatusAmended
	default:
		return fhir.DiagnosticReportStatusFinal
	}
}
