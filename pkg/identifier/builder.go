package identifier

import (
	"strings"

	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
)

// Build derives the identifier value of a resource from business keys. The
// result depends only on its arguments. Patient and encounter values are the
// upstream numbers themselves; every other kind is
// <case>-<order>-<TAG>[-<discriminator>...].
func Build(keys pathology.BusinessKeys, kind Kind, discriminators ...string) (string, error) {
	if strings.TrimSpace(keys.OrderNumber) == "" {
		return "", &pathology.InvalidInputError{RecordID: keys.RecordID, Field: "order number", Reason: "is empty"}
	}

	switch kind {
	case Patient:
		if keys.PatientNumber == "" {
			return "", &pathology.InvalidInputError{RecordID: keys.RecordID, Field: "patient number", Reason: "is empty"}
		}
		return keys.PatientNumber, nil
	case Encounter:
		if keys.CaseNumber == "" {
			return "", &pathology.InvalidInputError{RecordID: keys.RecordID, Field: "case number", Reason: "is empty"}
		}
		return keys.CaseNumber, nil
	}

	parts := make([]string, 0, 3+len(discriminators))
	parts = append(parts, keys.CaseNumber, keys.OrderNumber, kind.Tag())
	parts = append(parts, discriminators...)
	return strings.Join(parts, "-"), nil
}
