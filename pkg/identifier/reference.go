package identifier

import (
	"fmt"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
)

// ConditionalURL addresses a resource by its business identifier, for both
// conditional upserts and references inside one bundle.
func ConditionalURL(resourceType, system, value string) string {
	return fmt.Sprintf("%s?identifier=%s|%s", resourceType, system, value)
}

func NewIdentifier(system, value string) fhir.Identifier {
	return fhir.Identifier{System: &system, Value: &value}
}

func NewReference(resourceType, system, value string) fhir.Reference {
	ref := ConditionalURL(resourceType, system, value)
	return fhir.Reference{Reference: &ref, Type: &resourceType}
}
