package mapper

import (
	"strings"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
)

// MapDiagnosticReport maps the report resource. Its results reference every
// grouper the same report yields, computed from the record rather than from
// the grouper mappers' output.
func MapDiagnosticReport(env *Env, in *ReportInput) ([]Resource, error) {
	id, err := env.identify(in.Keys, identifier.DiagnosticReport)
	if err != nil {
		return nil, err
	}
	subject, encounter, err := env.patientContext(in.Keys)
	if err != nil {
		return nil, err
	}
	order, err := env.ref(in.Keys, identifier.ServiceRequest)
	if err != nil {
		return nil, err
	}
	specimens, err := env.specimenRefs(in.Keys, in.Report.SpecimenIDs())
	if err != nil {
		return nil, err
	}

	var results []fhir.Reference
	for _, section := range identifier.Sections {
		if sectionText(in.Report, section) == "" {
			continue
		}
		ref, err := env.ref(in.Keys, section.Grouper(), in.Revision.Token())
		if err != nil {
			return nil, err
		}
		results = append(results, ref)
	}

	category := loinc("LP7839-6", "Pathology")
	category.Coding = append(category.Coding, fhir.Coding{
		System:  ptr(diagnosticServiceSystem),
		Code:    ptr("PAT"),
		Display: ptr("Pathology (gross & histopath, not surgical)"),
	})

	dr := fhir.DiagnosticReport{
		Identifier:        []fhir.Identifier{id},
		BasedOn:           []fhir.Reference{order},
		Status:            in.Status.DiagnosticReport(),
		Category:          []fhir.CodeableConcept{category},
		Code:              loinc("60568-3", "Pathology Synoptic report"),
		Subject:           &subject,
		Encounter:         &encounter,
		EffectiveDateTime: dateTime(in.Report.CollectionTime()),
		Issued:            dateTime(in.Report.CreationTime()),
		Specimen:          specimens,
		Result:            results,
	}
	if conclusion := strings.TrimSpace(in.Report.DiagnosticConclusion); conclusion != "" {
		dr.Conclusion = &conclusion
	}

	return []Resource{{Kind: identifier.DiagnosticReport, Identifier: id, Status: in.Status, Body: dr}}, nil
}
