package mapper

import (
	"strconv"
	"strings"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
)

type sectionCode struct {
	code    string
	display string
}

var sectionCodes = map[identifier.Section]sectionCode{
	identifier.Macroscopic:          {"22634-0", "Pathology report gross observation Narrative"},
	identifier.Microscopic:          {"22635-7", "Pathology report microscopic observation Narrative"},
	identifier.DiagnosticConclusion: {"22637-3", "Pathology report final diagnosis Narrative"},
}

func sectionText(report *pathology.Report, section identifier.Section) string {
	switch section {
	case identifier.Microscopic:
		return strings.TrimSpace(report.Microscopic)
	case identifier.DiagnosticConclusion:
		return strings.TrimSpace(report.DiagnosticConclusion)
	default:
		return strings.TrimSpace(report.Macroscopic)
	}
}

// SectionMapper maps one narrative section to a grouper observation followed
// by its findings. An empty section yields nothing.
func SectionMapper(section identifier.Section) func(env *Env, in *ReportInput) ([]Resource, error) {
	return func(env *Env, in *ReportInput) ([]Resource, error) {
		text := sectionText(in.Report, section)
		if text == "" {
			return nil, nil
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

		base := fhir.Observation{
			BasedOn:           []fhir.Reference{order},
			Status:            in.Status.Observation(),
			Category:          []fhir.CodeableConcept{laboratoryCategory()},
			Subject:           &subject,
			Encounter:         &encounter,
			EffectiveDateTime: dateTime(in.Report.CollectionTime()),
			Issued:            dateTime(in.Report.CreationTime()),
		}
		if len(specimens) > 0 {
			base.Specimen = &specimens[0]
		}

		code := sectionCodes[section]
		token := in.Revision.Token()
		findingSystem := env.Systems.FindingSystem(section)

		var findings []Resource
		var members []fhir.Reference
		for i, segment := range env.Segmenter.Segment(text) {
			value, err := identifier.Build(in.Keys, identifier.Finding, section.Tag(), token, strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			id := identifier.NewIdentifier(findingSystem, value)

			finding := base
			finding.Identifier = []fhir.Identifier{id}
			finding.Code = segmentCode(segment, code)
			finding.ValueString = ptr(segment.Value)

			findings = append(findings, Resource{Kind: identifier.Finding, Identifier: id, Status: in.Status, Body: finding})
			members = append(members, identifier.NewReference("Observation", findingSystem, value))
		}

		id, err := env.identify(in.Keys, section.Grouper(), token)
		if err != nil {
			return nil, err
		}
		grouper := base
		grouper.Identifier = []fhir.Identifier{id}
		grouper.Code = loinc(code.code, code.display)
		grouper.ValueString = ptr(text)
		grouper.HasMember = members

		out := make([]Resource, 0, 1+len(findings))
		out = append(out, Resource{Kind: section.Grouper(), Identifier: id, Status: in.Status, Body: grouper})
		return append(out, findings...), nil
	}
}

func segmentCode(segment Segment, fallback sectionCode) fhir.CodeableConcept {
	if segment.Code == "" {
		return loinc(fallback.code, fallback.display)
	}
	system := segment.System
	if system == "" {
		system = loincSystem
	}
	coding := fhir.Coding{System: ptr(system), Code: ptr(segment.Code)}
	if segment.Display != "" {
		coding.Display = ptr(segment.Display)
	}
	return fhir.CodeableConcept{Coding: []fhir.Coding{coding}}
}

func laboratoryCategory() fhir.CodeableConcept {
	return fhir.CodeableConcept{Coding: []fhir.Coding{{
		System:  ptr(observationCategorySystem),
		Code:    ptr("laboratory"),
		Display: ptr("Laboratory"),
	}}}
}
