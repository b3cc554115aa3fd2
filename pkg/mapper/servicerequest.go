package mapper

import (
	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
	"github.com/synaptica-ai/patho-fhir/pkg/terminology"
)

// MapServiceRequest maps the pathology order the report answers.
func MapServiceRequest(env *Env, in *ReportInput) ([]Resource, error) {
	id, err := env.identify(in.Keys, identifier.ServiceRequest)
	if err != nil {
		return nil, err
	}
	subject, encounter, err := env.patientContext(in.Keys)
	if err != nil {
		return nil, err
	}
	specimens, err := env.specimenRefs(in.Keys, in.Report.SpecimenIDs())
	if err != nil {
		return nil, err
	}

	code := loinc("11526-1", "Pathology study")
	sr := fhir.ServiceRequest{
		Identifier: []fhir.Identifier{id},
		Status:     fhir.RequestStatusCompleted,
		Intent:     fhir.RequestIntentOrder,
		Code:       &code,
		Subject:    subject,
		Encounter:  &encounter,
		Specimen:   specimens,
	}
	if dept := in.Report.RequestingDepartment; dept != "" {
		requester := identifier.NewReference("Organization", env.Systems.Organization, dept)
		sr.Requester = &requester
	}
	names := pathology.SplitValues(in.Report.SpecimenName)
	for _, coding := range env.codings(terminology.SpecimenType, "specimen name", in.Keys.RecordID, names) {
		sr.OrderDetail = append(sr.OrderDetail, fhir.CodeableConcept{Coding: []fhir.Coding{coding}})
	}

	return []Resource{{Kind: identifier.ServiceRequest, Identifier: id, Status: in.Status, Body: sr}}, nil
}

func (e *Env) patientContext(keys pathology.BusinessKeys) (fhir.Reference, fhir.Reference, error) {
	subject, err := e.ref(keys, identifier.Patient)
	if err != nil {
		return fhir.Reference{}, fhir.Reference{}, err
	}
	encounter, err := e.ref(keys, identifier.Encounter)
	if err != nil {
		return fhir.Reference{}, fhir.Reference{}, err
	}
	return subject, encounter, nil
}

// specimenRefs emits one reference per distinct specimen id of a
// multi-value field.
func (e *Env) specimenRefs(keys pathology.BusinessKeys, ids []string) ([]fhir.Reference, error) {
	refs := make([]fhir.Reference, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ref, err := e.ref(keys, identifier.Specimen, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
