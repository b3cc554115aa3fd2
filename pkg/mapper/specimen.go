package mapper

import (
	"strings"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
	"github.com/synaptica-ai/patho-fhir/pkg/terminology"
)

// MapSpecimen maps a specimen record and its container hierarchy. The root
// container is the specimen itself and blank cuts carry no tissue, so neither
// becomes a container component.
func MapSpecimen(env *Env, rec *pathology.Specimen) (Resource, error) {
	keys := rec.Keys()
	id, err := env.identify(keys, identifier.Specimen, rec.Label)
	if err != nil {
		return Resource{}, err
	}
	subject, err := env.ref(keys, identifier.Patient)
	if err != nil {
		return Resource{}, err
	}
	order, err := env.ref(keys, identifier.ServiceRequest)
	if err != nil {
		return Resource{}, err
	}
	containers, err := env.containers(rec)
	if err != nil {
		return Resource{}, err
	}

	specimen := fhir.Specimen{
		Identifier: []fhir.Identifier{id},
		Status:     ptr(fhir.SpecimenStatusAvailable),
		Subject:    &subject,
		Request:    []fhir.Reference{order},
		Container:  containers,
	}

	if material := strings.TrimSpace(rec.MaterialName); material != "" {
		specimen.Type = &fhir.CodeableConcept{
			Coding: env.codings(terminology.SpecimenType, "specimen material", keys.RecordID, pathology.SplitValues(material)),
			Text:   ptr(material),
		}
	}

	collection := fhir.SpecimenCollection{CollectedDateTime: dateTime(rec.CollectionTime())}
	if method := strings.TrimSpace(rec.ExtractionMethod); method != "" {
		collection.Method = &fhir.CodeableConcept{
			Coding: env.codings(terminology.ExtractionMethod, "extraction method", keys.RecordID, []string{method}),
			Text:   ptr(method),
		}
	}
	if collection.CollectedDateTime != nil || collection.Method != nil {
		specimen.Collection = &collection
	}

	return Resource{Kind: identifier.Specimen, Identifier: id, Body: specimen}, nil
}

func (e *Env) containers(rec *pathology.Specimen) ([]fhir.SpecimenContainer, error) {
	all, err := rec.Containers()
	if err != nil {
		return nil, err
	}
	root := rec.RootIndex()

	var out []fhir.SpecimenContainer
	for _, c := range all {
		if c.Index == root {
			continue
		}
		category, ok := pathology.ParseContainerCategory(c.TypeCode)
		if !ok || category == pathology.ContainerRoot {
			return nil, &pathology.UnsupportedContainerTypeError{RecordID: rec.Label, Index: c.Index, Code: c.TypeCode}
		}
		if category == pathology.ContainerBlankCut {
			logger.Log.WithFields(map[string]interface{}{
				"record_id": rec.Label,
				"container": c.Label,
				"index":     c.Index,
			}).Info("Skipping blank cut container")
			continue
		}

		container := fhir.SpecimenContainer{
			Type: &fhir.CodeableConcept{
				Coding: e.codings(terminology.ContainerType, "container type", rec.Label, []string{c.TypeCode}),
				Text:   ptr(category.String()),
			},
		}
		if c.GUID != "" {
			container.Identifier = []fhir.Identifier{identifier.NewIdentifier(e.Systems.SpecimenContainer, c.GUID)}
		}
		if c.Label != "" {
			container.Description = ptr(c.Label)
		}
		out = append(out, container)
	}
	return out, nil
}
