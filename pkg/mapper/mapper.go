// Package mapper turns validated pathology records into FHIR resources. Every
// mapper is a pure function of its input record and the shared Env; mappers
// never depend on each other's output.
package mapper

import (
	"time"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/observability/metrics"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
	"github.com/synaptica-ai/patho-fhir/pkg/revision"
	"github.com/synaptica-ai/patho-fhir/pkg/terminology"
)

const (
	loincSystem               = "http://loinc.org"
	observationCategorySystem = "http://terminology.hl7.org/CodeSystem/observation-category"
	diagnosticServiceSystem   = "http://terminology.hl7.org/CodeSystem/v2-0074"
	dateTimeLayout            = "2006-01-02T15:04:05.000Z07:00"
)

// Env carries the read-only collaborators shared by all mappers.
type Env struct {
	Systems   identifier.Systems
	Registry  *terminology.Registry
	Segmenter Segmenter
}

func NewEnv(systems identifier.Systems, registry *terminology.Registry) *Env {
	return &Env{Systems: systems, Registry: registry, Segmenter: WordSegmenter{}}
}

// Resource is one mapped FHIR resource with the identifier it is upserted by.
type Resource struct {
	Kind       identifier.Kind
	Identifier fhir.Identifier
	// Status is empty for resources that carry no revision status.
	Status revision.Status
	Body   interface{}
}

func (r Resource) ResourceType() string {
	return r.Kind.ResourceType()
}

func (r Resource) ConditionalURL() string {
	return identifier.ConditionalURL(r.ResourceType(), deref(r.Identifier.System), deref(r.Identifier.Value))
}

// ReportInput bundles a report with the values derived from it once before
// mapping.
type ReportInput struct {
	Report   *pathology.Report
	Keys     pathology.BusinessKeys
	Revision revision.Revision
	Status   revision.Status
}

// ReportMapper maps one resource kind out of a report. An empty result means
// the resource is absent for this report.
type ReportMapper struct {
	Kind identifier.Kind
	Map  func(env *Env, in *ReportInput) ([]Resource, error)
}

// ReportMappers lists the report mappers in bundle order.
func ReportMappers() []ReportMapper {
	return []ReportMapper{
		{Kind: identifier.ServiceRequest, Map: MapServiceRequest},
		{Kind: identifier.MacroscopicGrouper, Map: SectionMapper(identifier.Macroscopic)},
		{Kind: identifier.MicroscopicGrouper, Map: SectionMapper(identifier.Microscopic)},
		{Kind: identifier.DiagnosticConclusionGrouper, Map: SectionMapper(identifier.DiagnosticConclusion)},
		{Kind: identifier.DiagnosticReport, Map: MapDiagnosticReport},
	}
}

func (e *Env) ref(keys pathology.BusinessKeys, kind identifier.Kind, discriminators ...string) (fhir.Reference, error) {
	value, err := identifier.Build(keys, kind, discriminators...)
	if err != nil {
		return fhir.Reference{}, err
	}
	return identifier.NewReference(kind.ResourceType(), e.Systems.For(kind), value), nil
}

func (e *Env) identify(keys pathology.BusinessKeys, kind identifier.Kind, discriminators ...string) (fhir.Identifier, error) {
	value, err := identifier.Build(keys, kind, discriminators...)
	if err != nil {
		return fhir.Identifier{}, err
	}
	return identifier.NewIdentifier(e.Systems.For(kind), value), nil
}

// codings resolves each value through a vocabulary table. Values the table
// does not know are logged and left out.
func (e *Env) codings(table terminology.Table, field, recordID string, values []string) []fhir.Coding {
	var out []fhir.Coding
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		entry, ok := e.Registry.Resolve(table, value)
		if !ok {
			metrics.ObserveUnresolvedCode(string(table))
			logger.Log.WithFields(map[string]interface{}{
				"record_id": recordID,
				"table":     table,
				"field":     field,
				"value":     value,
			}).Warn("No mapping found, code omitted")
			continue
		}
		if _, dup := seen[entry.Code]; dup {
			continue
		}
		seen[entry.Code] = struct{}{}
		out = append(out, fhir.Coding{
			System:  ptr(terminology.SNOMEDSystem),
			Code:    ptr(entry.Code),
			Display: ptr(entry.Display),
		})
	}
	return out
}

func loinc(code, display string) fhir.CodeableConcept {
	return fhir.CodeableConcept{Coding: []fhir.Coding{{
		System:  ptr(loincSystem),
		Code:    ptr(code),
		Display: ptr(display),
	}}}
}

func dateTime(t time.Time, ok bool) *string {
	if !ok {
		return nil
	}
	return ptr(t.UTC().Format(dateTimeLayout))
}

func ptr[T any](v T) *T {
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
