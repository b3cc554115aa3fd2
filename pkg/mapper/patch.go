package mapper

import (
	"fmt"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
)

// AmendReport turns a mapped diagnostic report into a FHIRPath patch that
// replaces its status and appends its result references, leaving results of
// earlier revisions in place.
func AmendReport(report Resource) (Resource, error) {
	dr, ok := report.Body.(fhir.DiagnosticReport)
	if report.Kind != identifier.DiagnosticReport || !ok {
		return Resource{}, fmt.Errorf("cannot amend %s resource", report.Kind)
	}

	params := fhir.Parameters{
		Parameter: []fhir.ParametersParameter{
			operation(
				codePart("type", "replace"),
				stringPart("path", "DiagnosticReport.status"),
				codePart("value", string(report.Status)),
			),
		},
	}
	for _, result := range dr.Result {
		params.Parameter = append(params.Parameter, operation(
			codePart("type", "add"),
			stringPart("path", "DiagnosticReport"),
			stringPart("name", "result"),
			fhir.ParametersParameter{
				Name: "value",
				Part: []fhir.ParametersParameter{stringPart("reference", deref(result.Reference))},
			},
		))
	}

	return Resource{Kind: report.Kind, Identifier: report.Identifier, Status: report.Status, Body: params}, nil
}

func operation(parts ...fhir.ParametersParameter) fhir.ParametersParameter {
	return fhir.ParametersParameter{Name: "operation", Part: parts}
}

func codePart(name, value string) fhir.ParametersParameter {
	return fhir.ParametersParameter{Name: name, ValueCode: &value}
}

func stringPart(name, value string) fhir.ParametersParameter {
	return fhir.ParametersParameter{Name: name, ValueString: &value}
}
