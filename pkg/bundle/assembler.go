package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/mapper"
	"github.com/synaptica-ai/patho-fhir/pkg/revision"
)

const DefaultSource = "#nexus-pathology"

var idNamespace = uuid.MustParse("6f1d6c3e-5b8a-4c59-9a51-2f3e1d0c7b42")

// ID derives a bundle id from the identity of the record it was built from,
// so re-processing a record yields the same bundle.
func ID(parts ...string) string {
	var seed []byte
	for i, p := range parts {
		if i > 0 {
			seed = append(seed, '|')
		}
		seed = append(seed, p...)
	}
	return uuid.NewSHA1(idNamespace, seed).String()
}

type Assembler struct {
	source string
}

func NewAssembler(source string) *Assembler {
	if source == "" {
		source = DefaultSource
	}
	return &Assembler{source: source}
}

// Assemble collects mapper output into one transaction bundle. Groups keep
// their order and empty groups are dropped. Every entry is a conditional
// upsert on its identifier, except that a diagnostic report of an amending
// revision is sent as a patch.
func (a *Assembler) Assemble(id string, rev revision.Revision, groups ...[]mapper.Resource) (*fhir.Bundle, error) {
	b := &fhir.Bundle{
		Id:   &id,
		Meta: &fhir.Meta{Source: &a.source},
		Type: fhir.BundleTypeTransaction,
	}

	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, res := range group {
			method := fhir.HTTPVerbPUT
			if res.Kind == identifier.DiagnosticReport && rev.Amends() {
				patch, err := mapper.AmendReport(res)
				if err != nil {
					return nil, err
				}
				res = patch
				method = fhir.HTTPVerbPATCH
			}

			url := res.ConditionalURL()
			if _, dup := seen[url]; dup {
				return nil, fmt.Errorf("bundle %s: %s emitted twice", id, url)
			}
			seen[url] = struct{}{}

			raw, err := json.Marshal(res.Body)
			if err != nil {
				return nil, fmt.Errorf("marshal %s: %w", url, err)
			}
			b.Entry = append(b.Entry, fhir.BundleEntry{
				Resource: raw,
				Request:  &fhir.BundleEntryRequest{Method: method, Url: url},
			})
		}
	}
	return b, nil
}
