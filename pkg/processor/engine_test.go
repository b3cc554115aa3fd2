package processor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/patho-fhir/pkg/bundle"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/mapper"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
	"github.com/synaptica-ai/patho-fhir/pkg/terminology"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	rows := map[terminology.Table][]terminology.Entry{}
	for table, csv := range map[terminology.Table]string{
		terminology.SpecimenType:     "LUPE,Lunge PE,122610009,Specimen from lung obtained by biopsy\n",
		terminology.ExtractionMethod: "STA,Stanze,129300006,Puncture - action\n",
		terminology.ContainerType:    "1,Kassette,434711009,Specimen container\n2,Objekttraeger,433466003,Microscope slide\n",
	} {
		entries, err := terminology.Parse(strings.NewReader(csv))
		require.NoError(t, err)
		rows[table] = entries
	}
	reg, err := terminology.NewRegistry(rows)
	require.NoError(t, err)
	return NewEngine(mapper.NewEnv(identifier.DefaultSystems(), reg), bundle.NewAssembler(""), 4)
}

func sampleReport() *pathology.Report {
	return &pathology.Report{
		ID:            "r-1",
		OrderNumber:   "H/20223/00001",
		CaseNumber:    "5000001",
		PatientNumber: "0000001",
		RevisionType:  "main report",
		Macroscopic:   "dummy2",
		SpecimenID:    "agfag",
		CreatedAt:     1719565355113,
	}
}

func sampleSpecimen() *pathology.Specimen {
	return &pathology.Specimen{
		Label:            "agfag",
		OrderNumber:      "H/20223/00001",
		CaseNumber:       "5000001",
		PatientNumber:    "0000001",
		MaterialName:     "Lunge PE,Haut PE",
		ContainerLabels:  "Probe,Kassette 1,Leerschnitt 1",
		ContainerGUIDs:   "g0,g1,g2",
		ContainerTypes:   "3,1,4",
		ContainerParents: ",0,1",
	}
}

type decodedEntry struct {
	method fhir.HTTPVerb
	url    string
	body   map[string]interface{}
}

func decodeEntries(t *testing.T, b *fhir.Bundle) []decodedEntry {
	t.Helper()
	out := make([]decodedEntry, len(b.Entry))
	for i, e := range b.Entry {
		require.NotNil(t, e.Request)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(e.Resource, &body))
		out[i] = decodedEntry{method: e.Request.Method, url: e.Request.Url, body: body}
	}
	return out
}

func TestMapReportMainRevision(t *testing.T) {
	b, err := testEngine(t).MapReport(context.Background(), sampleReport())
	require.NoError(t, err)

	entries := decodeEntries(t, b)
	require.Len(t, entries, 4)

	assert.Equal(t, "ServiceRequest", entries[0].body["resourceType"])
	assert.Contains(t, entries[1].url, "MACROSCOPIC_GROUPER-MAIN")
	assert.Contains(t, entries[2].url, "FINDING-MACROSCOPIC-MAIN-0")
	assert.Equal(t, "DiagnosticReport", entries[3].body["resourceType"])

	for _, e := range entries {
		assert.Equal(t, fhir.HTTPVerbPUT, e.method)
	}
	for _, e := range entries[1:] {
		assert.Equal(t, "final", e.body["status"])
	}
	assert.Equal(t, fhir.BundleTypeTransaction, b.Type)
}

func TestMapReportCorrectionPatchesReport(t *testing.T) {
	rec := sampleReport()
	rec.RevisionType = "correction 1"

	b, err := testEngine(t).MapReport(context.Background(), rec)
	require.NoError(t, err)

	entries := decodeEntries(t, b)
	require.Len(t, entries, 4)
	for _, e := range entries[:3] {
		assert.Equal(t, fhir.HTTPVerbPUT, e.method)
	}
	for _, e := range entries[1:3] {
		assert.Equal(t, "corrected", e.body["status"])
	}

	patch := entries[3]
	assert.Equal(t, fhir.HTTPVerbPATCH, patch.method)
	assert.Equal(t, "Parameters", patch.body["resourceType"])
	assert.Equal(t,
		"DiagnosticReport?identifier=https://your-local-system/pathology/diagnosticReportId|5000001-H/20223/00001-DIAGNOSTIC_REPORT",
		patch.url)
	raw, err := json.Marshal(patch.body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"valueCode":"corrected"`)
	assert.Contains(t, string(raw), "MACROSCOPIC_GROUPER-CORRECTION1")
}

func TestMapReportUnknownRevisionIsRejected(t *testing.T) {
	rec := sampleReport()
	rec.RevisionType = "unknown-label"

	b, err := testEngine(t).MapReport(context.Background(), rec)
	assert.Nil(t, b)

	var unknown *pathology.UnknownRevisionTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "r-1", unknown.RecordID)
	assert.Equal(t, "unknown-label", unknown.Label)
}

func TestMapReportMissingOrderNumberIsRejected(t *testing.T) {
	rec := sampleReport()
	rec.OrderNumber = ""

	_, err := testEngine(t).MapReport(context.Background(), rec)
	assert.True(t, pathology.IsRejection(err))
	assert.Equal(t, "invalid_input", pathology.RejectionKind(err))
}

func TestMapReportSpecimenReferencePerID(t *testing.T) {
	rec := sampleReport()
	rec.SpecimenID = "s1, s2"

	b, err := testEngine(t).MapReport(context.Background(), rec)
	require.NoError(t, err)

	sr := decodeEntries(t, b)[0].body
	specimens, ok := sr["specimen"].([]interface{})
	require.True(t, ok)
	require.Len(t, specimens, 2)
	assert.Contains(t, specimens[0].(map[string]interface{})["reference"], "SPECIMEN-s1")
	assert.Contains(t, specimens[1].(map[string]interface{})["reference"], "SPECIMEN-s2")
}

func TestMapReportIncludesOnlyPresentSections(t *testing.T) {
	rec := sampleReport()
	rec.Macroscopic = ""
	rec.Microscopic = "dummy1"
	rec.DiagnosticConclusion = "C41.1"

	b, err := testEngine(t).MapReport(context.Background(), rec)
	require.NoError(t, err)

	var groupers int
	for _, e := range decodeEntries(t, b) {
		assert.NotContains(t, e.url, "MACROSCOPIC")
		if strings.Contains(e.url, "_GROUPER-") {
			groupers++
		}
	}
	assert.Equal(t, 2, groupers)
}

func TestMapReportIsIdempotent(t *testing.T) {
	engine := testEngine(t)
	rec := sampleReport()
	rec.Microscopic = "a b c d e f"

	first, err := engine.MapReport(context.Background(), rec)
	require.NoError(t, err)
	second, err := engine.MapReport(context.Background(), rec)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	c, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(c))
}

func TestMapSpecimen(t *testing.T) {
	b, err := testEngine(t).MapSpecimen(context.Background(), sampleSpecimen())
	require.NoError(t, err)

	entries := decodeEntries(t, b)
	require.Len(t, entries, 1)
	assert.Equal(t, fhir.HTTPVerbPUT, entries[0].method)
	assert.Equal(t, "Specimen", entries[0].body["resourceType"])

	containers := entries[0].body["container"].([]interface{})
	assert.Len(t, containers, 1)

	specimenType := entries[0].body["type"].(map[string]interface{})
	assert.Len(t, specimenType["coding"], 1)
}

func TestMapSpecimenInvalidHierarchyIsRejected(t *testing.T) {
	rec := sampleSpecimen()
	rec.ContainerTypes = "1,1,4"

	_, err := testEngine(t).MapSpecimen(context.Background(), rec)
	assert.True(t, pathology.IsRejection(err))
}
