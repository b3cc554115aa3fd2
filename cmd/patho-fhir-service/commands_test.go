package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useSampleMappings(t *testing.T) {
	t.Setenv("MAPPING_SPECIMEN_TYPE", filepath.Join("..", "..", "mappings", "specimen-type.csv"))
	t.Setenv("MAPPING_EXTRACTION_METHOD", filepath.Join("..", "..", "mappings", "extraction-method.csv"))
	t.Setenv("MAPPING_CONTAINER_TYPE", filepath.Join("..", "..", "mappings", "container-type.csv"))
	t.Setenv("FHIR_SYSTEMS_FILE", filepath.Join("..", "..", "config", "fhir-systems.example.yaml"))
}

func TestMapReportCommand(t *testing.T) {
	useSampleMappings(t)

	file := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"Pathologie_Befund_Id": "r-1",
		"Auftragsnummer": "H/20223/00001",
		"Fallnummer": "5000001",
		"Patientennummer": "0000001",
		"Befundtyp": "Hauptbefund",
		"Mikroskopischer_Befund": "dummy1",
		"Makroskopischer_Befund": "dummy2",
		"Diagnose_Conclusion": "C41.1",
		"Probename": "Magen PE",
		"Probe_ID": "agfag",
		"Auftraggeber_FAB_Code": "KAR",
		"Befund_Erstellungsdatum": 1719565355113
	}`), 0o600))

	var out, errOut bytes.Buffer
	cmd := mapCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"report", "--file", file})
	require.NoError(t, cmd.Execute())

	var bundle map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &bundle))
	assert.Equal(t, "Bundle", bundle["resourceType"])
	// service request, three groupers with one finding each, report
	assert.Len(t, bundle["entry"], 8)
}

func TestMapSpecimenCommandRejects(t *testing.T) {
	useSampleMappings(t)

	file := filepath.Join(t.TempDir(), "specimen.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"Probe_ID":"agfag","Auftragsnummer":"H/20223/00001"}`), 0o600))

	cmd := mapCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"specimen", "-f", file})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "invalid_input")
}

func TestVocabCheckCommand(t *testing.T) {
	useSampleMappings(t)

	var out bytes.Buffer
	cmd := vocabCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "specimen-type")
	assert.Contains(t, out.String(), "container-type")
}
