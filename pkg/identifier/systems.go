package identifier

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"
)

const defaultSystemBase = "https://your-local-system/pathology/"

// Systems holds the identifier namespace URL of every resource kind.
type Systems struct {
	Patient                     string `yaml:"patient"`
	Encounter                   string `yaml:"encounter"`
	Organization                string `yaml:"organization"`
	ServiceRequest              string `yaml:"service_request"`
	DiagnosticReport            string `yaml:"diagnostic_report"`
	MacroscopicGrouper          string `yaml:"macroscopic_grouper"`
	MicroscopicGrouper          string `yaml:"microscopic_grouper"`
	DiagnosticConclusionGrouper string `yaml:"diagnostic_conclusion_grouper"`
	MacroscopicFinding          string `yaml:"macroscopic_finding"`
	MicroscopicFinding          string `yaml:"microscopic_finding"`
	DiagnosticConclusionFinding string `yaml:"diagnostic_conclusion_finding"`
	Specimen                    string `yaml:"specimen"`
	SpecimenContainer           string `yaml:"specimen_container"`
}

func DefaultSystems() Systems {
	return Systems{
		Patient:                     defaultSystemBase + "patientId",
		Encounter:                   defaultSystemBase + "encounterId",
		Organization:                defaultSystemBase + "organizationId",
		ServiceRequest:              defaultSystemBase + "serviceRequestId",
		DiagnosticReport:            defaultSystemBase + "diagnosticReportId",
		MacroscopicGrouper:          defaultSystemBase + "pathoMacroGrouperId",
		MicroscopicGrouper:          defaultSystemBase + "pathoMicroGrouperId",
		DiagnosticConclusionGrouper: defaultSystemBase + "pathoDiagnosticConclusionGrouperId",
		MacroscopicFinding:          defaultSystemBase + "pathoFindingMacroId",
		MicroscopicFinding:          defaultSystemBase + "pathoFindingMicroId",
		DiagnosticConclusionFinding: defaultSystemBase + "pathoFindingDiagnosticConclusionId",
		Specimen:                    defaultSystemBase + "specimenId",
		SpecimenContainer:           defaultSystemBase + "specimenContainerId",
	}
}

// LoadSystems overlays a YAML file onto the defaults. An empty path returns
// the defaults; unknown keys are rejected.
func LoadSystems(path string) (Systems, error) {
	systems := DefaultSystems()
	if path == "" {
		return systems, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Systems{}, fmt.Errorf("read identifier systems: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&systems); err != nil {
		return Systems{}, fmt.Errorf("decode identifier systems '%s': %w", path, err)
	}
	if err := systems.Validate(); err != nil {
		return Systems{}, err
	}
	return systems, nil
}

func (s Systems) Validate() error {
	v := reflect.ValueOf(s)
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).String() == "" {
			return fmt.Errorf("identifier system '%s' is empty", v.Type().Field(i).Tag.Get("yaml"))
		}
	}
	return nil
}

// For returns the system of a kind. Findings are namespaced per section, see
// FindingSystem.
func (s Systems) For(kind Kind) string {
	switch kind {
	case Patient:
		return s.Patient
	case Encounter:
		return s.Encounter
	case Organization:
		return s.Organization
	case ServiceRequest:
		return s.ServiceRequest
	case DiagnosticReport:
		return s.DiagnosticReport
	case MacroscopicGrouper:
		return s.MacroscopicGrouper
	case MicroscopicGrouper:
		return s.MicroscopicGrouper
	case DiagnosticConclusionGrouper:
		return s.DiagnosticConclusionGrouper
	case Finding:
		return s.MacroscopicFinding
	case Specimen:
		return s.Specimen
	default:
		return ""
	}
}

func (s Systems) FindingSystem(section Section) string {
	switch section {
	case Microscopic:
		return s.MicroscopicFinding
	case DiagnosticConclusion:
		return s.DiagnosticConclusionFinding
	default:
		return s.MacroscopicFinding
	}
}
