package identifier

// Kind enumerates every resource the engine emits or references.
type Kind int

const (
	Patient Kind = iota
	Encounter
	ServiceRequest
	DiagnosticReport
	MacroscopicGrouper
	MicroscopicGrouper
	DiagnosticConclusionGrouper
	Finding
	Specimen
	Organization
)

var kindTags = map[Kind]string{
	Patient:                     "PATIENT",
	Encounter:                   "ENCOUNTER",
	ServiceRequest:              "SERVICE_REQUEST",
	DiagnosticReport:            "DIAGNOSTIC_REPORT",
	MacroscopicGrouper:          "MACROSCOPIC_GROUPER",
	MicroscopicGrouper:          "MICROSCOPIC_GROUPER",
	DiagnosticConclusionGrouper: "DIAGNOSTIC_CONCLUSION_GROUPER",
	Finding:                     "FINDING",
	Specimen:                    "SPECIMEN",
	Organization:                "ORGANIZATION",
}

// Tag is the kind's token inside identifier values.
func (k Kind) Tag() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "UNKNOWN"
}

func (k Kind) String() string {
	return k.Tag()
}

// ResourceType is the FHIR resource type a kind is emitted as.
func (k Kind) ResourceType() string {
	switch k {
	case Patient:
		return "Patient"
	case Encounter:
		return "Encounter"
	case ServiceRequest:
		return "ServiceRequest"
	case DiagnosticReport:
		return "DiagnosticReport"
	case MacroscopicGrouper, MicroscopicGrouper, DiagnosticConclusionGrouper, Finding:
		return "Observation"
	case Specimen:
		return "Specimen"
	case Organization:
		return "Organization"
	default:
		return ""
	}
}

// Section is one of the three narrative parts of a report.
type Section int

const (
	Macroscopic Section = iota
	Microscopic
	DiagnosticConclusion
)

var Sections = []Section{Macroscopic, Microscopic, DiagnosticConclusion}

func (s Section) Grouper() Kind {
	switch s {
	case Microscopic:
		return MicroscopicGrouper
	case DiagnosticConclusion:
		return DiagnosticConclusionGrouper
	default:
		return MacroscopicGrouper
	}
}

func (s Section) Tag() string {
	switch s {
	case Microscopic:
		return "MICROSCOPIC"
	case DiagnosticConclusion:
		return "DIAGNOSTIC_CONCLUSION"
	default:
		return "MACROSCOPIC"
	}
}
