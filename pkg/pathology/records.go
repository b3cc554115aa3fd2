package pathology

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BusinessKeys are the upstream identifiers every derived resource
// identifier is built from.
type BusinessKeys struct {
	RecordID      string
	OrderNumber   string
	CaseNumber    string
	PatientNumber string
}

// Validate reports the first missing business key.
func (k BusinessKeys) Validate() error {
	switch {
	case strings.TrimSpace(k.OrderNumber) == "":
		return &InvalidInputError{RecordID: k.RecordID, Field: "order number", Reason: "is empty"}
	case strings.TrimSpace(k.CaseNumber) == "":
		return &InvalidInputError{RecordID: k.RecordID, Field: "case number", Reason: "is empty"}
	case strings.TrimSpace(k.PatientNumber) == "":
		return &InvalidInputError{RecordID: k.RecordID, Field: "patient number", Reason: "is empty"}
	}
	return nil
}

// Report is one revision of a pathology report as exported upstream.
type Report struct {
	ID                   string `json:"Pathologie_Befund_Id"`
	OrderNumber          string `json:"Auftragsnummer"`
	CaseNumber           string `json:"Fallnummer"`
	PatientNumber        string `json:"Patientennummer"`
	RevisionType         string `json:"Befundtyp"`
	Macroscopic          string `json:"Makroskopischer_Befund"`
	Microscopic          string `json:"Mikroskopischer_Befund"`
	DiagnosticConclusion string `json:"Diagnose_Conclusion"`
	SpecimenName         string `json:"Probename"`
	SpecimenID           string `json:"Probe_ID"`
	RequestingDepartment string `json:"Auftraggeber_FAB_Code"`
	// Epoch milliseconds, zero when unknown.
	CollectedAt int64 `json:"Probeentnahmedatum"`
	CreatedAt   int64 `json:"Befund_Erstellungsdatum"`
}

func (r *Report) Keys() BusinessKeys {
	id := r.ID
	if id == "" {
		id = r.OrderNumber
	}
	return BusinessKeys{
		RecordID:      id,
		OrderNumber:   r.OrderNumber,
		CaseNumber:    r.CaseNumber,
		PatientNumber: r.PatientNumber,
	}
}

func (r *Report) Validate() error {
	return r.Keys().Validate()
}

// SpecimenIDs splits the comma-separated specimen id field.
func (r *Report) SpecimenIDs() []string {
	return SplitValues(r.SpecimenID)
}

func (r *Report) CollectionTime() (time.Time, bool) {
	return epochMillis(r.CollectedAt)
}

func (r *Report) CreationTime() (time.Time, bool) {
	return epochMillis(r.CreatedAt)
}

// Specimen is the container hierarchy of one physical specimen. The container
// fields are parallel comma-separated lists; the root container has an empty
// parent entry.
type Specimen struct {
	Label            string `json:"Probe_ID"`
	OrderNumber      string `json:"Auftragsnummer"`
	CaseNumber       string `json:"Fallnummer"`
	PatientNumber    string `json:"Patientennummer"`
	MaterialName     string `json:"Probename"`
	ExtractionMethod string `json:"Entnahmemethode"`
	CollectedAt      int64  `json:"Probeentnahmedatum"`
	ContainerLabels  string `json:"Container_Labels"`
	ContainerGUIDs   string `json:"Container_GUIDs"`
	ContainerTypes   string `json:"Container_Types"`
	ContainerParents string `json:"Container_Parents"`
}

type Container struct {
	Index    int
	Label    string
	GUID     string
	TypeCode string
	// Parent is -1 for the root container.
	Parent int
}

func (s *Specimen) Keys() BusinessKeys {
	return BusinessKeys{
		RecordID:      s.Label,
		OrderNumber:   s.OrderNumber,
		CaseNumber:    s.CaseNumber,
		PatientNumber: s.PatientNumber,
	}
}

func (s *Specimen) CollectionTime() (time.Time, bool) {
	return epochMillis(s.CollectedAt)
}

// RootIndex returns the index of the single root container, or -1 when there
// is none or more than one.
func (s *Specimen) RootIndex() int {
	root := -1
	for i, code := range splitList(s.ContainerTypes) {
		if category, ok := ParseContainerCategory(code); ok && category == ContainerRoot {
			if root >= 0 {
				return -1
			}
			root = i
		}
	}
	return root
}

// Containers decodes the parallel container lists.
func (s *Specimen) Containers() ([]Container, error) {
	labels := splitList(s.ContainerLabels)
	guids := splitList(s.ContainerGUIDs)
	types := splitList(s.ContainerTypes)
	parents := splitList(s.ContainerParents)
	if s.ContainerParents == "" {
		parents = make([]string, len(labels))
	}

	if len(labels) != len(guids) || len(labels) != len(types) {
		reason := fmt.Sprintf("differ in length (labels %d, guids %d, types %d, parents %d)",
			len(labels), len(guids), len(types), len(parents))
		return nil, &InvalidInputError{RecordID: s.Label, Field: "container lists", Reason: reason}
	}

	root := s.RootIndex()
	if root < 0 {
		return nil, &InvalidInputError{RecordID: s.Label, Field: "root container", Reason: "is missing or ambiguous"}
	}

	// The parent list either holds an empty slot for the root or leaves the
	// root out entirely.
	if len(parents) == len(labels)-1 {
		withRoot := make([]string, 0, len(labels))
		withRoot = append(withRoot, parents[:root]...)
		withRoot = append(withRoot, "")
		parents = append(withRoot, parents[root:]...)
	}
	if len(parents) != len(labels) {
		reason := fmt.Sprintf("differ in length (labels %d, guids %d, types %d, parents %d)",
			len(labels), len(guids), len(types), len(parents))
		return nil, &InvalidInputError{RecordID: s.Label, Field: "container lists", Reason: reason}
	}

	containers := make([]Container, len(labels))
	for i := range labels {
		c := Container{Index: i, Label: labels[i], GUID: guids[i], TypeCode: types[i], Parent: -1}
		if i != root {
			parent, err := strconv.Atoi(parents[i])
			if err != nil || parent < 0 || parent >= len(labels) || parent == i {
				return nil, &InvalidInputError{
					RecordID: s.Label,
					Field:    "container parent",
					Reason:   fmt.Sprintf("'%s' at index %d is not a valid container index", parents[i], i),
				}
			}
			c.Parent = parent
		}
		containers[i] = c
	}
	return containers, nil
}

func (s *Specimen) Validate() error {
	if err := s.Keys().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Label) == "" {
		return &InvalidInputError{RecordID: s.OrderNumber, Field: "specimen label", Reason: "is empty"}
	}
	_, err := s.Containers()
	return err
}

// SplitValues splits a comma-separated multi-value field, dropping blanks.
func SplitValues(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitList keeps positions, including empty ones.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func epochMillis(ms int64) (time.Time, bool) {
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
