package pathology

import "strings"

type ContainerCategory int

const (
	ContainerIntra ContainerCategory = iota + 1
	ContainerSlide
	ContainerRoot
	ContainerBlankCut
)

var containerCategories = map[string]ContainerCategory{
	"1": ContainerIntra,
	"2": ContainerSlide,
	"3": ContainerRoot,
	"4": ContainerBlankCut,
}

// ParseContainerCategory maps a local container-type code to its category.
func ParseContainerCategory(code string) (ContainerCategory, bool) {
	category, ok := containerCategories[strings.TrimSpace(code)]
	return category, ok
}

func (c ContainerCategory) String() string {
	switch c {
	case ContainerIntra:
		return "intra-container"
	case ContainerSlide:
		return "microscope-slide"
	case ContainerRoot:
		return "root"
	case ContainerBlankCut:
		return "blank-cut"
	default:
		return "unknown"
	}
}
