// Package mach identifies the hardware family of the monitored chip.
// Families with divergent register layouts get one enumerated tag,
// decided once at startup and threaded through configuration;
// per-family behavior dispatches on the tag.
package mach

// Family is the hardware family tag.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyPXA            // Intel XScale PXA25x/27x
	FamilyMSM            // Qualcomm MSM7xxx
)

func (f Family) String() string {
	switch f {
	case FamilyPXA:
		return "PXA"
	case FamilyMSM:
		return "MSM"
	}
	return "unknown"
}

// ByName maps a family name to its tag. Used by configuration overrides.
func ByName(name string) (Family, bool) {
	switch name {
	case "pxa", "PXA":
		return FamilyPXA, true
	case "msm", "MSM":
		return FamilyMSM, true
	case "", "unknown", "generic":
		return FamilyUnknown, true
	}
	return FamilyUnknown, false
}

// Detect decides the family from the CP15 main ID register: XScale
// cores report implementer 'i' and core generation 1 or 2. Qualcomm
// cores report implementer 'Q'.
func Detect(mainID uint32) Family {
	switch mainID >> 24 {
	case 'i':
		gen := (mainID >> 13) & 7
		if gen == 1 || gen == 2 {
			return FamilyPXA
		}
	case 'Q':
		return FamilyMSM
	}
	return FamilyUnknown
}
