package appointments

import (
	"strings"
)

// OtherTreatment is the form option that switches to manual entry.
const OtherTreatment = "Otro"

// PresetTreatments is the closed list offered by the admin form.
var PresetTreatments = []string{
	"Limpieza General",
	"Revisión General",
	"Blanqueamiento",
	"Ortodoncia",
	"Endodoncia",
	"Extracción",
	"Empaste",
	"Implante Dental",
	"Periodoncia",
	"Urgencia",
}

// Treatment is either one of PresetTreatments or a custom label.
// It only becomes a plain string at the storage boundary.
type Treatment struct {
	preset string
	custom string
}

// PresetTreatment returns the preset with the given label.
func PresetTreatment(label string) (Treatment, error) {
	for _, p := range PresetTreatments {
		if p == label {
			return Treatment{preset: p}, nil
		}
	}
	return Treatment{}, ErrUnknownTreatment
}

// CustomTreatment returns a manual label; blank text is rejected.
func CustomTreatment(text string) (Treatment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Treatment{}, ErrCustomTreatmentRequired
	}
	return Treatment{custom: text}, nil
}

// ResolveTreatment interprets the form pair: a preset label, or OtherTreatment
// together with the manual text.
func ResolveTreatment(choice, custom string) (Treatment, error) {
	choice = strings.TrimSpace(choice)
	switch choice {
	case "":
		return Treatment{}, ErrTreatmentRequired
	case OtherTreatment:
		return CustomTreatment(custom)
	default:
		return PresetTreatment(choice)
	}
}

// ParseTreatment reads a stored label back into its tagged form. Stored data
// is trusted, so any label outside the preset list is custom.
func ParseTreatment(stored string) Treatment {
	if t, err := PresetTreatment(stored); err == nil {
		return t
	}
	return Treatment{custom: stored}
}

// IsPreset reports whether t is one of the presets.
func (t Treatment) IsPreset() bool { return t.preset != "" }

// IsZero reports whether t was never set.
func (t Treatment) IsZero() bool { return t.preset == "" && t.custom == "" }

// String collapses the value for storage and display.
func (t Treatment) String() string {
	if t.preset != "" {
		return t.preset
	}
	return t.custom
}
