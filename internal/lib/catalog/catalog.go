// Package catalog holds the static advisory catalog: the messages the
// guidance engine can surface, tagged with the vehicle modes they apply to.
package catalog

import (
	"fmt"
	"sort"
)

// VehicleMode selects which advisories are eligible and how the position
// feed behaves.
type VehicleMode string

const (
	ModeMotor        VehicleMode = "motor"
	ModeMobil        VehicleMode = "mobil"
	ModeSepeda       VehicleMode = "sepeda"
	ModeJalanKaki    VehicleMode = "jalan_kaki"
	ModeAngkutanUmum VehicleMode = "angkutan_umum"
)

// ParseMode validates a mode string from config or the API.
func ParseMode(s string) (VehicleMode, error) {
	switch VehicleMode(s) {
	case ModeMotor, ModeMobil, ModeSepeda, ModeJalanKaki, ModeAngkutanUmum:
		return VehicleMode(s), nil
	}
	return "", fmt.Errorf("unknown vehicle mode %q", s)
}

// Template is one immutable advisory catalog entry.
type Template struct {
	ID       string        `json:"id" koanf:"id"`
	Order    int           `json:"order" koanf:"order"`
	Category string        `json:"category" koanf:"category"`
	Message  string        `json:"message" koanf:"message"`
	CTALabel string        `json:"cta_label,omitempty" koanf:"cta_label"`
	Modes    []VehicleMode `json:"modes" koanf:"modes"`
}

// EligibleFor reports whether the template applies to the given mode.
func (t Template) EligibleFor(mode VehicleMode) bool {
	for _, m := range t.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Catalog is the loaded advisory list. Read-only after startup.
type Catalog struct {
	templates []Template
}

// New builds a catalog from config entries, preserving file order for
// tie-breaking.
func New(templates []Template) *Catalog {
	cp := make([]Template, len(templates))
	copy(cp, templates)
	return &Catalog{templates: cp}
}

// Len returns the total number of templates, across all modes.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// ForMode returns the templates eligible for mode, sorted by Order ascending.
// The sort is stable so templates with equal Order keep catalog order.
func (c *Catalog) ForMode(mode VehicleMode) []Template {
	var eligible []Template
	for _, t := range c.templates {
		if t.EligibleFor(mode) {
			eligible = append(eligible, t)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Order < eligible[j].Order
	})
	return eligible
}

// ByID looks up a template by id.
func (c *Catalog) ByID(id string) (Template, bool) {
	for _, t := range c.templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// allModes tags an advisory as eligible everywhere.
var allModes = []VehicleMode{ModeMotor, ModeMobil, ModeSepeda, ModeJalanKaki, ModeAngkutanUmum}

// Default returns the built-in advisory catalog, used when the config file
// does not supply one.
func Default() *Catalog {
	return New([]Template{
		{
			ID: "jaga-jarak", Order: 1, Category: "safety",
			Message: "Jaga jarak aman dengan kendaraan di depan ya 🙏",
			Modes:   []VehicleMode{ModeMotor, ModeMobil},
		},
		{
			ID: "cek-spion", Order: 2, Category: "safety",
			Message: "Sudah cek spion? Pastikan aman sebelum pindah jalur.",
			Modes:   []VehicleMode{ModeMotor, ModeMobil},
		},
		{
			ID: "istirahat", Order: 3, Category: "fatigue",
			Message:  "Sudah lama di jalan nih. Yuk istirahat sejenak di rest area terdekat ☕",
			CTALabel: "Cari rest area",
			Modes:    allModes,
		},
		{
			ID: "batas-kecepatan", Order: 4, Category: "speed",
			Message: "Perhatikan batas kecepatan di area ini ya.",
			Modes:   []VehicleMode{ModeMotor, ModeMobil},
		},
		{
			ID: "minum-air", Order: 5, Category: "fatigue",
			Message: "Jangan lupa minum air putih biar tetap fokus 💧",
			Modes:   allModes,
		},
		{
			ID: "lampu-sein", Order: 6, Category: "safety",
			Message: "Gunakan lampu sein setiap mau berbelok ya.",
			Modes:   []VehicleMode{ModeMotor, ModeMobil, ModeSepeda},
		},
	})
}

// Arrival is the fixed advisory spoken when the travel simulation reaches the
// route's final point. Not part of the placed catalog.
func Arrival() Template {
	return Template{
		ID: "tiba-tujuan", Category: "arrival",
		Message: "Kamu sudah sampai tujuan. Hati-hati ya, jangan lupa kunci kendaraan 🎉",
		Modes:   allModes,
	}
}
