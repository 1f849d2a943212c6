package model

import "strings"

const (
	EnergyTired     = "tired"
	EnergyNormal    = "normal"
	EnergyMotivated = "motivated"
)

// NormalizeEnergy accepts the English levels and the legacy Portuguese
// spellings. Empty input stays empty.
func NormalizeEnergy(level string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return "", true
	case EnergyTired, "muito_cansado", "cansado":
		return EnergyTired, true
	case EnergyNormal:
		return EnergyNormal, true
	case EnergyMotivated, "motivado":
		return EnergyMotivated, true
	}
	return "", false
}

type Profile struct {
	EnergyLevel string `json:"energyLevel"`
}
