package rank

import (
	"encoding/json"
	"strings"
)

const Unrated = "Unrated"

// Tiers lists competitive tiers from lowest to highest.
var Tiers = []string{
	Unrated,
	"Iron",
	"Bronze",
	"Silver",
	"Gold",
	"Platinum",
	"Diamond",
	"Ascendant",
	"Immortal",
	"Radiant",
}

// Index returns the position of tier in Tiers, or -1.
func Index(tier string) int {
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

// Canonical maps a raw label such as "gold" or " GOLD " to its tier name.
// Unknown labels map to Unrated.
func Canonical(label string) string {
	label = strings.TrimSpace(label)
	for _, t := range Tiers {
		if strings.EqualFold(t, label) {
			return t
		}
	}
	return Unrated
}

type rankPayload struct {
	Tier *string `json:"tier"`
}

// ExtractTier reads the tier from a rank lookup response body. Absent,
// malformed or unknown payloads yield Unrated.
func ExtractTier(payload []byte) string {
	if len(payload) == 0 {
		return Unrated
	}
	var p rankPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Tier == nil {
		return Unrated
	}
	return Canonical(*p.Tier)
}

// RoleName is the guild role name for tier under the given family prefix.
func RoleName(prefix, tier string) string {
	return prefix + tier
}
