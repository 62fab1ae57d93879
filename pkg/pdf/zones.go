package pdf

import (
	"encoding/json"
	"fmt"
)

// DefaultZoneID is the zone used when a signer has no zone of their own.
const DefaultZoneID = "sig_stagiaire"

// Zone is a rectangle on one page where a signature mark is drawn.
// X, Y, W and H are fractions of the page size with a top-left origin.
type Zone struct {
	ID    string  `json:"id"`
	Page  int     `json:"page"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Label string  `json:"label,omitempty"`
}

type rawZone struct {
	ID    any      `json:"id"`
	Page  *float64 `json:"page"`
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	W     *float64 `json:"w"`
	H     *float64 `json:"h"`
	Label string   `json:"label"`
}

// ParseZones decodes a list of zones from document or template metadata.
// Entries without a string id are dropped; missing fields take defaults.
func ParseZones(raw json.RawMessage) []Zone {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	zones := make([]Zone, 0, len(items))
	for _, item := range items {
		var rz rawZone
		if err := json.Unmarshal(item, &rz); err != nil {
			continue
		}
		id, ok := rz.ID.(string)
		if !ok || id == "" {
			continue
		}
		zones = append(zones, Zone{
			ID:    id,
			Page:  int(orDefault(rz.Page, 1)),
			X:     orDefault(rz.X, 0),
			Y:     orDefault(rz.Y, 0),
			W:     orDefault(rz.W, 0.15),
			H:     orDefault(rz.H, 0.05),
			Label: rz.Label,
		})
	}
	return zones
}

// ZonesFromMetadata reads the sign_zones key of a metadata object.
func ZonesFromMetadata(metadata []byte) []Zone {
	if len(metadata) == 0 {
		return nil
	}
	var md struct {
		SignZones json.RawMessage `json:"sign_zones"`
	}
	if err := json.Unmarshal(metadata, &md); err != nil {
		return nil
	}
	return ParseZones(md.SignZones)
}

// FindZone returns the zone with the given id.
func FindZone(zones []Zone, id string) (Zone, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// ZoneIDForSignatory maps a signatory to its zone id. An explicit role wins;
// otherwise the first signatory is the trainee and later ones are numbered.
func ZoneIDForSignatory(role string, orderIndex int) string {
	if role != "" {
		return "sig_" + role
	}
	if orderIndex == 0 {
		return DefaultZoneID
	}
	return fmt.Sprintf("sig_signataire_%d", orderIndex+1)
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
