package goals

import (
	"fmt"
	"strings"
)

// ObjectType identifies a kind of placeable structure.
type ObjectType int

const (
	ObjectHabitat ObjectType = iota
	ObjectFarm
	ObjectPowerPlant
	ObjectWaterPump
	ObjectGreenhouse
	ObjectMine
	ObjectRefinery
	ObjectResearchLab
	ObjectPark
	ObjectHospital
	ObjectStorehouse
	ObjectMonument
)

var objectTypeNames = [...]string{
	ObjectHabitat:     "Habitat",
	ObjectFarm:        "Farm",
	ObjectPowerPlant:  "PowerPlant",
	ObjectWaterPump:   "WaterPump",
	ObjectGreenhouse:  "Greenhouse",
	ObjectMine:        "Mine",
	ObjectRefinery:    "Refinery",
	ObjectResearchLab: "ResearchLab",
	ObjectPark:        "Park",
	ObjectHospital:    "Hospital",
	ObjectStorehouse:  "Storehouse",
	ObjectMonument:    "Monument",
}

// ObjectTypes returns every known object kind in declaration order.
func ObjectTypes() []ObjectType {
	out := make([]ObjectType, len(objectTypeNames))
	for i := range objectTypeNames {
		out[i] = ObjectType(i)
	}
	return out
}

// String returns the canonical name of the kind.
func (o ObjectType) String() string {
	if o.Valid() {
		return objectTypeNames[o]
	}
	return fmt.Sprintf("ObjectType(%d)", int(o))
}

// Valid reports whether o is a known kind.
func (o ObjectType) Valid() bool {
	return o >= 0 && int(o) < len(objectTypeNames)
}

// ParseObjectType resolves a kind name. Matching ignores case, spaces,
// dashes and underscores, so "power_plant" and "PowerPlant" are equal.
func ParseObjectType(name string) (ObjectType, error) {
	want := normalizeKindName(name)
	for i, n := range objectTypeNames {
		if normalizeKindName(n) == want {
			return ObjectType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (o ObjectType) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid object kind %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ObjectType) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectType(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func normalizeKindName(name string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}
