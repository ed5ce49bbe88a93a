package face

import (
	"fmt"
	"strings"
)

// EulerAngle is a head orientation in degrees
type EulerAngle struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Bearing is a head pose the user is asked to assume
type Bearing int

const (
	Straight Bearing = iota
	Up
	RightUp
	Right
	RightDown
	Down
	LeftDown
	Left
	LeftUp
)

var bearingNames = [...]string{
	Straight:  "straight",
	Up:        "up",
	RightUp:   "rightUp",
	Right:     "right",
	RightDown: "rightDown",
	Down:      "down",
	LeftDown:  "leftDown",
	Left:      "left",
	LeftUp:    "leftUp",
}

// AllBearings lists every bearing in declaration order
func AllBearings() []Bearing {
	return []Bearing{Straight, Up, RightUp, Right, RightDown, Down, LeftDown, Left, LeftUp}
}

func (b Bearing) String() string {
	if b < 0 || int(b) >= len(bearingNames) {
		return fmt.Sprintf("Bearing(%d)", int(b))
	}
	return bearingNames[b]
}

// IsUp reports whether the bearing includes an upward tilt
func (b Bearing) IsUp() bool {
	return b == Up || b == LeftUp || b == RightUp
}

// IsDown reports whether the bearing includes a downward tilt
func (b Bearing) IsDown() bool {
	return b == Down || b == LeftDown || b == RightDown
}

// IsLeft reports whether the bearing includes a turn to the left
func (b Bearing) IsLeft() bool {
	return b == Left || b == LeftDown || b == LeftUp
}

// IsRight reports whether the bearing includes a turn to the right
func (b Bearing) IsRight() bool {
	return b == Right || b == RightDown || b == RightUp
}

// ParseBearing converts a name such as "leftUp" or "left_up" to a Bearing.
// Matching is case-insensitive.
func ParseBearing(s string) (Bearing, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	for i, name := range bearingNames {
		if strings.ToLower(name) == norm {
			return Bearing(i), nil
		}
	}
	return Straight, fmt.Errorf("face: unknown bearing %q", s)
}

// ParseBearings parses a comma separated list of bearing names
func ParseBearings(s string) ([]Bearing, error) {
	var out []Bearing
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b, err := ParseBearing(part)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// MarshalText implements encoding.TextMarshaler
func (b Bearing) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (b *Bearing) UnmarshalText(text []byte) error {
	v, err := ParseBearing(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
