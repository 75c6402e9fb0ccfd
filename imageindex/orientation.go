// Package imageindex scans the shared and local image trees, caches the result and
// picks random images for a category.
package imageindex

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Orientation string

const (
	Horizontal Orientation = "Horizontal"
	Vertical   Orientation = "Vertical"
	Square     Orientation = "Square"

	// Any matches every classified image.
	Any Orientation = ""
)

// OrientationOf classifies pixel dimensions.
func OrientationOf(width, height int) Orientation {
	switch {
	case width > height:
		return Horizontal
	case height > width:
		return Vertical
	default:
		return Square
	}
}

// ParseOrientation accepts the full names as well as the h, v and s shorthands,
// case-insensitively. An empty string is Any.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Any, nil
	case "h", "horizontal":
		return Horizontal, nil
	case "v", "vertical":
		return Vertical, nil
	case "s", "square":
		return Square, nil
	}
	return Any, fmt.Errorf("unknown orientation %q", s)
}

// Satisfies reports whether an image of orientation o can serve a request for want.
// Unclassified images satisfy nothing; Square images also satisfy Horizontal and
// Vertical requests.
func (o Orientation) Satisfies(want Orientation) bool {
	if o == Any {
		return false
	}
	if want == Any || strings.EqualFold(string(o), string(want)) {
		return true
	}
	return strings.EqualFold(string(o), string(Square)) &&
		(strings.EqualFold(string(want), string(Horizontal)) || strings.EqualFold(string(want), string(Vertical)))
}

// MarshalJSON writes unclassified entries as null.
func (o Orientation) MarshalJSON() ([]byte, error) {
	if o == Any {
		return []byte("null"), nil
	}
	return json.Marshal(string(o))
}

func (o *Orientation) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Any
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Orientation(s)
	return nil
}
