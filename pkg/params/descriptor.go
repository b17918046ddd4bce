// Package params enumerates the leaderboard query parameter space.
//
// A leaderboard view is identified by three categorical integers: the display
// type, the control type and the personal-best type. The full cross-product is
// small and fixed, so every run fetches all of it.
package params

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Parameter ranges (inclusive).
const (
	MinDisplayType = 1
	MaxDisplayType = 20

	MinControlType = 0
	MaxControlType = 3

	MinPBType = 1
	MaxPBType = 3
)

// Count is the number of descriptors in the parameter space.
const Count = (MaxDisplayType - MinDisplayType + 1) *
	(MaxControlType - MinControlType + 1) *
	(MaxPBType - MinPBType + 1)

// Descriptor identifies one leaderboard view. It doubles as the request
// payload and as the aggregation key.
type Descriptor struct {
	DisplayType int `json:"display_type"`
	ControlType int `json:"control_type"`
	PBType      int `json:"pb_type"`
}

// Key returns the archive key for the descriptor.
// Format: {display_type}_{control_type}_{pb_type}
//
// Example:
//
//	Descriptor{DisplayType: 3, ControlType: 0, PBType: 2}.Key() == "3_0_2"
func (d Descriptor) Key() string {
	return fmt.Sprintf("%d_%d_%d", d.DisplayType, d.ControlType, d.PBType)
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return d.Key()
}

// Valid reports whether every field lies inside its range.
func (d Descriptor) Valid() bool {
	return d.DisplayType >= MinDisplayType && d.DisplayType <= MaxDisplayType &&
		d.ControlType >= MinControlType && d.ControlType <= MaxControlType &&
		d.PBType >= MinPBType && d.PBType <= MaxPBType
}

// ParseKey is the inverse of Descriptor.Key.
func ParseKey(key string) (Descriptor, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return Descriptor{}, fmt.Errorf("parse descriptor key %q: want {display}_{control}_{pb}", key)
	}

	var fields [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return Descriptor{}, fmt.Errorf("parse descriptor key %q: %w", key, err)
		}
		fields[i] = v
	}

	d := Descriptor{DisplayType: fields[0], ControlType: fields[1], PBType: fields[2]}
	if !d.Valid() {
		return Descriptor{}, fmt.Errorf("parse descriptor key %q: out of range", key)
	}
	return d, nil
}

// All yields every descriptor exactly once, ordered display type, then
// control type, then pb type. The sequence is lazy and can be ranged over
// any number of times.
func All() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for dt := MinDisplayType; dt <= MaxDisplayType; dt++ {
			for ct := MinControlType; ct <= MaxControlType; ct++ {
				for pt := MinPBType; pt <= MaxPBType; pt++ {
					if !yield(Descriptor{DisplayType: dt, ControlType: ct, PBType: pt}) {
						return
					}
				}
			}
		}
	}
}

// List collects All into a slice.
func List() []Descriptor {
	out := make([]Descriptor, 0, Count)
	for d := range All() {
		out = append(out, d)
	}
	return out
}
