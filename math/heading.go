// math/heading.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

///////////////////////////////////////////////////////////////////////////
// headings and directions

// Headings are in degrees, measured clockwise from north: 0 is north,
// 90 east, 180 south, 270 west.

// Heading2f returns the heading from the point |from| to the point |to| in
// degrees, on the flat nm-unit grid the simulation runs on.
func Heading2f(from, to [2]float32) float32 {
	v := Sub2f(to, from)
	return VectorHeading(v)
}

// VectorHeading returns the heading that the given vector points along.
// Note that atan2() normally measures w.r.t. the +x axis and angles are
// positive for counter-clockwise. We want to measure w.r.t. +y and to have
// positive angles be clockwise. Happily, swapping the order of values
// passed to atan2()--passing (x,y), gives what we want.
func VectorHeading(v [2]float32) float32 {
	return NormalizeHeading(Degrees(Atan2(v[0], v[1])))
}

// HeadingVector returns the unit vector pointing along the given heading.
func HeadingVector(heading float32) [2]float32 {
	h := Radians(heading)
	return [2]float32{Sin(h), Cos(h)}
}

// HeadingDifference returns the minimum difference between two
// headings. (i.e., the result is always in the range [0,180].)
func HeadingDifference(a float32, b float32) float32 {
	a, b = NormalizeHeading(a), NormalizeHeading(b)
	var d float32
	if a > b {
		d = a - b
	} else {
		d = b - a
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Figure out which way is closest: first find the angle to rotate the
// target heading by so that it's aligned with 180 degrees. This lets us
// not worry about the complexities of the wrap around at 0/360..
func HeadingSignedTurn(cur, target float32) float32 {
	rot := NormalizeHeading(180 - target)
	return 180 - NormalizeHeading(cur+rot) // w.r.t. 180 target
}

// IsHeadingBetween reports whether heading h lies within the arc swept
// clockwise from h1 to h2 (inclusive).
func IsHeadingBetween(h, h1, h2 float32) bool {
	h, h1, h2 = NormalizeHeading(h), NormalizeHeading(h1), NormalizeHeading(h2)
	if h1 <= h2 {
		return h >= h1 && h <= h2
	}
	return h >= h1 || h <= h2
}

// Compass converts a heading expressed in degrees into a string
// corresponding to the closest compass direction.
func Compass(heading float32) string {
	h := NormalizeHeading(heading + 22.5) // now [0,45] is north, etc...
	idx := int(h / 45)
	return [...]string{"North", "Northeast", "East", "Southeast",
		"South", "Southwest", "West", "Northwest"}[idx]
}

// ShortCompass converts a heading expressed in degrees into an abbreviated
// string corresponding to the closest compass direction.
func ShortCompass(heading float32) string {
	h := NormalizeHeading(heading + 22.5) // now [0,45] is north, etc...
	idx := int(h / 45)
	return [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}[idx]
}

// Reduces it to [0,360).
func NormalizeHeading(h float32) float32 {
	if h < 0 {
		return 360 - NormalizeHeading(-h)
	}
	return Mod(h, 360)
}

func OppositeHeading(h float32) float32 {
	return NormalizeHeading(h + 180)
}
