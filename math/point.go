// math/point.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"encoding/json"
	"fmt"
)

// Point2NM is a planar position in nautical mile coordinates; +x is east
// and +y is north. The origin is wherever the scenario puts it, generally
// the runway threshold.
type Point2NM [2]float32

func (p Point2NM) X() float32 { return p[0] }
func (p Point2NM) Y() float32 { return p[1] }

func (p Point2NM) IsZero() bool {
	return p[0] == 0 && p[1] == 0
}

func (p Point2NM) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p[0], p[1])
}

// Point2NMs are stored as {"x", "y"} objects in JSON.
func (p Point2NM) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X float32 `json:"x"`
		Y float32 `json:"y"`
	}{X: p[0], Y: p[1]})
}

func (p *Point2NM) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		// Arrays of two floats are also accepted.
		var pt [2]float32
		err := json.Unmarshal(b, &pt)
		if err == nil {
			*p = pt
		}
		return err
	}
	var xy struct {
		X float32 `json:"x"`
		Y float32 `json:"y"`
	}
	if err := json.Unmarshal(b, &xy); err != nil {
		return err
	}
	*p = Point2NM{xy.X, xy.Y}
	return nil
}

// CheckJSON accepts either an {"x", "y"} object or a two-element array as
// raw unmarshaled JSON for a Point2NM.
func (p Point2NM) CheckJSON(json interface{}) bool {
	if m, ok := json.(map[string]interface{}); ok {
		_, xok := m["x"].(float64)
		_, yok := m["y"].(float64)
		return xok && yok
	}
	a, ok := json.([]interface{})
	return ok && len(a) == 2
}

func Add2NM(a Point2NM, b Point2NM) Point2NM {
	return Point2NM(Add2f(a, b))
}

func Sub2NM(a Point2NM, b Point2NM) Point2NM {
	return Point2NM(Sub2f(a, b))
}

func Mid2NM(a Point2NM, b Point2NM) Point2NM {
	return Point2NM(Mid2f(a, b))
}

// Distance2NM returns the distance in nautical miles between two points.
func Distance2NM(a Point2NM, b Point2NM) float32 {
	return Distance2f(a, b)
}

// Heading2NM returns the compass heading from one point toward another.
func Heading2NM(from Point2NM, to Point2NM) float32 {
	return Heading2f(from, to)
}

// Offset2NM returns the point at distance dist along the vector with
// heading hdg from the given point.
func Offset2NM(p Point2NM, hdg float32, dist float32) Point2NM {
	v := Scale2f(HeadingVector(hdg), dist)
	return Point2NM(Add2f([2]float32(p), v))
}
