// math/point_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"encoding/json"
	"testing"
)

func TestPoint2NMJSON(t *testing.T) {
	var p Point2NM
	if err := json.Unmarshal([]byte(`{ "x": 3, "y": -4.5 }`), &p); err != nil {
		t.Fatalf("unmarshal object form: %v", err)
	}
	if p[0] != 3 || p[1] != -4.5 {
		t.Errorf("object form gave %v", p)
	}

	if err := json.Unmarshal([]byte(`[ 1, 2 ]`), &p); err != nil {
		t.Fatalf("unmarshal array form: %v", err)
	}
	if p[0] != 1 || p[1] != 2 {
		t.Errorf("array form gave %v", p)
	}

	b, err := json.Marshal(Point2NM{3, -4.5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"x":3,"y":-4.5}` {
		t.Errorf("marshal gave %s", b)
	}
}

func TestOffset2NM(t *testing.T) {
	for _, c := range []struct {
		p    Point2NM
		hdg  float32
		dist float32
		want Point2NM
	}{
		{p: Point2NM{0, 0}, hdg: 0, dist: 2, want: Point2NM{0, 2}},
		{p: Point2NM{0, 0}, hdg: 90, dist: 1, want: Point2NM{1, 0}},
		{p: Point2NM{0, 0}, hdg: 180, dist: 3, want: Point2NM{0, -3}},
		{p: Point2NM{1, 1}, hdg: 270, dist: 1, want: Point2NM{0, 1}},
	} {
		got := Offset2NM(c.p, c.hdg, c.dist)
		if Abs(got[0]-c.want[0]) > 1e-5 || Abs(got[1]-c.want[1]) > 1e-5 {
			t.Errorf("Offset2NM(%v, %.0f, %.0f) = %v, expected %v", c.p, c.hdg, c.dist, got, c.want)
		}
	}

	// Heading from the origin back to an offset point reverses the offset
	// heading.
	p := Offset2NM(Point2NM{0, 0}, 45, 10)
	if h := Heading2NM(p, Point2NM{0, 0}); Abs(h-225) > 0.1 {
		t.Errorf("return heading %f, expected 225", h)
	}
}
