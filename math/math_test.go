// math/math_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(1, 0, 2) != 1 {
		t.Errorf("clamp failed: 1, 0, 2")
	}
	if Clamp(-1, 0, 2) != 0 {
		t.Errorf("clamp failed: -1, 0, 2")
	}
	if Clamp(3, 0, 2) != 2 {
		t.Errorf("clamp failed: 3, 0, 2")
	}
}

func TestAbs(t *testing.T) {
	if Abs(float32(-2.5)) != 2.5 {
		t.Errorf("Abs(-2.5) = %f", Abs(float32(-2.5)))
	}
	if Abs(3) != 3 {
		t.Errorf("Abs(3) = %d", Abs(3))
	}
	if Abs(-4) != 4 {
		t.Errorf("Abs(-4) = %d", Abs(-4))
	}
}

func TestLerp(t *testing.T) {
	if Lerp(0, 0, 10) != 0 {
		t.Errorf("lerp at 0 failed")
	}
	if Lerp(1, 0, 10) != 10 {
		t.Errorf("lerp at 1 failed")
	}
	if Lerp(0.5, 0, 10) != 5 {
		t.Errorf("lerp at 0.5 failed")
	}
}

func TestVectorOps(t *testing.T) {
	a, b := [2]float32{3, 0}, [2]float32{0, 4}

	if s := Add2f(a, b); s != [2]float32{3, 4} {
		t.Errorf("Add2f(%v, %v) = %v", a, b, s)
	}
	if d := Sub2f(a, b); d != [2]float32{3, -4} {
		t.Errorf("Sub2f(%v, %v) = %v", a, b, d)
	}
	if m := Mid2f(a, b); m != [2]float32{1.5, 2} {
		t.Errorf("Mid2f(%v, %v) = %v", a, b, m)
	}
	if d := Distance2f(a, b); d != 5 {
		t.Errorf("Distance2f(%v, %v) = %f, expected 5", a, b, d)
	}
	if l := Length2f([2]float32{3, 4}); l != 5 {
		t.Errorf("Length2f = %f, expected 5", l)
	}
	if n := Normalize2f([2]float32{0, 0}); n != [2]float32{0, 0} {
		t.Errorf("Normalize2f of zero vector = %v", n)
	}
	if n := Normalize2f([2]float32{10, 0}); n != [2]float32{1, 0} {
		t.Errorf("Normalize2f = %v, expected unit x", n)
	}
}
