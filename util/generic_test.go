// util/generic_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"maps"
	"slices"
	"testing"
)

func TestSelect(t *testing.T) {
	if Select(true, 1, 2) != 1 {
		t.Errorf("Select true returned second value")
	}
	if Select(false, 1, 2) != 2 {
		t.Errorf("Select false returned first value")
	}
	if Select(true, "a", "b") != "a" {
		t.Errorf("Select true returned second value")
	}
}

func TestMapSlice(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := MapSlice[int, float32](a, func(i int) float32 { return 2 * float32(i) })
	if len(a) != len(b) {
		t.Errorf("lengths mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if float32(2*a[i]) != b[i] {
			t.Errorf("value %d mismatch %f vs %f", i, float32(2*a[i]), b[i])
		}
	}
}

func TestDeleteSliceElement(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	a = DeleteSliceElement(a, 2)
	if !slices.Equal(a, []int{1, 2, 4, 5}) {
		t.Errorf("Slice element delete incorrect")
	}
	a = DeleteSliceElement(a, 3)
	if !slices.Equal(a, []int{1, 2, 4}) {
		t.Errorf("Slice element delete incorrect")
	}
	a = DeleteSliceElement(a, 0)
	if !slices.Equal(a, []int{2, 4}) {
		t.Errorf("Slice element delete incorrect")
	}
	a = DeleteSliceElement(a, 1)
	if !slices.Equal(a, []int{2}) {
		t.Errorf("Slice element delete incorrect")
	}
	a = DeleteSliceElement(a, 0)
	if !slices.Equal(a, nil) {
		t.Errorf("Slice element delete incorrect")
	}
}

func TestFilterSlice(t *testing.T) {
	b := FilterSlice([]int{1, 2, 3, 4, 5}, func(i int) bool { return i%2 == 0 })
	if len(b) != 2 || b[0] != 2 || b[1] != 4 {
		t.Errorf("filter evens failed: %+v", b)
	}

	odd := FilterSlice([]int{1, 2, 3, 4, 5}, func(i int) bool { return i%2 == 1 })
	if len(odd) != 3 || odd[0] != 1 || odd[1] != 3 || odd[2] != 5 {
		t.Errorf("filter odds failed: %+v", b)
	}

	c := FilterSlice([]int{1, 2, 3, 4, 5}, func(i int) bool { return i >= 3 })
	if len(c) != 3 || c[0] != 3 || c[1] != 4 || c[2] != 5 {
		t.Errorf("filter >=3 failed: %+v", c)
	}
}

func TestFilterSliceInPlace(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := FilterSliceInPlace(a, func(i int) bool { return i%2 == 0 })
	if len(b) != 2 || b[0] != 2 || b[1] != 4 {
		t.Errorf("filter evens failed: %+v", b)
	}
	if a[0] != 2 || a[1] != 4 {
		t.Errorf("in place didn't reuse memory")
	}

	a = []int{1, 2, 3, 4, 5}
	c := FilterSliceInPlace(a, func(i int) bool { return i >= 3 })
	if len(c) != 3 || c[0] != 3 || c[1] != 4 || c[2] != 5 {
		t.Errorf("filter >=3 failed: %+v", c)
	}
	if a[0] != 3 || a[1] != 4 || a[2] != 5 {
		t.Errorf("in place didn't reuse memory")
	}
}

func TestDuplicateSlice(t *testing.T) {
	a := []int{1, 2, 3}
	b := DuplicateSlice(a)
	if !slices.Equal(a, b) {
		t.Errorf("duplicate doesn't match original: %v vs %v", b, a)
	}
	b[0] = 10
	if a[0] != 1 {
		t.Errorf("duplicate shares storage with original")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](10)

	if rb.Size() != 0 {
		t.Errorf("empty should have zero size")
	}

	rb.Add(0, 1, 2, 3, 4)
	if rb.Size() != 5 {
		t.Errorf("expected size 5; got %d", rb.Size())
	}
	for i := 0; i < 5; i++ {
		if rb.Get(i) != i {
			t.Errorf("returned unexpected value")
		}
	}

	for i := 5; i < 18; i++ {
		rb.Add(i)
	}
	if rb.Size() != 10 {
		t.Errorf("expected size 10")
	}
	for i := 0; i < 10; i++ {
		if rb.Get(i) != 8+i {
			t.Errorf("after filling, at %d got %d, expected %d", i, rb.Get(i), 8+i)
		}
	}

	s := rb.Slice()
	if len(s) != 10 {
		t.Errorf("expected slice length 10, got %d", len(s))
	}
	for i, v := range s {
		if v != 8+i {
			t.Errorf("slice at %d got %d, expected %d", i, v, 8+i)
		}
	}
}

func TestReduceSlice(t *testing.T) {
	v := []int{1, -2, 3, 4}

	if r := ReduceSlice(v, func(v int, r int) int { return v + r }, 10); r != 16 {
		t.Errorf("ReduceSlice with + got %d, not 16 expected", r)
	}

	if r := ReduceSlice(v, func(v int, r int) int { return v * r }, 2); r != -48 {
		t.Errorf("ReduceSlice with * got %d, not -48 expected", r)
	}
}

func TestSortedMapKeys(t *testing.T) {
	m := map[int]string{
		3: "three",
		1: "one",
		2: "two",
		4: "four",
	}

	keys := SortedMapKeys(m)
	expected := []int{1, 2, 3, 4}

	if !slices.Equal(keys, expected) {
		t.Errorf("SortedMapKeys returned %v, expected %v", keys, expected)
	}
}

func TestSortedMap(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}

	var keys []string
	var values []int
	for k, v := range SortedMap(m) {
		keys = append(keys, k)
		values = append(values, v)
	}

	if !slices.Equal(keys, []string{"a", "b", "c"}) {
		t.Errorf("SortedMap keys out of order: %v", keys)
	}
	if !slices.Equal(values, []int{1, 2, 3}) {
		t.Errorf("SortedMap values mismatch: %v", values)
	}
}

func TestDuplicateMap(t *testing.T) {
	original := map[string]int{
		"a": 1,
		"b": 2,
		"c": 3,
	}

	duplicate := DuplicateMap(original)

	// Check that the maps are equal
	if !maps.Equal(original, duplicate) {
		t.Error("DuplicateMap should create an identical map")
	}

	// Check that modifying the duplicate doesn't affect the original
	duplicate["d"] = 4
	if maps.Equal(original, duplicate) {
		t.Error("Modifying duplicate should not affect original")
	}
}

func TestMapContains(t *testing.T) {
	m := map[string]int{
		"a": 1,
		"b": 2,
		"c": 3,
	}

	// Test with predicate that checks for value > 2
	if !MapContains(m, func(k string, v int) bool { return v > 2 }) {
		t.Error("MapContains should find value > 2")
	}

	// Test with predicate that checks for key "d"
	if MapContains(m, func(k string, v int) bool { return k == "d" }) {
		t.Error("MapContains should not find key \"d\"")
	}
}
