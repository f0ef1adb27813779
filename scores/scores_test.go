// scores/scores_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scores

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeeperRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	k := NewKeeper(path, nil)

	if all := k.All(); len(all) != 0 {
		t.Errorf("expected no scores from a missing file, got %d", len(all))
	}

	now := time.Now().Round(time.Second)
	for i := range 3 {
		err := k.Save(Score{
			Datetime:        now,
			Landed:          i,
			Departed:        2 * i,
			NearMisses:      1,
			DurationSeconds: 12.5,
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all := k.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(all))
	}
	for i, s := range all {
		if s.Landed != i || s.Departed != 2*i {
			t.Errorf("score %d: got landed %d departed %d", i, s.Landed, s.Departed)
		}
		if !s.Datetime.Equal(now) {
			t.Errorf("score %d: datetime %v, expected %v", i, s.Datetime, now)
		}
	}
}

func TestKeeperCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	k := NewKeeper(path, nil)

	for i := range maxSavedScores + 5 {
		if err := k.Save(Score{Landed: i}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all := k.All()
	if len(all) != maxSavedScores {
		t.Fatalf("expected %d scores, got %d", maxSavedScores, len(all))
	}
	if all[0].Landed != 5 {
		t.Errorf("expected oldest retained score to be 5, got %d", all[0].Landed)
	}
	if all[len(all)-1].Landed != maxSavedScores+4 {
		t.Errorf("expected newest score to be %d, got %d", maxSavedScores+4, all[len(all)-1].Landed)
	}
}

func TestKeeperMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	k := NewKeeper(path, nil)
	if all := k.All(); all != nil {
		t.Errorf("expected nil scores from a malformed file, got %v", all)
	}

	// Saving over a malformed file starts fresh.
	if err := k.Save(Score{Landed: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if all := k.All(); len(all) != 1 || all[0].Landed != 1 {
		t.Errorf("expected a single fresh score, got %v", all)
	}
}

func TestKeeperCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "scores.json")
	k := NewKeeper(path, nil)

	if err := k.Save(Score{Failed: true, FailureReason: "COLLISION: UAL1 and DAL2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	all := k.All()
	if len(all) != 1 || !all[0].Failed {
		t.Fatalf("expected one failed score, got %v", all)
	}
	if all[0].FailureReason != "COLLISION: UAL1 and DAL2" {
		t.Errorf("failure reason %q", all[0].FailureReason)
	}
}
