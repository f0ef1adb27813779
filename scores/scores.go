// scores/scores.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package scores persists per-session results: how many flights landed
// and departed, how many near misses there were, and whether the session
// ended in a collision.
package scores

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/towersim/tower/log"
)

// Score is the result of one simulation session.
type Score struct {
	Datetime        time.Time `json:"datetime"`
	Landed          int       `json:"landed"`
	Departed        int       `json:"departed"`
	NearMisses      int       `json:"near_misses"`
	Failed          bool      `json:"failed"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Only this many scores are retained; older ones roll off.
const maxSavedScores = 100

// Keeper stores scores in a single JSON file, oldest first. It is safe
// for concurrent use.
type Keeper struct {
	mu   sync.Mutex
	path string
	lg   *log.Logger
}

func NewKeeper(path string, lg *log.Logger) *Keeper {
	return &Keeper{path: path, lg: lg}
}

// Save appends the score to the file, dropping the oldest entries once
// the cap is reached. A missing or unreadable file starts a fresh
// history rather than failing the save.
func (k *Keeper) Save(s Score) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	all := append(k.read(), s)
	if n := len(all); n > maxSavedScores {
		all = all[n-maxSavedScores:]
	}

	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(k.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(k.path, b, 0o644)
}

// All returns the saved scores, oldest first.
func (k *Keeper) All() []Score {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.read()
}

func (k *Keeper) read() []Score {
	b, err := os.ReadFile(k.path)
	if err != nil {
		if !os.IsNotExist(err) {
			k.lg.Warnf("%s: unable to read scores: %v", k.path, err)
		}
		return nil
	}

	var all []Score
	if err := json.Unmarshal(b, &all); err != nil {
		k.lg.Warnf("%s: malformed scores file: %v", k.path, err)
		return nil
	}
	return all
}
