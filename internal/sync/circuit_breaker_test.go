// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

package sync

import (
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	b := newBreaker("test-pass")

	body, err := b.Execute(func() ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Expected body 'ok', got %q", body)
	}
}

func TestBreaker_PassesThroughFailure(t *testing.T) {
	b := newBreaker("test-fail")
	boom := errors.New("boom")

	_, err := b.Execute(func() ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := newBreaker("test-below")

	// 9 failures: under the 10-request minimum, circuit stays closed
	for i := 0; i < 9; i++ {
		_, _ = b.Execute(func() ([]byte, error) {
			return nil, errors.New("boom")
		})
	}

	_, err := b.Execute(func() ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil {
		t.Errorf("Expected circuit still closed, got %v", err)
	}
}

func TestBreaker_OpensAfterSustainedFailures(t *testing.T) {
	b := newBreaker("test-open")

	for i := 0; i < 10; i++ {
		_, _ = b.Execute(func() ([]byte, error) {
			return nil, errors.New("boom")
		})
	}

	_, err := b.Execute(func() ([]byte, error) {
		t.Error("Function must not run with an open circuit")
		return []byte("ok"), nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if got := stateString(gobreaker.StateClosed); got != "closed" {
		t.Errorf("Expected closed, got %q", got)
	}
	if got := stateString(gobreaker.StateOpen); got != "open" {
		t.Errorf("Expected open, got %q", got)
	}
	if got := stateString(gobreaker.StateHalfOpen); got != "half-open" {
		t.Errorf("Expected half-open, got %q", got)
	}
}
