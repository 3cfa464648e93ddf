package models

import (
	"errors"
	"testing"

	"github.com/isaac-jh/ym-library/internal/shared"
)

func TestStageState(t *testing.T) {
	t.Run("Toggle is an involution on editable states", func(t *testing.T) {
		for _, s := range []StageState{Incomplete, Complete} {
			if got := s.Toggle().Toggle(); got != s {
				t.Errorf("toggle(toggle(%s)) = %s", s, got)
			}
			if s.Toggle() == s {
				t.Errorf("toggle(%s) should change the state", s)
			}
		}
	})

	t.Run("Toggle leaves NotApplicable unchanged", func(t *testing.T) {
		if got := NotApplicable.Toggle(); got != NotApplicable {
			t.Errorf("toggle(NotApplicable) = %s", got)
		}
	})

	t.Run("wire round trip", func(t *testing.T) {
		for _, s := range []StageState{NotApplicable, Incomplete, Complete} {
			if got := StateFromWire(s.Wire()); got != s {
				t.Errorf("StateFromWire(%s.Wire()) = %s", s, got)
			}
		}
		if NotApplicable.Wire() != nil {
			t.Error("NotApplicable should map to null")
		}
	})
}

func TestParseStage(t *testing.T) {
	tc := []struct {
		input   string
		want    Stage
		wantErr bool
	}{
		{input: "cam", want: StageCam},
		{input: "Master", want: StageMaster},
		{input: " clean ", want: StageClean},
		{input: "final_product", want: StageFinalProduct},
		{input: "final-product", want: StageFinalProduct},
		{input: "final", want: StageFinalProduct},
		{input: "mix", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStage(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStage(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStageStatus(t *testing.T) {
	const actor UserID = 7

	t.Run("Toggle stamps and clears the verifier", func(t *testing.T) {
		s := StageStatus{State: Incomplete}

		done := s.Toggle(actor)
		if done.State != Complete {
			t.Fatalf("expected Complete, got %s", done.State)
		}
		if done.VerifiedBy == nil || *done.VerifiedBy != actor {
			t.Fatalf("expected verifier %d, got %v", actor, done.VerifiedBy)
		}
		if err := done.Valid(); err != nil {
			t.Errorf("complete stage should be valid: %v", err)
		}

		undone := done.Toggle(actor)
		if undone.State != Incomplete || undone.VerifiedBy != nil {
			t.Errorf("expected Incomplete without verifier, got %+v", undone)
		}
	})

	t.Run("Toggle on NotApplicable is a no-op", func(t *testing.T) {
		s := StageStatus{State: NotApplicable}
		if got := s.Toggle(actor); got != s {
			t.Errorf("expected unchanged status, got %+v", got)
		}
	})

	t.Run("Transition rejects NotApplicable moves", func(t *testing.T) {
		if _, err := (StageStatus{State: NotApplicable}).Transition(Complete, actor); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation out of NotApplicable, got %v", err)
		}
		if _, err := (StageStatus{State: Incomplete}).Transition(NotApplicable, actor); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation into NotApplicable, got %v", err)
		}
	})

	t.Run("Transition to the same state keeps the verifier", func(t *testing.T) {
		first := UserID(3)
		s := StageStatus{State: Complete, VerifiedBy: &first}
		got, err := s.Transition(Complete, actor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *got.VerifiedBy != first {
			t.Errorf("expected verifier %d to be kept, got %d", first, *got.VerifiedBy)
		}
	})

	t.Run("Valid", func(t *testing.T) {
		by := actor
		if err := (StageStatus{State: Incomplete, VerifiedBy: &by}).Valid(); err == nil {
			t.Error("incomplete stage with verifier should be invalid")
		}
		if err := (StageStatus{State: Complete}).Valid(); err == nil {
			t.Error("complete stage without verifier should be invalid")
		}
	})
}

func TestParseStageState(t *testing.T) {
	tests := []struct {
		in   string
		want StageState
	}{
		{"complete", Complete},
		{"Done", Complete},
		{"incomplete", Incomplete},
		{"todo", Incomplete},
		{"not_applicable", NotApplicable},
		{"not-applicable", NotApplicable},
		{"NA", NotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStageState(tt.in)
			if err != nil {
				t.Fatalf("ParseStageState(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseStageState(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseStageState("maybe"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
