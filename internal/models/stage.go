package models

import (
	"fmt"
	"strings"

	"github.com/isaac-jh/ym-library/internal/shared"
)

// StageState is the tri-state completion of one pipeline stage.
type StageState int

const (
	NotApplicable StageState = iota
	Incomplete
	Complete
)

func (s StageState) String() string {
	switch s {
	case NotApplicable:
		return "not_applicable"
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("StageState(%d)", int(s))
	}
}

// Toggle flips Incomplete and Complete. NotApplicable is returned unchanged.
func (s StageState) Toggle() StageState {
	switch s {
	case Incomplete:
		return Complete
	case Complete:
		return Incomplete
	default:
		return s
	}
}

// Editable reports whether users may move the stage between Incomplete and Complete.
func (s StageState) Editable() bool {
	return s == Incomplete || s == Complete
}

// StateFromWire maps the nullable boolean used on the wire: null, false, true.
func StateFromWire(v *bool) StageState {
	switch {
	case v == nil:
		return NotApplicable
	case *v:
		return Complete
	default:
		return Incomplete
	}
}

// Wire is the inverse of [StateFromWire].
func (s StageState) Wire() *bool {
	switch s {
	case Complete:
		v := true
		return &v
	case Incomplete:
		v := false
		return &v
	default:
		return nil
	}
}

// Stage names one of the four tracked pipeline steps. The value is the wire field name.
type Stage string

const (
	StageCam          Stage = "cam"
	StageMaster       Stage = "master"
	StageClean        Stage = "clean"
	StageFinalProduct Stage = "final_product"
)

// Stages lists the stages in display order.
var Stages = []Stage{StageCam, StageMaster, StageClean, StageFinalProduct}

// CheckerField is the wire field holding the verifier id for the stage.
func (s Stage) CheckerField() string { return string(s) + "_checker" }

// CheckerNameField is the wire field holding the server-resolved verifier name.
func (s Stage) CheckerNameField() string { return string(s) + "_checker_name" }

// Label is the column heading for the stage.
func (s Stage) Label() string {
	switch s {
	case StageCam:
		return "CAM"
	case StageMaster:
		return "Master"
	case StageClean:
		return "Clean"
	case StageFinalProduct:
		return "Final"
	default:
		return string(s)
	}
}

// ParseStage accepts the wire name, with "final" and "-" spellings tolerated.
func ParseStage(name string) (Stage, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if n == "final" {
		n = string(StageFinalProduct)
	}
	for _, s := range Stages {
		if string(s) == n {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown stage %q", shared.ErrInvalidArgument, name)
}

// ParseStageState accepts the [StageState] string forms plus the short spellings "done", "todo" and "na".
func ParseStageState(name string) (StageState, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_") {
	case "complete", "done":
		return Complete, nil
	case "incomplete", "todo":
		return Incomplete, nil
	case "not_applicable", "na", "n/a":
		return NotApplicable, nil
	default:
		return NotApplicable, fmt.Errorf("%w: unknown stage state %q", shared.ErrInvalidArgument, name)
	}
}

// StageStatus is the completion state of one stage plus its verifier.
type StageStatus struct {
	State        StageState
	VerifiedBy   *UserID
	VerifierName string
}

// Toggle flips the stage and stamps actor as the verifier when it becomes Complete.
// Leaving Complete clears the verifier. NotApplicable stages are returned unchanged.
func (s StageStatus) Toggle(actor UserID) StageStatus {
	if !s.State.Editable() {
		return s
	}
	next, _ := s.Transition(s.State.Toggle(), actor)
	return next
}

// Transition moves the stage to target on behalf of actor.
//
// Moving into or out of NotApplicable is rejected with [shared.ErrValidation]. A transition to the current state
// keeps the existing verifier.
func (s StageStatus) Transition(target StageState, actor UserID) (StageStatus, error) {
	if !s.State.Editable() {
		return s, fmt.Errorf("%w: stage is not tracked", shared.ErrValidation)
	}
	if !target.Editable() {
		return s, fmt.Errorf("%w: cannot exclude a tracked stage", shared.ErrValidation)
	}
	if target == s.State {
		return s, nil
	}

	if target == Complete {
		by := actor
		return StageStatus{State: Complete, VerifiedBy: &by}, nil
	}
	return StageStatus{State: Incomplete}, nil
}

// Valid checks that a verifier is present exactly when the stage is Complete.
func (s StageStatus) Valid() error {
	if (s.State == Complete) != (s.VerifiedBy != nil) {
		return fmt.Errorf("%w: stage %s with verifier %v", shared.ErrValidation, s.State, s.VerifiedBy)
	}
	return nil
}
