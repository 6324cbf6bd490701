package types

import "fmt"

// Stage is the position of a transfer in the CCTP protocol.
type Stage string

const (
	StageApprove             Stage = "approve"
	StageBurn                Stage = "burn"
	StageAwaitingAttestation Stage = "awaiting_attestation"
	StageMint                Stage = "mint"
	StageDone                Stage = "done"
	StageFailed              Stage = "failed"
)

var stageOrder = map[Stage]int{
	StageApprove:             0,
	StageBurn:                1,
	StageAwaitingAttestation: 2,
	StageMint:                3,
	StageDone:                4,
}

// Index returns the position of the stage in the progression, or -1 for failed and unknown stages.
func (s Stage) Index() int {
	if i, ok := stageOrder[s]; ok {
		return i
	}
	return -1
}

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Resumable reports whether a failed transfer may re-enter at this stage.
func (s Stage) Resumable() bool {
	switch s {
	case StageApprove, StageBurn, StageAwaitingAttestation, StageMint:
		return true
	}
	return false
}

func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if stage == StageFailed || stage.Index() >= 0 {
		return stage, nil
	}
	return "", fmt.Errorf("invalid stage %q", s)
}
