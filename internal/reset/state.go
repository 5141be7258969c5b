package reset

import "fmt"

// State is the combined sequencer state.
type State int

const (
	StateArmed State = iota
	StateCountingStage1
	StateWaitingReady
	StateCountingStage2
	StateReleased
)

var stateNames = [...]string{
	StateArmed:          "ARMED",
	StateCountingStage1: "COUNTING_STAGE1",
	StateWaitingReady:   "WAITING_READY",
	StateCountingStage2: "COUNTING_STAGE2",
	StateReleased:       "RELEASED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// States lists every state in lifecycle order.
func States() []State {
	return []State{StateArmed, StateCountingStage1, StateWaitingReady, StateCountingStage2, StateReleased}
}

type bringUpPhase int32

const (
	bringUpArmed bringUpPhase = iota
	bringUpCounting
	bringUpDone
)

type primaryPhase int32

const (
	primaryHeld primaryPhase = iota
	primaryWaiting
	primaryCounting
	primaryReleased
)
