package tap

import "fmt"

// State is one of the 16 IEEE 1149.1 TAP controller states.
type State uint8

const (
	TestLogicReset State = iota
	RunTestIdle
	SelectDRScan
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIRScan
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR
	numStates
)

var stateNames = [numStates]string{
	"TestLogicReset", "RunTestIdle",
	"SelectDRScan", "CaptureDR", "ShiftDR", "Exit1DR", "PauseDR", "Exit2DR", "UpdateDR",
	"SelectIRScan", "CaptureIR", "ShiftIR", "Exit1IR", "PauseIR", "Exit2IR", "UpdateIR",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// transitions[s] holds the next state for TMS=0 and TMS=1.
var transitions = [numStates][2]State{
	TestLogicReset: {RunTestIdle, TestLogicReset},
	RunTestIdle:    {RunTestIdle, SelectDRScan},
	SelectDRScan:   {CaptureDR, SelectIRScan},
	CaptureDR:      {ShiftDR, Exit1DR},
	ShiftDR:        {ShiftDR, Exit1DR},
	Exit1DR:        {PauseDR, UpdateDR},
	PauseDR:        {PauseDR, Exit2DR},
	Exit2DR:        {ShiftDR, UpdateDR},
	UpdateDR:       {RunTestIdle, SelectDRScan},
	SelectIRScan:   {CaptureIR, TestLogicReset},
	CaptureIR:      {ShiftIR, Exit1IR},
	ShiftIR:        {ShiftIR, Exit1IR},
	Exit1IR:        {PauseIR, UpdateIR},
	PauseIR:        {PauseIR, Exit2IR},
	Exit2IR:        {ShiftIR, UpdateIR},
	UpdateIR:       {RunTestIdle, SelectIRScan},
}

// NextState returns the state reached by clocking TCK once with the given
// TMS level. It panics on an out-of-range state, which cannot happen through
// the exported API.
func NextState(s State, tms bool) State {
	if s >= numStates {
		panic(fmt.Sprintf("tap: unhandled state %d", s))
	}
	if tms {
		return transitions[s][1]
	}
	return transitions[s][0]
}

// StateMachine tracks the TAP controller state locally. It performs no I/O;
// adapters and simulators feed it the TMS levels they clock out so the host
// side always knows where the controller is.
type StateMachine struct {
	state State
}

// NewStateMachine returns a machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: TestLogicReset}
}

// State reports the tracked state.
func (m *StateMachine) State() State { return m.state }

// Clock advances the machine one TCK cycle and returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}
