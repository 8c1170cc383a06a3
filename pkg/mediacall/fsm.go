package mediacall

import (
	"context"

	"github.com/looplab/fsm"
)

// initFSM wires the seven states of spec.md §4.4 with looplab/fsm,
// grounded on the teacher's Dialog.initFSM (pkg/dialog/dialog.go).
// Unlike the teacher's dialog-level FSM this one belongs to the
// media-call layer: its states are Idle/LocalOffering/RemoteOffering/
// Established/Reinviting/Terminating/Terminated, not the SIP
// transaction states the teacher tracks.
func (c *Call) initFSM(initial State) {
	c.fsm = fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: "start-outbound", Src: []string{string(StateIdle)}, Dst: string(StateLocalOffering)},
			{Name: "receive-invite", Src: []string{string(StateIdle)}, Dst: string(StateRemoteOffering)},

			{Name: "establish", Src: []string{string(StateLocalOffering), string(StateRemoteOffering)}, Dst: string(StateEstablished)},

			{Name: "reinvite", Src: []string{string(StateEstablished)}, Dst: string(StateReinviting)},
			{Name: "reinvite-done", Src: []string{string(StateReinviting)}, Dst: string(StateEstablished)},
			{Name: "reinvite-failed", Src: []string{string(StateReinviting)}, Dst: string(StateEstablished)},

			{Name: "terminate", Src: []string{
				string(StateIdle), string(StateLocalOffering), string(StateRemoteOffering),
				string(StateEstablished), string(StateReinviting),
			}, Dst: string(StateTerminating)},
			{Name: "terminated", Src: []string{string(StateTerminating)}, Dst: string(StateTerminated)},
		},
		fsm.Callbacks{},
	)
}

// Fire drives the underlying FSM; a transition not valid from the
// current state is a programmer error in the caller, so the error is
// returned rather than swallowed (§7: "no error is silently
// swallowed").
func (c *Call) Fire(event string) error {
	return c.fsm.Event(context.Background(), event)
}
