package platform

import (
	"context"

	"github.com/looplab/fsm"
)

// Lifecycle states.
const (
	StateUninitialized = "uninitialized"
	StateStarted       = "started"
	StateConfigured    = "configured"
	StateShuttingDown  = "shutting_down"
	StateTerminated    = "terminated"
)

// Lifecycle events.
const (
	EventStart     = "start"
	EventConfigure = "configure"
	EventShutdown  = "shutdown"
	EventTerminate = "terminate"
)

// lifecycleFSM guards lifecycle transitions. Side effects live on Platform.
type lifecycleFSM struct {
	*fsm.FSM
}

func newLifecycleFSM(logger Logger) *lifecycleFSM {
	events := fsm.Events{
		{Name: EventStart, Src: []string{StateUninitialized}, Dst: StateStarted},
		{Name: EventConfigure, Src: []string{StateStarted}, Dst: StateConfigured},
		{Name: EventShutdown, Src: []string{StateStarted, StateConfigured}, Dst: StateShuttingDown},
		{Name: EventTerminate, Src: []string{StateShuttingDown}, Dst: StateTerminated},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			logger.Debug("lifecycle transition", "event", e.Event, "from", e.Src, "to", e.Dst)
		},
	}

	return &lifecycleFSM{FSM: fsm.NewFSM(StateUninitialized, events, callbacks)}
}
