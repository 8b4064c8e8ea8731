package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingListener struct {
	mu      sync.Mutex
	changes []AttributeChange
	events  []EventNotice
}

func (l *recordingListener) AttributeChanged(change AttributeChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
}

func (l *recordingListener) EventTriggered(event EventNotice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// newTestEndpoint returns an endpoint with BooleanState and PowerSource clusters.
func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()

	e := NewEndpoint([]DeviceType{DeviceTypeContactSensor, DeviceTypePowerSource}, Options{UniqueStorageKey: "Eve door"})
	if err := e.CreateDefaultBooleanStateCluster(true); err != nil {
		t.Fatalf("CreateDefaultBooleanStateCluster() error = %v", err)
	}
	if err := e.CreateDefaultPowerSourceReplaceableBatteryCluster(75, ChargeLevelOk, 3000, "CR2450", 1); err != nil {
		t.Fatalf("CreateDefaultPowerSourceReplaceableBatteryCluster() error = %v", err)
	}
	return e
}

func TestNewEndpoint_Descriptor(t *testing.T) {
	e := NewEndpoint([]DeviceType{DeviceTypeContactSensor}, Options{UniqueStorageKey: "Eve door", Mode: ModeServer})

	if e.ID() != "Eve door" {
		t.Errorf("ID() = %q, want Eve door", e.ID())
	}
	if e.Mode() != ModeServer {
		t.Errorf("Mode() = %q, want server", e.Mode())
	}
	if got := e.Behaviors(); len(got) != 1 || got[0] != ClusterDescriptor {
		t.Errorf("Behaviors() = %v, want [Descriptor]", got)
	}

	if err := e.CreateDefaultIdentifyCluster(); err != nil {
		t.Fatalf("CreateDefaultIdentifyCluster() error = %v", err)
	}
	serverList, err := e.GetAttribute(ClusterDescriptor, AttrServerList)
	if err != nil {
		t.Fatalf("GetAttribute(serverList) error = %v", err)
	}
	list, ok := serverList.([]ClusterID)
	if !ok || len(list) != 2 || list[1] != ClusterIdentify {
		t.Errorf("serverList = %v, want [Descriptor Identify]", serverList)
	}
}

func TestAddCluster_Duplicate(t *testing.T) {
	e := newTestEndpoint(t)

	if err := e.CreateDefaultBooleanStateCluster(false); !errors.Is(err, ErrClusterExists) {
		t.Errorf("second BooleanState error = %v, want ErrClusterExists", err)
	}
}

func TestGetSetAttribute(t *testing.T) {
	e := newTestEndpoint(t)
	listener := &recordingListener{}
	e.Subscribe(listener)

	if err := e.SetAttribute(ClusterBooleanState, AttrStateValue, false); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}
	got, err := e.GetAttribute(ClusterBooleanState, AttrStateValue)
	if err != nil {
		t.Fatalf("GetAttribute() error = %v", err)
	}
	if got != false {
		t.Errorf("stateValue = %v, want false", got)
	}

	// Same value again: no notification.
	if err := e.SetAttribute(ClusterBooleanState, AttrStateValue, false); err != nil {
		t.Fatalf("SetAttribute() error = %v", err)
	}

	if len(listener.changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(listener.changes))
	}
	change := listener.changes[0]
	if change.Previous != true || change.Value != false || change.EndpointID != "Eve door" {
		t.Errorf("change = %+v", change)
	}
}

func TestSetAttribute_Errors(t *testing.T) {
	e := newTestEndpoint(t)

	tests := []struct {
		name    string
		cluster ClusterID
		attr    string
		value   any
		wantErr error
	}{
		{"missing cluster", ClusterIdentify, AttrIdentifyTime, 1, ErrClusterNotFound},
		{"missing attribute", ClusterBooleanState, "bogus", true, ErrAttributeNotFound},
		{"type change", ClusterPowerSource, AttrBatPercentRemaining, "full", ErrAttributeType},
		{"read-only descriptor", ClusterDescriptor, AttrServerList, []ClusterID{}, ErrReadOnlyCluster},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.SetAttribute(tt.cluster, tt.attr, tt.value); !errors.Is(err, tt.wantErr) {
				t.Errorf("SetAttribute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClusterHandle_BypassesReadOnly(t *testing.T) {
	e := newTestEndpoint(t)

	handle, err := e.AddCluster(ClusterSpec{
		ID:         ClusterEveHistory,
		Attributes: map[string]any{"timesOpened": 0},
		ReadOnly:   true,
	})
	if err != nil {
		t.Fatalf("AddCluster() error = %v", err)
	}

	if err := e.SetAttribute(ClusterEveHistory, "timesOpened", 3); !errors.Is(err, ErrReadOnlyCluster) {
		t.Errorf("proxy write error = %v, want ErrReadOnlyCluster", err)
	}
	if err := handle.Set("timesOpened", 3); err != nil {
		t.Fatalf("handle.Set() error = %v", err)
	}
	if got, _ := e.GetAttribute(ClusterEveHistory, "timesOpened"); got != 3 {
		t.Errorf("timesOpened = %v, want 3", got)
	}
}

func TestTriggerEvent(t *testing.T) {
	e := newTestEndpoint(t)
	listener := &recordingListener{}
	unsubscribe := e.Subscribe(listener)

	payload := map[string]any{AttrStateValue: false}
	if err := e.TriggerEvent(ClusterBooleanState, EventStateChange, payload); err != nil {
		t.Fatalf("TriggerEvent() error = %v", err)
	}
	payload[AttrStateValue] = true

	if len(listener.events) != 1 {
		t.Fatalf("events = %d, want 1", len(listener.events))
	}
	if listener.events[0].Payload[AttrStateValue] != false {
		t.Error("event payload should be copied, not aliased")
	}

	if err := e.TriggerEvent(ClusterPowerSource, EventStateChange, nil); !errors.Is(err, ErrEventNotSupported) {
		t.Errorf("undeclared event error = %v, want ErrEventNotSupported", err)
	}
	if err := e.TriggerEvent(ClusterIdentify, "x", nil); !errors.Is(err, ErrClusterNotFound) {
		t.Errorf("missing cluster error = %v, want ErrClusterNotFound", err)
	}

	unsubscribe()
	unsubscribe()
	_ = e.TriggerEvent(ClusterBooleanState, EventStateChange, nil) //nolint:errcheck // declared event
	if len(listener.events) != 1 {
		t.Error("listener still notified after unsubscribe")
	}
}

func TestExecuteCommand(t *testing.T) {
	e := newTestEndpoint(t)

	var got CommandRequest
	e.AddCommandHandler(CommandIdentify, func(_ context.Context, req CommandRequest) error {
		got = req
		return nil
	})

	err := e.ExecuteCommand(context.Background(), CommandIdentify, CommandRequest{
		Fields: map[string]any{AttrIdentifyTime: float64(5)},
	})
	if err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}
	if got.Command != CommandIdentify {
		t.Errorf("Command = %q, want identify", got.Command)
	}
	if n, err := got.Int(AttrIdentifyTime); err != nil || n != 5 {
		t.Errorf("Int(identifyTime) = %d, %v; want 5", n, err)
	}

	if err := e.ExecuteCommand(context.Background(), "reboot", CommandRequest{}); !errors.Is(err, ErrCommandNotSupported) {
		t.Errorf("unknown command error = %v, want ErrCommandNotSupported", err)
	}

	if cmds := e.Commands(); len(cmds) != 1 || cmds[0] != CommandIdentify {
		t.Errorf("Commands() = %v", cmds)
	}
}

func TestCommandRequest_Int(t *testing.T) {
	req := CommandRequest{Fields: map[string]any{
		"int":      7,
		"whole":    float64(3),
		"fraction": 2.5,
		"text":     "x",
	}}

	tests := []struct {
		field   string
		want    int
		wantErr bool
	}{
		{"int", 7, false},
		{"whole", 3, false},
		{"fraction", 0, true},
		{"text", 0, true},
		{"missing", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := req.Int(tt.field)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Int(%q) error = %v, wantErr %v", tt.field, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("error = %v, want ErrInvalidCommand", err)
			}
			if got != tt.want {
				t.Errorf("Int(%q) = %d, want %d", tt.field, got, tt.want)
			}
		})
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	e := newTestEndpoint(t)

	snap := e.Snapshot()
	snap[ClusterBooleanState][AttrStateValue] = false
	snap[ClusterDescriptor][AttrServerList].([]ClusterID)[0] = "mutated"

	if got, _ := e.GetAttribute(ClusterBooleanState, AttrStateValue); got != true {
		t.Error("snapshot mutation leaked into endpoint")
	}
	list, _ := e.GetAttribute(ClusterDescriptor, AttrServerList)
	if list.([]ClusterID)[0] != ClusterDescriptor {
		t.Error("snapshot slice aliases endpoint state")
	}
}

func TestEndpoint_ConcurrentAccess(t *testing.T) {
	e := newTestEndpoint(t)
	e.Subscribe(&recordingListener{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = e.SetAttribute(ClusterPowerSource, AttrBatPercentRemaining, i*j%200) //nolint:errcheck // race test
				_, _ = e.GetAttribute(ClusterBooleanState, AttrStateValue)                //nolint:errcheck // race test
				_ = e.Snapshot()
			}
		}(i)
	}
	wg.Wait()
}
