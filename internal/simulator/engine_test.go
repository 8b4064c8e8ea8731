package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
	"github.com/nerrad567/gray-logic-evedoor/internal/history"
)

// fakeRecorder records history calls in memory.
type fakeRecorder struct {
	opened  int
	events  int
	entries []history.Entry
	now     int64
}

func (r *fakeRecorder) AddToTimesOpened()        { r.opened++ }
func (r *fakeRecorder) SetLastEvent()            { r.events++ }
func (r *fakeRecorder) AddEntry(e history.Entry) { r.entries = append(r.entries, e) }
func (r *fakeRecorder) Now() int64               { return r.now }
func (r *fakeRecorder) TimesOpened() int         { return r.opened }

// captureLogger keeps info and error messages.
type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Warn(string, ...any)  {}
func (l *captureLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}
func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// eventCounter counts stateChange events raised on an endpoint.
type eventCounter struct {
	mu     sync.Mutex
	events []device.EventNotice
}

func (c *eventCounter) AttributeChanged(device.AttributeChange) {}
func (c *eventCounter) EventTriggered(ev device.EventNotice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// failingProxy fails every call with err, or returns value from GetAttribute.
type failingProxy struct {
	err   error
	value any
	sets  int
}

func (p *failingProxy) GetAttribute(device.ClusterID, string) (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.value, nil
}
func (p *failingProxy) SetAttribute(device.ClusterID, string, any) error {
	p.sets++
	return p.err
}
func (p *failingProxy) TriggerEvent(device.ClusterID, string, map[string]any) error { return p.err }
func (p *failingProxy) AddCommandHandler(string, device.CommandHandler)             {}

// newTestEndpoint builds a door endpoint with a closed contact and 75% battery.
func newTestEndpoint(t *testing.T) *device.Endpoint {
	t.Helper()
	ep := device.NewEndpoint(
		[]device.DeviceType{device.DeviceTypeContactSensor, device.DeviceTypePowerSource},
		device.Options{UniqueStorageKey: "Eve door"},
	)
	if err := ep.CreateDefaultBooleanStateCluster(true); err != nil {
		t.Fatalf("CreateDefaultBooleanStateCluster() error = %v", err)
	}
	if err := ep.CreateDefaultPowerSourceReplaceableBatteryCluster(75, device.ChargeLevelOk, 3000, "CR2450", 1); err != nil {
		t.Fatalf("CreateDefaultPowerSourceReplaceableBatteryCluster() error = %v", err)
	}
	return ep
}

func attr[T any](t *testing.T, ep *device.Endpoint, cluster device.ClusterID, name string) T {
	t.Helper()
	raw, err := ep.GetAttribute(cluster, name)
	if err != nil {
		t.Fatalf("GetAttribute(%s, %s) error = %v", cluster, name, err)
	}
	v, ok := raw.(T)
	if !ok {
		t.Fatalf("%s.%s is %T", cluster, name, raw)
	}
	return v
}

func TestNextBatteryPercent(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 10},
		{10, 20},
		{150, 160},
		{170, 180},
		{180, 190},
		{181, 10},
		{190, 10},
		{200, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			if got := NextBatteryPercent(tt.in); got != tt.want {
				t.Errorf("NextBatteryPercent(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestChargeLevelFor(t *testing.T) {
	tests := []struct {
		in   int
		want device.ChargeLevel
	}{
		{200, device.ChargeLevelOk},
		{40, device.ChargeLevelOk},
		{39, device.ChargeLevelWarning},
		{20, device.ChargeLevelWarning},
		{19, device.ChargeLevelCritical},
		{10, device.ChargeLevelCritical},
		{0, device.ChargeLevelCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			if got := ChargeLevelFor(tt.in); got != tt.want {
				t.Errorf("ChargeLevelFor(%d) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTick_Sequence(t *testing.T) {
	ep := newTestEndpoint(t)
	rec := &fakeRecorder{now: 1700000000}
	logger := &captureLogger{}
	events := &eventCounter{}
	ep.Subscribe(events)

	engine := New(ep, rec, WithLogger(logger))
	ctx := context.Background()

	wantBattery := []int{160, 170, 180, 190, 10, 20, 30, 40, 50, 60}
	for i := 0; i < 20; i++ {
		before := attr[bool](t, ep, device.ClusterBooleanState, device.AttrStateValue)

		if err := engine.Tick(ctx); err != nil {
			t.Fatalf("Tick() #%d error = %v", i+1, err)
		}

		contact := attr[bool](t, ep, device.ClusterBooleanState, device.AttrStateValue)
		if contact == before {
			t.Fatalf("tick %d: contact did not flip", i+1)
		}

		percent := attr[int](t, ep, device.ClusterPowerSource, device.AttrBatPercentRemaining)
		level := attr[device.ChargeLevel](t, ep, device.ClusterPowerSource, device.AttrBatChargeLevel)
		if level != ChargeLevelFor(percent) {
			t.Errorf("tick %d: level %v does not match percent %d", i+1, level, percent)
		}
		if i < len(wantBattery) && percent != wantBattery[i] {
			t.Errorf("tick %d: battery = %d, want %d", i+1, percent, wantBattery[i])
		}
	}

	if rec.opened != 10 {
		t.Errorf("times opened = %d, want 10", rec.opened)
	}
	if rec.events != 20 {
		t.Errorf("SetLastEvent calls = %d, want 20", rec.events)
	}
	if len(rec.entries) != 20 {
		t.Fatalf("entries = %d, want 20", len(rec.entries))
	}
	for i, e := range rec.entries {
		// Starting closed, odd ticks open the door.
		want := history.ContactOpen
		if i%2 == 1 {
			want = history.ContactClosed
		}
		if e.Contact != want || e.Time != 1700000000 {
			t.Errorf("entries[%d] = %+v, want contact %d at 1700000000", i, e, want)
		}
	}

	if len(events.events) != 20 {
		t.Errorf("stateChange events = %d, want 20", len(events.events))
	}
	if ev := events.events[0]; ev.Event != device.EventStateChange || ev.Payload[device.AttrStateValue] != false {
		t.Errorf("first event = %+v, want stateChange{stateValue:false}", ev)
	}

	if len(logger.errors) != 0 {
		t.Errorf("unexpected error logs: %v", logger.errors)
	}
	if len(logger.infos) != 20 || logger.infos[0] != "Set contact to false" || logger.infos[1] != "Set contact to true" {
		t.Errorf("info logs = %v, want alternating Set contact lines", logger.infos)
	}
}

func TestTick_NilCollaborators(t *testing.T) {
	ctx := context.Background()
	if err := New(nil, &fakeRecorder{}).Tick(ctx); err != nil {
		t.Errorf("Tick() with nil proxy error = %v", err)
	}

	ep := newTestEndpoint(t)
	if err := New(ep, nil).Tick(ctx); err != nil {
		t.Errorf("Tick() with nil recorder error = %v", err)
	}
	if !attr[bool](t, ep, device.ClusterBooleanState, device.AttrStateValue) {
		t.Error("Tick() with nil recorder changed the contact")
	}
}

func TestTick_ProxyError(t *testing.T) {
	boom := errors.New("proxy offline")
	proxy := &failingProxy{err: boom}
	rec := &fakeRecorder{}
	logger := &captureLogger{}
	metrics, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	err = New(proxy, rec, WithLogger(logger), WithMetrics(metrics)).Tick(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Tick() error = %v, want %v", err, boom)
	}
	if rec.opened != 0 || rec.events != 0 || len(rec.entries) != 0 {
		t.Errorf("history touched by failed tick: %+v", rec)
	}
	if len(logger.errors) != 1 {
		t.Errorf("error logs = %d, want 1", len(logger.errors))
	}
	if got := testutil.ToFloat64(metrics.tickErrors); got != 1 {
		t.Errorf("tick errors = %v, want 1", got)
	}
}

// eventFailingProxy is a real endpoint whose stateChange events are lost.
type eventFailingProxy struct {
	*device.Endpoint
	err error
}

func (p *eventFailingProxy) TriggerEvent(device.ClusterID, string, map[string]any) error {
	return p.err
}

func TestTick_EventFailureStillRecordsHistory(t *testing.T) {
	boom := errors.New("event bus down")
	ep := newTestEndpoint(t)
	proxy := &eventFailingProxy{Endpoint: ep, err: boom}
	rec := &fakeRecorder{}
	logger := &captureLogger{}
	engine := New(proxy, rec, WithLogger(logger))
	ctx := context.Background()

	battery := attr[int](t, ep, device.ClusterPowerSource, device.AttrBatPercentRemaining)

	for i := 0; i < 2; i++ {
		if err := engine.Tick(ctx); !errors.Is(err, boom) {
			t.Fatalf("Tick() #%d error = %v, want %v", i+1, err, boom)
		}
	}

	want := []int{history.ContactOpen, history.ContactClosed}
	if len(rec.entries) != len(want) {
		t.Fatalf("entries = %+v, want %d", rec.entries, len(want))
	}
	for i, contact := range want {
		if rec.entries[i].Contact != contact {
			t.Errorf("entries[%d].Contact = %d, want %d", i, rec.entries[i].Contact, contact)
		}
	}
	if rec.opened != 1 || rec.events != 2 {
		t.Errorf("opened = %d, events = %d, want 1 and 2", rec.opened, rec.events)
	}
	wantBattery := NextBatteryPercent(NextBatteryPercent(battery))
	if got := attr[int](t, ep, device.ClusterPowerSource, device.AttrBatPercentRemaining); got != wantBattery {
		t.Errorf("battery = %d, want %d", got, wantBattery)
	}
	if len(logger.errors) != 2 {
		t.Errorf("error logs = %d, want 2", len(logger.errors))
	}
}

func TestTick_UnexpectedType(t *testing.T) {
	proxy := &failingProxy{value: "closed"}
	rec := &fakeRecorder{}

	err := New(proxy, rec).Tick(context.Background())
	if !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("Tick() error = %v, want ErrUnexpectedType", err)
	}
	if proxy.sets != 0 {
		t.Errorf("SetAttribute called %d times, want 0", proxy.sets)
	}
}

func TestTick_CancelledContext(t *testing.T) {
	ep := newTestEndpoint(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New(ep, &fakeRecorder{}).Tick(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Tick() error = %v, want context.Canceled", err)
	}
	if !attr[bool](t, ep, device.ClusterBooleanState, device.AttrStateValue) {
		t.Error("cancelled Tick() changed the contact")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	engine := New(newTestEndpoint(t), &fakeRecorder{}, WithMetrics(metrics))
	for i := 0; i < 2; i++ {
		if err := engine.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	if got := testutil.ToFloat64(metrics.ticks); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.timesOpened); got != 1 {
		t.Errorf("times opened = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.contactClosed); got != 1 {
		t.Errorf("contact closed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.battery); got != 170 {
		t.Errorf("battery = %v, want 170", got)
	}
	if n := testutil.CollectAndCount(metrics.tickErrors); n != 1 {
		t.Errorf("tick error series = %d, want 1", n)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("NewMetrics() on the same registry expected error, got nil")
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.observeTick()
	m.observeError()
	m.observeContact(true)
	m.observeOpened(1, true)
	m.observeBattery(10)
}
