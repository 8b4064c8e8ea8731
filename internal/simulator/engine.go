package simulator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
	"github.com/nerrad567/gray-logic-evedoor/internal/history"
)

// Battery cycle constants, in half-percent units.
const (
	batteryFull = 200
	batteryStep = 10
	batteryWrap = 10

	// Charge level thresholds: Ok at or above okThreshold, Warning at or
	// above warningThreshold, Critical below.
	okThreshold      = 40
	warningThreshold = 20
)

// Recorder is the part of the history aggregator the engine writes to.
type Recorder interface {
	AddToTimesOpened()
	SetLastEvent()
	AddEntry(entry history.Entry)
	Now() int64
}

// openCounter is implemented by recorders that expose their opened count.
type openCounter interface {
	TimesOpened() int
}

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records tick outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine performs one simulation step per Tick.
//
// Thread Safety:
//   - Tick must not be called concurrently; the caller serialises ticks.
type Engine struct {
	proxy    device.Proxy
	recorder Recorder
	logger   Logger
	metrics  *Metrics
}

// New creates an engine driving proxy and recording into recorder.
// Either may be nil, in which case Tick does nothing.
func New(proxy device.Proxy, recorder Recorder, opts ...Option) *Engine {
	e := &Engine{
		proxy:    proxy,
		recorder: recorder,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick runs one simulation step:
//  1. Invert the contact and raise a stateChange event
//  2. Record the change in the history (open counts as one more opening)
//  3. Advance the battery and set the matching charge level
//
// A failure is logged, counted and returned. The history is only touched
// once the contact change has been fully applied.
func (e *Engine) Tick(ctx context.Context) error {
	if e.proxy == nil || e.recorder == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.metrics.observeTick()

	raw, err := e.proxy.GetAttribute(device.ClusterBooleanState, device.AttrStateValue)
	if err != nil {
		return e.fail("reading contact", err)
	}
	contact, ok := raw.(bool)
	if !ok {
		return e.fail("reading contact", fmt.Errorf("%w: stateValue is %T", ErrUnexpectedType, raw))
	}

	contact = !contact
	if err := e.proxy.SetAttribute(device.ClusterBooleanState, device.AttrStateValue, contact); err != nil {
		return e.fail("writing contact", err)
	}
	// The contact has changed once the write succeeds; a lost event must not
	// drop it from the history.
	var eventErr error
	payload := map[string]any{device.AttrStateValue: contact}
	if err := e.proxy.TriggerEvent(device.ClusterBooleanState, device.EventStateChange, payload); err != nil {
		eventErr = e.fail("raising stateChange", err)
	}

	if !contact {
		e.recorder.AddToTimesOpened()
		if c, ok := e.recorder.(openCounter); ok {
			e.metrics.observeOpened(c.TimesOpened(), true)
		} else {
			e.metrics.observeOpened(0, false)
		}
	}
	e.recorder.SetLastEvent()
	e.recorder.AddEntry(history.Entry{Time: e.recorder.Now(), Contact: history.EncodeContact(contact)})
	e.metrics.observeContact(contact)
	e.logger.Info("Set contact to "+strconv.FormatBool(contact), "contact", contact)

	raw, err = e.proxy.GetAttribute(device.ClusterPowerSource, device.AttrBatPercentRemaining)
	if err != nil {
		return e.fail("reading battery", err)
	}
	percent, ok := raw.(int)
	if !ok {
		return e.fail("reading battery", fmt.Errorf("%w: batPercentRemaining is %T", ErrUnexpectedType, raw))
	}

	next := NextBatteryPercent(percent)
	if err := e.proxy.SetAttribute(device.ClusterPowerSource, device.AttrBatPercentRemaining, next); err != nil {
		return e.fail("writing battery", err)
	}
	level := ChargeLevelFor(next)
	if err := e.proxy.SetAttribute(device.ClusterPowerSource, device.AttrBatChargeLevel, level); err != nil {
		return e.fail("writing charge level", err)
	}
	e.metrics.observeBattery(next)
	e.logger.Debug("battery advanced", "percent", next, "level", level.String())

	return eventErr
}

func (e *Engine) fail(step string, err error) error {
	e.metrics.observeError()
	e.logger.Error("simulation tick failed", "step", step, "error", err)
	return fmt.Errorf("%s: %w", step, err)
}

// NextBatteryPercent returns the battery value after p, in half-percent
// units. It climbs by 10 and wraps to 10 once another two steps would pass full.
func NextBatteryPercent(p int) int {
	if p+2*batteryStep > batteryFull {
		return batteryWrap
	}
	return p + batteryStep
}

// ChargeLevelFor maps a battery value to its charge level.
func ChargeLevelFor(p int) device.ChargeLevel {
	switch {
	case p >= okThreshold:
		return device.ChargeLevelOk
	case p >= warningThreshold:
		return device.ChargeLevelWarning
	default:
		return device.ChargeLevelCritical
	}
}
