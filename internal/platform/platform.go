package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blang/semver/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
	"github.com/nerrad567/gray-logic-evedoor/internal/history"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-evedoor/internal/simulator"
)

// MinHostVersion is the oldest host the platform runs on.
const MinHostVersion = "3.3.0"

// DeviceName is the door's name and unique storage key.
const DeviceName = "Eve door"

// bridgeModeBridge is the host mode in which devices are exposed as server nodes.
const bridgeModeBridge = "bridge"

// Initial device state.
const (
	initialContact        = true
	initialBatteryPercent = 75
	batteryVoltageMV      = 3000
	batteryDescription    = "CR2450"
	batteryQuantity       = 1
)

var doorInformation = device.BasicInformation{
	DeviceName:            DeviceName,
	SerialNumber:          "0x88030475",
	VendorID:              4874,
	VendorName:            "Eve Systems",
	ProductID:             77,
	ProductName:           "Eve Door 20EBN9901",
	SoftwareVersion:       1144,
	SoftwareVersionString: "1.2.8",
}

// Host is the bridge the platform runs inside.
type Host interface {
	// Version is the host's semantic version.
	Version() string

	// Directory is where the platform keeps its state.
	Directory() string

	// BridgeMode is "bridge" or "childbridge".
	BridgeMode() string

	// RegisterDevice exposes an endpoint to the outside world.
	RegisterDevice(ctx context.Context, ep *device.Endpoint) error

	// UnregisterAllDevices withdraws every endpoint this host exposes.
	UnregisterAllDevices(ctx context.Context) error
}

// Lifecycle is the contract the host drives a platform through.
type Lifecycle interface {
	Start(ctx context.Context, reason string) error
	Configure(ctx context.Context) error
	Shutdown(ctx context.Context, reason string) error
}

var _ Lifecycle = (*Platform)(nil)

// Logger defines the logging interface used by the platform.
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

// StoreOpener opens the history store for a device rooted at dir.
type StoreOpener func(ctx context.Context, dir, name string) (history.Store, error)

// TickerFunc starts a recurring tick source with period d and returns its
// channel and a function that stops it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Options carries the platform's collaborators. Zero values select defaults.
type Options struct {
	Logger Logger

	// OpenStore defaults to a SQLite store tuned by Database.
	OpenStore StoreOpener
	Database  config.DatabaseConfig

	// Interval defaults to config.DefaultTickInterval.
	Interval time.Duration

	// NewTicker defaults to a time.Ticker.
	NewTicker TickerFunc

	HistoryQueueSize int
	HistoryRetention time.Duration

	// Registerer receives the simulator metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Platform owns the simulated door: its endpoint, history and timer.
//
// Thread Safety:
//   - Lifecycle methods are serialised.
//   - Ticks run on one goroutine and never overlap.
//   - Command handlers may run concurrently with ticks.
type Platform struct {
	host      Host
	cfg       config.PlatformConfig
	logger    Logger
	openStore StoreOpener
	newTicker TickerFunc
	interval  time.Duration
	queueSize int
	retention time.Duration
	metrics   *simulator.Metrics

	lc *lifecycleFSM

	mu      sync.Mutex
	door    *device.Endpoint
	history *history.Aggregator
	engine  *simulator.Engine

	timerDone  chan struct{}
	stopTicker func()
	cancelTick context.CancelFunc
	wg         sync.WaitGroup
}

// New checks the host version and creates an unstarted platform.
//
// Parameters:
//   - host: The bridge host; must not be nil
//   - cfg: Platform configuration record
//   - opts: Collaborators and tuning
//
// Returns:
//   - *Platform: Platform in the uninitialized state
//   - error: ErrHostVersion if the host is too old or its version unreadable
func New(host Host, cfg config.PlatformConfig, opts Options) (*Platform, error) {
	if host == nil {
		return nil, ErrNoHost
	}
	if err := checkHostVersion(host.Version()); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	metrics, err := simulator.NewMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	p := &Platform{
		host:      host,
		cfg:       cfg,
		logger:    logger,
		openStore: opts.OpenStore,
		newTicker: opts.NewTicker,
		interval:  opts.Interval,
		queueSize: opts.HistoryQueueSize,
		retention: opts.HistoryRetention,
		metrics:   metrics,
		lc:        newLifecycleFSM(logger),
	}
	if p.openStore == nil {
		p.openStore = sqliteOpener(opts.Database)
	}
	if p.newTicker == nil {
		p.newTicker = systemTicker
	}
	if p.interval <= 0 {
		p.interval = config.DefaultTickInterval
	}

	logger.Info("initializing platform", "name", cfg.Name)
	return p, nil
}

func checkHostVersion(v string) error {
	minimum := semver.MustParse(MinHostVersion)
	got, err := semver.ParseTolerant(v)
	if err != nil {
		return fmt.Errorf("%w: cannot parse host version %q: %v", ErrHostVersion, v, err)
	}
	if got.LT(minimum) {
		return fmt.Errorf("%w: requires >= %s, host is %s; update the host to the latest version", ErrHostVersion, MinHostVersion, v)
	}
	return nil
}

func sqliteOpener(db config.DatabaseConfig) StoreOpener {
	return func(ctx context.Context, dir, name string) (history.Store, error) {
		return history.OpenSQLiteStore(ctx, history.StoreConfig{
			Dir:         dir,
			Name:        name,
			WALMode:     db.WALMode,
			BusyTimeout: db.BusyTimeout,
		})
	}
}

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func reasonOrNone(reason string) string {
	if reason == "" {
		return "none"
	}
	return reason
}

// State returns the current lifecycle state.
func (p *Platform) State() string {
	return p.lc.Current()
}

// Device returns the door endpoint once Start has succeeded.
func (p *Platform) Device() (*device.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.door, p.door != nil
}

// History returns the door's history aggregator once Start has succeeded.
func (p *Platform) History() (*history.Aggregator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history, p.history != nil
}

// Start builds the door endpoint with a fresh history and registers it with the host.
//
// Returns:
//   - error: ErrInvalidTransition if already started; otherwise any setup
//     failure, in which case the store is closed and the state is unchanged
func (p *Platform) Start(ctx context.Context, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("onStart called", "reason", reasonOrNone(reason))

	if !p.lc.Can(EventStart) {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, p.lc.Current())
	}

	store, err := p.openStore(ctx, p.host.Directory(), DeviceName)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}

	agg, err := history.NewAggregator(ctx, store, DeviceName,
		history.WithLogger(p.logger),
		history.WithDebug(p.cfg.Debug),
		history.WithQueueSize(p.queueSize),
		history.WithRetention(p.retention),
	)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			p.logger.Warn("closing history store failed", "error", cerr)
		}
		return fmt.Errorf("creating history: %w", err)
	}

	door, err := p.buildDoor(agg)
	if err == nil {
		err = p.host.RegisterDevice(ctx, door)
	}
	if err != nil {
		if cerr := agg.Close(); cerr != nil {
			p.logger.Warn("closing history failed", "error", cerr)
		}
		return fmt.Errorf("starting door: %w", err)
	}

	door.AddCommandHandler(device.CommandIdentify, p.identifyHandler(agg))
	door.AddCommandHandler(device.CommandTriggerEffect, p.triggerEffectHandler(agg))

	p.door = door
	p.history = agg
	p.engine = simulator.New(door, agg,
		simulator.WithLogger(p.logger),
		simulator.WithMetrics(p.metrics),
	)

	if err := p.fire(EventStart); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return nil
}

// buildDoor creates the endpoint and its clusters. The history cluster is
// added last and kept in sync by the aggregator.
func (p *Platform) buildDoor(agg *history.Aggregator) (*device.Endpoint, error) {
	mode := device.ModeDefault
	if p.host.BridgeMode() == bridgeModeBridge {
		mode = device.ModeServer
	}

	door := device.NewEndpoint(
		[]device.DeviceType{device.DeviceTypeContactSensor, device.DeviceTypePowerSource},
		device.Options{UniqueStorageKey: DeviceName, Mode: mode},
	)
	if p.cfg.Debug {
		door.SetLogger(p.logger)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"identify", door.CreateDefaultIdentifyCluster},
		{"basic information", func() error { return door.CreateDefaultBasicInformationCluster(doorInformation) }},
		{"boolean state", func() error { return door.CreateDefaultBooleanStateCluster(initialContact) }},
		{"power source", func() error {
			return door.CreateDefaultPowerSourceReplaceableBatteryCluster(
				initialBatteryPercent, device.ChargeLevelOk, batteryVoltageMV, batteryDescription, batteryQuantity)
		}},
		{"history", func() error { return agg.AttachCluster(door) }},
		{"history auto-pilot", agg.AutoPilot},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("adding %s: %w", step.name, err)
		}
	}

	return door, nil
}

func (p *Platform) identifyHandler(agg *history.Aggregator) device.CommandHandler {
	return func(_ context.Context, req device.CommandRequest) error {
		identifyTime, err := req.Int(device.FieldIdentifyTime)
		if err != nil {
			return err
		}
		p.logger.Info(fmt.Sprintf("Command identify called identifyTime %d", identifyTime),
			"identify_time", identifyTime)
		agg.LogHistory(false)
		return nil
	}
}

func (p *Platform) triggerEffectHandler(agg *history.Aggregator) device.CommandHandler {
	return func(_ context.Context, req device.CommandRequest) error {
		effect, err := req.Int(device.FieldEffectIdentifier)
		if err != nil {
			return err
		}
		variant, err := req.Int(device.FieldEffectVariant)
		if err != nil {
			return err
		}
		p.logger.Info(fmt.Sprintf("Command triggerEffect called effect %d variant %d", effect, variant),
			"effect", effect,
			"variant", variant,
		)
		agg.LogHistory(false)
		return nil
	}
}

// Configure arms the simulation timer. It does nothing before Start,
// after Shutdown, or when the timer is already armed.
func (p *Platform) Configure(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("onConfigure called")

	switch state := p.lc.Current(); state {
	case StateUninitialized, StateTerminated:
		p.logger.Warn("configure ignored, no device", "state", state)
		return nil
	case StateConfigured:
		p.logger.Debug("configure ignored, timer already armed")
		return nil
	}

	if !p.lc.Can(EventConfigure) {
		return fmt.Errorf("%w: cannot configure from %s", ErrInvalidTransition, p.lc.Current())
	}

	p.startTimer()

	if err := p.fire(EventConfigure); err != nil {
		p.stopTimer()
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return nil
}

// startTimer runs the engine on every tick until stopTimer. Caller holds mu.
func (p *Platform) startTimer() {
	ticks, stop := p.newTicker(p.interval)
	done := make(chan struct{})
	tickCtx, cancel := context.WithCancel(context.Background())
	engine := p.engine

	p.timerDone = done
	p.stopTicker = stop
	p.cancelTick = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ticks:
				// Shutdown wins over a tick that arrived at the same time.
				select {
				case <-done:
					return
				default:
				}
				// Errors are logged and counted by the engine; the next period retries.
				_ = engine.Tick(tickCtx) //nolint:errcheck
			}
		}
	}()

	p.logger.Info("simulation timer armed", "interval", p.interval.String())
}

// stopTimer disarms the timer and waits for an in-flight tick. Caller holds mu.
func (p *Platform) stopTimer() {
	if p.timerDone == nil {
		return
	}
	close(p.timerDone)
	p.stopTicker()
	p.wg.Wait()
	p.cancelTick()

	p.timerDone = nil
	p.stopTicker = nil
	p.cancelTick = nil
}

// Shutdown stops the timer, closes the history and, when configured to,
// unregisters the device. It always ends Terminated and never returns a
// cleanup error; those are logged. Calling it before Start or twice is a no-op.
func (p *Platform) Shutdown(ctx context.Context, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("onShutdown called", "reason", reasonOrNone(reason))

	state := p.lc.Current()
	if state == StateUninitialized || state == StateTerminated {
		return nil
	}

	if err := p.fire(EventShutdown); err != nil {
		p.logger.Warn("lifecycle transition failed", "event", EventShutdown, "error", err)
	}
	defer func() {
		if err := p.fire(EventTerminate); err != nil {
			p.logger.Warn("lifecycle transition failed", "event", EventTerminate, "error", err)
		}
	}()

	// The history is released even if stopping the timer panics, and
	// before the device is unregistered.
	func() {
		defer p.closeHistory()
		p.stopTimer()
	}()

	if p.cfg.UnregisterOnShutdown {
		if err := p.host.UnregisterAllDevices(ctx); err != nil {
			p.logger.Error("unregistering devices failed", "error", err)
		}
	}

	return nil
}

// fire runs a lifecycle event. The state machine only guards transitions,
// so it is never cut short by the caller's context.
func (p *Platform) fire(event string) error {
	return p.lc.Event(context.Background(), event)
}

// closeHistory drains and closes the history. Repeated calls do nothing.
func (p *Platform) closeHistory() {
	if p.history == nil {
		return
	}
	if err := p.history.Close(); err != nil {
		p.logger.Error("closing history failed", "error", err)
	}
}
