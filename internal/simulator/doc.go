// Package simulator drives the virtual door sensor.
//
// Each call to Engine.Tick flips the contact, records the change in the
// usage history, and advances the battery along its recharge cycle:
//
//	engine := simulator.New(endpoint, aggregator, simulator.WithLogger(log))
//	if err := engine.Tick(ctx); err != nil {
//	    // already logged and counted; the next period retries
//	}
//
// The engine holds no timer of its own. The platform owns the period and
// guarantees ticks never overlap.
package simulator
