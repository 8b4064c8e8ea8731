// Package influxdb provides InfluxDB connectivity for sensor telemetry.
//
// It wraps the official influxdb-client-go v2 library. Every numeric or
// boolean attribute change on the simulated sensor (battery percent, charge
// level, contact) is written as a device_metrics point so battery curves
// and door activity can be graphed over time.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("eve-door", "PowerSource.batPercentRemaining", 160)
//
// Writes are non-blocking and batched. Async write failures are delivered
// to the callback set with SetOnError.
package influxdb
