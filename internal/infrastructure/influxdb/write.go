package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// DeviceMetricsMeasurement is the measurement every device metric is written to.
const DeviceMetricsMeasurement = "device_metrics"

// WriteDeviceMetric writes a single device measurement.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceMetric("eve-door", "PowerSource.batPercentRemaining", 160)
//	client.WriteDeviceMetric("eve-door", "BooleanState.stateValue", 1)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	c.WriteDeviceMetricAt(deviceID, measurement, value, time.Now())
}

// WriteDeviceMetricAt is WriteDeviceMetric with an explicit timestamp.
func (c *Client) WriteDeviceMetricAt(deviceID string, measurement string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		DeviceMetricsMeasurement,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}
