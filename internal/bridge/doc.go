// Package bridge implements the host the door platform registers with.
//
// The Host answers the platform's questions about version, state directory
// and bridge mode, and exposes registered endpoints to the outside world:
//
//   - Attribute changes are mirrored to a retained MQTT state topic
//   - Cluster events are published on per-event MQTT topics
//   - Commands received on MQTT command topics are dispatched to the endpoint
//   - Numeric attribute changes are written to InfluxDB as device metrics
//
// MQTT and InfluxDB are both optional. Without them the Host still tracks
// registrations, which is all the platform itself needs.
//
// Topic layout (prefix defaults to "evedoor"):
//
//	evedoor/device/{id}/state                      retained JSON snapshot
//	evedoor/device/{id}/event/{cluster}/{event}    event payload
//	evedoor/device/{id}/command/{command}          inbound command fields
package bridge
