package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "evedoor"

// Topics provides builders for the simulator's MQTT topics.
// Using these helpers keeps topic naming consistent between publisher and subscribers.
//
//	topics := mqtt.NewTopics("evedoor")
//	topics.DeviceState("eve-door")
//	// Returns: "evedoor/device/eve-door/state"
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder rooted at prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// DeviceState returns the retained state topic for a device.
//
// Example: evedoor/device/eve-door/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", t.Prefix, deviceID)
}

// DeviceEvent returns the topic for an event raised by a device cluster.
//
// Example: evedoor/device/eve-door/event/BooleanState/stateChange
func (t Topics) DeviceEvent(deviceID, cluster, event string) string {
	return fmt.Sprintf("%s/device/%s/event/%s/%s", t.Prefix, deviceID, cluster, event)
}

// DeviceCommand returns the topic other services publish commands on.
//
// Example: evedoor/device/eve-door/command/identify
func (t Topics) DeviceCommand(deviceID, command string) string {
	return fmt.Sprintf("%s/device/%s/command/%s", t.Prefix, deviceID, command)
}

// AllDeviceCommands returns a pattern matching every command for a device.
//
// Pattern: evedoor/device/eve-door/command/+
func (t Topics) AllDeviceCommands(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/command/+", t.Prefix, deviceID)
}

// SystemStatus returns the online/offline status topic.
//
// Example: evedoor/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix)
}

// ParseDeviceCommand extracts the device ID and command name from a command
// topic. ok is false if the topic is not a command topic under this prefix.
func (t Topics) ParseDeviceCommand(topic string) (deviceID, command string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/device/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "command" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}
