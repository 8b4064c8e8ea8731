package bridge

import (
	"strings"
	"time"
	"unicode"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
)

// StateMessage is the retained snapshot published for a device.
type StateMessage struct {
	DeviceID  string                              `json:"device_id"`
	Name      string                              `json:"name"`
	Mode      device.Mode                         `json:"mode,omitempty"`
	Clusters  map[device.ClusterID]map[string]any `json:"clusters"`
	Timestamp time.Time                           `json:"timestamp"`
}

// EventMessage is published for every cluster event.
type EventMessage struct {
	DeviceID  string         `json:"device_id"`
	Cluster   string         `json:"cluster"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TopicID converts an endpoint's storage key into a topic segment:
// lower case, with runs of anything other than letters and digits
// replaced by a single hyphen. "Eve door" becomes "eve-door".
func TopicID(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// metricValue converts an attribute value to a float for telemetry.
// Booleans map to 1 (true) and 0 (false).
func metricValue(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case device.ChargeLevel:
		return float64(t), true
	default:
		return 0, false
	}
}
