package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
)

// DeviceResponse is the body of GET /api/v1/device.
type DeviceResponse struct {
	ID          string                              `json:"id"`
	Mode        device.Mode                         `json:"mode,omitempty"`
	DeviceTypes []device.DeviceType                 `json:"device_types"`
	Behaviors   []device.ClusterID                  `json:"behaviors"`
	Commands    []string                            `json:"commands"`
	Clusters    map[device.ClusterID]map[string]any `json:"clusters"`
}

// handleDevice returns a snapshot of the door endpoint.
func (s *Server) handleDevice(w http.ResponseWriter, _ *http.Request) {
	door, ok := s.platform.Device()
	if !ok {
		writeUnavailable(w, "device not registered")
		return
	}

	writeJSON(w, http.StatusOK, DeviceResponse{
		ID:          door.ID(),
		Mode:        door.Mode(),
		DeviceTypes: door.DeviceTypes(),
		Behaviors:   door.Behaviors(),
		Commands:    door.Commands(),
		Clusters:    door.Snapshot(),
	})
}
