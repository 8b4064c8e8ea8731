package device

import (
	"context"
	"fmt"
)

// ClusterID names a capability block on an endpoint.
type ClusterID string

// Cluster identifiers.
const (
	ClusterDescriptor       ClusterID = "Descriptor"
	ClusterBasicInformation ClusterID = "BasicInformation"
	ClusterIdentify         ClusterID = "Identify"
	ClusterBooleanState     ClusterID = "BooleanState"
	ClusterPowerSource      ClusterID = "PowerSource"
	ClusterEveHistory       ClusterID = "EveHistory"
)

// Attribute names.
const (
	AttrDeviceTypeList = "deviceTypeList"
	AttrServerList     = "serverList"

	AttrVendorName            = "vendorName"
	AttrVendorID              = "vendorId"
	AttrProductName           = "productName"
	AttrProductID             = "productId"
	AttrNodeLabel             = "nodeLabel"
	AttrSerialNumber          = "serialNumber"
	AttrSoftwareVersion       = "softwareVersion"
	AttrSoftwareVersionString = "softwareVersionString"
	AttrHardwareVersion       = "hardwareVersion"
	AttrHardwareVersionString = "hardwareVersionString"
	AttrUniqueID              = "uniqueId"

	AttrIdentifyTime = "identifyTime"
	AttrIdentifyType = "identifyType"

	AttrStateValue = "stateValue"

	AttrStatus                    = "status"
	AttrOrder                     = "order"
	AttrDescription               = "description"
	AttrBatVoltage                = "batVoltage"
	AttrBatPercentRemaining       = "batPercentRemaining"
	AttrBatChargeLevel            = "batChargeLevel"
	AttrBatReplacementNeeded      = "batReplacementNeeded"
	AttrBatReplaceability         = "batReplaceability"
	AttrBatReplacementDescription = "batReplacementDescription"
	AttrBatQuantity               = "batQuantity"
)

// Event names.
const (
	EventStateChange = "stateChange"
)

// Command names.
const (
	CommandIdentify      = "identify"
	CommandTriggerEffect = "triggerEffect"
)

// Command request fields.
const (
	FieldIdentifyTime     = "identifyTime"
	FieldEffectIdentifier = "effectIdentifier"
	FieldEffectVariant    = "effectVariant"
)

// ChargeLevel is the coarse battery charge indicator.
type ChargeLevel int

// Charge levels, numbered as on the wire.
const (
	ChargeLevelOk ChargeLevel = iota
	ChargeLevelWarning
	ChargeLevelCritical
)

// String returns the charge level name.
func (c ChargeLevel) String() string {
	switch c {
	case ChargeLevelOk:
		return "Ok"
	case ChargeLevelWarning:
		return "Warning"
	case ChargeLevelCritical:
		return "Critical"
	default:
		return fmt.Sprintf("ChargeLevel(%d)", int(c))
	}
}

// DeviceType identifies what kind of device an endpoint represents.
type DeviceType struct {
	Code     uint32 `json:"code"`
	Name     string `json:"name"`
	Revision int    `json:"revision"`
}

// Device types used by the door sensor.
var (
	DeviceTypeContactSensor = DeviceType{Code: 0x0015, Name: "contactSensor", Revision: 1}
	DeviceTypePowerSource   = DeviceType{Code: 0x0011, Name: "powerSource", Revision: 1}
)

// Mode controls how the host exposes an endpoint.
type Mode string

// Endpoint modes.
const (
	// ModeDefault lets the host decide (child of an aggregator).
	ModeDefault Mode = ""

	// ModeServer exposes the endpoint as its own server node.
	ModeServer Mode = "server"
)

// CommandRequest carries the fields of an inbound command.
type CommandRequest struct {
	Command string         `json:"command"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Int returns an integer field. JSON numbers decode as float64 and are
// accepted when they hold a whole value.
func (r CommandRequest) Int(name string) (int, error) {
	raw, ok := r.Fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s missing", ErrInvalidCommand, name)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidCommand, name)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidCommand, name, raw)
	}
}

// CommandHandler handles a command delivered to an endpoint.
type CommandHandler func(ctx context.Context, req CommandRequest) error

// Proxy is the narrow view of a device that the simulation engine drives.
type Proxy interface {
	GetAttribute(cluster ClusterID, attribute string) (any, error)
	SetAttribute(cluster ClusterID, attribute string, value any) error
	TriggerEvent(cluster ClusterID, event string, payload map[string]any) error
	AddCommandHandler(command string, handler CommandHandler)
}

// AttributeChange describes an attribute write that changed a value.
type AttributeChange struct {
	EndpointID string
	Cluster    ClusterID
	Attribute  string
	Previous   any
	Value      any
}

// EventNotice describes an event raised by a cluster.
type EventNotice struct {
	EndpointID string
	Cluster    ClusterID
	Event      string
	Payload    map[string]any
}

// Listener observes changes on an endpoint.
type Listener interface {
	AttributeChanged(change AttributeChange)
	EventTriggered(event EventNotice)
}

// Logger defines the logging interface used by the package.
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
