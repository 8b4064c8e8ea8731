// Package device models the simulated sensor as a host-visible endpoint.
//
// An Endpoint is a set of clusters (capability blocks). Each cluster holds
// named attributes, may raise named events, and the endpoint as a whole
// accepts named commands. The simulation engine only sees the narrow Proxy
// interface; hosts use the concrete Endpoint to register the device, observe
// changes through Subscribe, and deliver commands through ExecuteCommand.
//
// # Clusters
//
// An Eve door endpoint carries six clusters:
//
//	Descriptor         device types and the cluster list (added by NewEndpoint)
//	BasicInformation   vendor, product and firmware identity
//	Identify           identify / triggerEffect commands
//	BooleanState       stateValue (true = closed), stateChange event
//	PowerSource        replaceable battery: percent, charge level, voltage
//	EveHistory         read-only usage history, owned by the history aggregator
//
// # Battery units
//
// PowerSource.batPercentRemaining is stored in half-percent units (0-200),
// so 150 means 75 %.
//
// # Thread Safety
//
// All Endpoint methods are safe for concurrent use. Listeners are invoked
// synchronously after the endpoint's lock has been released.
package device
