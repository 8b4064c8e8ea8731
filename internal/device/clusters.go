package device

// BasicInformation identifies the vendor, product and firmware of a device.
type BasicInformation struct {
	DeviceName            string
	SerialNumber          string
	VendorID              int
	VendorName            string
	ProductID             int
	ProductName           string
	SoftwareVersion       int
	SoftwareVersionString string
	HardwareVersion       int
	HardwareVersionString string
}

// maxHalfPercent is batPercentRemaining at a full battery.
const maxHalfPercent = 200

// Power source constants.
const (
	powerSourceStatusActive      = 1
	batReplaceabilityUserReplace = 2
)

// CreateDefaultIdentifyCluster adds the Identify cluster with identify time 0.
func (e *Endpoint) CreateDefaultIdentifyCluster() error {
	_, err := e.AddCluster(ClusterSpec{
		ID: ClusterIdentify,
		Attributes: map[string]any{
			AttrIdentifyTime: 0,
			AttrIdentifyType: 0,
		},
	})
	return err
}

// CreateDefaultBasicInformationCluster adds the BasicInformation cluster.
// Hardware version defaults to 1 / "1.0.0" when unset.
func (e *Endpoint) CreateDefaultBasicInformationCluster(info BasicInformation) error {
	if info.HardwareVersion == 0 {
		info.HardwareVersion = 1
	}
	if info.HardwareVersionString == "" {
		info.HardwareVersionString = "1.0.0"
	}

	_, err := e.AddCluster(ClusterSpec{
		ID: ClusterBasicInformation,
		Attributes: map[string]any{
			AttrVendorName:            info.VendorName,
			AttrVendorID:              info.VendorID,
			AttrProductName:           info.ProductName,
			AttrProductID:             info.ProductID,
			AttrNodeLabel:             info.DeviceName,
			AttrSerialNumber:          info.SerialNumber,
			AttrSoftwareVersion:       info.SoftwareVersion,
			AttrSoftwareVersionString: info.SoftwareVersionString,
			AttrHardwareVersion:       info.HardwareVersion,
			AttrHardwareVersionString: info.HardwareVersionString,
			AttrUniqueID:              info.SerialNumber,
		},
	})
	return err
}

// CreateDefaultBooleanStateCluster adds the BooleanState cluster with the
// given initial contact value (true = closed).
func (e *Endpoint) CreateDefaultBooleanStateCluster(contact bool) error {
	_, err := e.AddCluster(ClusterSpec{
		ID: ClusterBooleanState,
		Attributes: map[string]any{
			AttrStateValue: contact,
		},
		Events: []string{EventStateChange},
	})
	return err
}

// CreateDefaultPowerSourceReplaceableBatteryCluster adds a PowerSource cluster
// for a user-replaceable battery.
//
// Parameters:
//   - percent: Remaining charge in whole percent (stored as half-percent units)
//   - level: Initial charge level
//   - voltageMV: Battery voltage in millivolts
//   - description: Replacement battery description (e.g., "CR2450")
//   - quantity: Number of batteries
func (e *Endpoint) CreateDefaultPowerSourceReplaceableBatteryCluster(percent int, level ChargeLevel, voltageMV int, description string, quantity int) error {
	halfPercent := min(max(percent*2, 0), maxHalfPercent)

	_, err := e.AddCluster(ClusterSpec{
		ID: ClusterPowerSource,
		Attributes: map[string]any{
			AttrStatus:                    powerSourceStatusActive,
			AttrOrder:                     0,
			AttrDescription:               "Primary battery",
			AttrBatVoltage:                voltageMV,
			AttrBatPercentRemaining:       halfPercent,
			AttrBatChargeLevel:            level,
			AttrBatReplacementNeeded:      false,
			AttrBatReplaceability:         batReplaceabilityUserReplace,
			AttrBatReplacementDescription: description,
			AttrBatQuantity:               quantity,
		},
	})
	return err
}
