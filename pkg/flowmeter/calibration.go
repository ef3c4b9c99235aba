package flowmeter

// Calibration builds and inspects sensor properties one field at a time.
// It is a plain value holder with no runtime behavior beyond storage;
// wire the finished properties into a meter with New or SetProperties.
type Calibration struct {
	props FlowSensorProperties
}

// NewCalibration returns a Calibration seeded with the given properties.
// The zero value of FlowSensorProperties seeds FS400A.
func NewCalibration(props FlowSensorProperties) *Calibration {
	if props == (FlowSensorProperties{}) {
		props = FS400A
	}
	return &Calibration{props: props}
}

// Capacity returns the sensor capacity in l/min.
func (c *Calibration) Capacity() float64 { return c.props.Capacity }

// SetCapacity sets the sensor capacity in l/min.
func (c *Calibration) SetCapacity(capacity float64) { c.props.Capacity = capacity }

// KFactor returns the k-factor in (pulses/s)/(l/min).
func (c *Calibration) KFactor() float64 { return c.props.KFactor }

// SetKFactor sets the k-factor in (pulses/s)/(l/min).
func (c *Calibration) SetKFactor(kFactor float64) { c.props.KFactor = kFactor }

// MeterFactor returns the correction factor for a decile in [0,9].
// Out-of-range deciles are clamped.
func (c *Calibration) MeterFactor(decile int) float64 {
	return c.props.MFactor[clampDecile(decile)]
}

// SetMeterFactor sets the correction factor for a decile in [0,9].
// Out-of-range deciles are clamped; adjacent entries are never touched.
// The factor is real-valued: fractional corrections such as 1.05 are
// stored exactly.
func (c *Calibration) SetMeterFactor(decile int, factor float64) {
	c.props.MFactor[clampDecile(decile)] = factor
}

// Properties returns a copy of the assembled sensor properties.
func (c *Calibration) Properties() FlowSensorProperties { return c.props }

func clampDecile(decile int) int {
	if decile < 0 {
		return 0
	}
	if decile > 9 {
		return 9
	}
	return decile
}
