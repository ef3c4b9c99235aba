package flowmeter

// FlowSensorProperties describe a hall-effect flow sensor's nameplate
// ratings and its empirical calibration.
//
// Capacity is the upper limit of the sensor's linear range in l/min.
// KFactor relates pulse frequency to flow rate in (pulses/s)/(l/min).
// MFactor holds one multiplicative correction factor per decile of the
// capacity range; a perfectly linear sensor has all entries at 1.0.
type FlowSensorProperties struct {
	Capacity float64
	KFactor  float64
	MFactor  [10]float64
}

// Reference sensor properties. New copies the chosen properties into the
// meter, so mutating these afterwards does not affect existing meters.
var (
	// UncalibratedSensor is a generic hall-effect sensor with no
	// empirical correction applied.
	UncalibratedSensor = FlowSensorProperties{
		Capacity: 60,
		KFactor:  5,
		MFactor:  [10]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}

	// FS300A is a G3/4" sensor rated 1-60 l/min.
	FS300A = FlowSensorProperties{
		Capacity: 60,
		KFactor:  5.5,
		MFactor:  [10]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}

	// FS400A is a G1" sensor rated 1-60 l/min. It is the default when no
	// properties are supplied at construction.
	FS400A = FlowSensorProperties{
		Capacity: 60,
		KFactor:  4.8,
		MFactor:  [10]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}
)
