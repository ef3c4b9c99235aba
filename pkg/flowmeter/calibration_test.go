package flowmeter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferenceProperties(t *testing.T) {
	assert.Equal(t, 60.0, FS400A.Capacity)
	assert.Equal(t, 4.8, FS400A.KFactor)
	assert.Equal(t, 5.5, FS300A.KFactor)
	assert.Equal(t, 5.0, UncalibratedSensor.KFactor)

	for _, props := range []FlowSensorProperties{FS400A, FS300A, UncalibratedSensor} {
		assert.Len(t, props.MFactor, 10)
		for _, f := range props.MFactor {
			assert.Equal(t, 1.0, f)
		}
	}
}

func TestNewCalibration_ZeroValueSelectsDefault(t *testing.T) {
	cal := NewCalibration(FlowSensorProperties{})
	assert.Equal(t, FS400A, cal.Properties())
}

func TestCalibration_Accessors(t *testing.T) {
	cal := NewCalibration(FS400A)

	cal.SetCapacity(30)
	cal.SetKFactor(7.5)

	assert.Equal(t, 30.0, cal.Capacity())
	assert.Equal(t, 7.5, cal.KFactor())
}

func TestCalibration_SetMeterFactorKeepsFraction(t *testing.T) {
	cal := NewCalibration(FS400A)

	cal.SetMeterFactor(3, 1.05)

	assert.Equal(t, 1.05, cal.MeterFactor(3))
	props := cal.Properties()
	assert.Equal(t, 1.05, props.MFactor[3])
}

func TestCalibration_DecileClamping(t *testing.T) {
	tests := []struct {
		name      string
		decile    int
		wantIndex int
	}{
		{"below range", -1, 0},
		{"far below range", -100, 0},
		{"lowest", 0, 0},
		{"highest", 9, 9},
		{"above range", 10, 9},
		{"far above range", 250, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := NewCalibration(FS400A)
			cal.SetMeterFactor(tt.decile, 2.0)

			props := cal.Properties()
			assert.Equal(t, 2.0, props.MFactor[tt.wantIndex])
			// Only the clamped entry changed.
			for i, f := range props.MFactor {
				if i != tt.wantIndex {
					assert.Equal(t, 1.0, f, "decile %d", i)
				}
			}
		})
	}
}

func TestDefaultCopiedAtConstruction(t *testing.T) {
	m := New("D2", FlowSensorProperties{})

	// Mutating the meter's calibration must not write through to the
	// shared reference properties.
	cal := NewCalibration(m.Properties())
	cal.SetMeterFactor(0, 3.0)
	m.SetProperties(cal.Properties())

	assert.Equal(t, 1.0, FS400A.MFactor[0])
	assert.Equal(t, 3.0, m.Properties().MFactor[0])
}
