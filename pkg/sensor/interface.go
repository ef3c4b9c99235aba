package sensor

// Device defines the interface for frame sources (real hardware or mocked).
type Device interface {
	Connect() error
	Close() error
	Frames() <-chan Frame
	Reset() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure GPIO implements Device.
var _ Device = (*GPIO)(nil)
