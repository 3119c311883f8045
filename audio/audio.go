package audio

// FillFunc produces the next block of interleaved float32 samples. It is
// invoked on the audio driver's own thread; implementations must not block,
// take locks, or allocate.
type FillFunc func(out []float32)

type PlaybackConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewPlayback(device *DeviceInfo, config PlaybackConfig, fill FillFunc) (PlaybackDevice, error)
	Close()
}

type PlaybackDevice interface {
	Start() error
	Stop()
	Close()
}
