// Package noise owns the white-noise playback session: one persistent output
// device, the sample synthesis that feeds it, and the deadline that bounds it.
package noise

// Config are the accepted playback parameters. A Config is never rejected;
// out-of-range fields are forced into range by Clamp before use and the
// result is immutable for the lifetime of the playback it starts.
type Config struct {
	SampleRate uint32
	Channels   uint32
	Amplitude  float32
	DurationMs uint32
}

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultAmplitude  = 0.2
	DefaultDurationMs = 3000

	minSampleRate = 8000
	maxChannels   = 8
	minDurationMs = 100
)

func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Amplitude:  DefaultAmplitude,
		DurationMs: DefaultDurationMs,
	}
}

// Clamp returns a copy with every field forced into its accepted range.
func (c Config) Clamp() Config {
	if c.Channels == 0 || c.Channels > maxChannels {
		c.Channels = DefaultChannels
	}
	if c.SampleRate < minSampleRate {
		c.SampleRate = minSampleRate
	}
	if c.Amplitude < 0 {
		c.Amplitude = 0
	}
	if c.Amplitude > 1 {
		c.Amplitude = 1
	}
	if c.DurationMs < minDurationMs {
		c.DurationMs = minDurationMs
	}
	return c
}

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223

	// Fixed seed so repeated runs produce the same sequence.
	defaultSeed = 1234567
)

// source generates amplitude-scaled white noise. It is created per playback
// instance before the device starts streaming and from then on touched only
// by the driver thread, so fill needs no lock. One LCG step per output
// sample; branch-free and allocation-free.
type source struct {
	state     uint32
	amplitude float32
}

// next advances the LCG and returns a sample in [-1, 1).
func (s *source) next() float32 {
	s.state = s.state*lcgMultiplier + lcgIncrement
	return float32(s.state&0x00FFFFFF)/float32(0x01000000)*2 - 1
}

// fill writes one sample per channel slot of the interleaved buffer.
func (s *source) fill(out []float32) {
	for i := range out {
		out[i] = s.next() * s.amplitude
	}
}
