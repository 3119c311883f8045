package audio

import (
	"sync"
)

// FakeContext is an in-memory Context for tests. It tracks how many playback
// handles are open at once so tests can assert the single-handle invariant,
// and lets callers inject enumeration/open/start failures.
type FakeContext struct {
	mu        sync.Mutex
	devices   []DeviceInfo
	open      int
	maxOpen   int
	enumErr   error
	openErr   error
	startErr  error
	playbacks []*FakePlayback
	closed    bool
}

func NewFakeContext(devices ...DeviceInfo) *FakeContext {
	return &FakeContext{devices: devices}
}

func (f *FakeContext) FailEnumeration(err error) {
	f.mu.Lock()
	f.enumErr = err
	f.mu.Unlock()
}

func (f *FakeContext) FailOpen(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *FakeContext) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	out := make([]DeviceInfo, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *FakeContext) NewPlayback(device *DeviceInfo, config PlaybackConfig, fill FillFunc) (PlaybackDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	p := &FakePlayback{ctx: f, config: config, fill: fill, startErr: f.startErr}
	if device != nil {
		d := *device
		p.device = &d
	}
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	f.playbacks = append(f.playbacks, p)
	return p, nil
}

func (f *FakeContext) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeContext) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// OpenHandles reports how many playback devices are currently open.
func (f *FakeContext) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// MaxOpenHandles reports the highest number of simultaneously open handles
// observed over the context's lifetime.
func (f *FakeContext) MaxOpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

// LastPlayback returns the most recently opened playback handle, or nil.
func (f *FakeContext) LastPlayback() *FakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.playbacks) == 0 {
		return nil
	}
	return f.playbacks[len(f.playbacks)-1]
}

type FakePlayback struct {
	ctx      *FakeContext
	device   *DeviceInfo
	config   PlaybackConfig
	fill     FillFunc
	startErr error

	mu      sync.Mutex
	started bool
	closed  bool
}

func (p *FakePlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *FakePlayback) Stop() {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}

func (p *FakePlayback) Close() {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	if already {
		return
	}
	p.ctx.mu.Lock()
	p.ctx.open--
	p.ctx.mu.Unlock()
}

func (p *FakePlayback) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *FakePlayback) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Device returns the device the handle was opened against (nil means the
// system default).
func (p *FakePlayback) Device() *DeviceInfo {
	return p.device
}

func (p *FakePlayback) Config() PlaybackConfig {
	return p.config
}

// Render drives the fill callback the way the driver thread would, returning
// the produced samples.
func (p *FakePlayback) Render(frames int) []float32 {
	out := make([]float32, frames*int(p.config.Channels))
	p.fill(out)
	return out
}
