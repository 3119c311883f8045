package noise

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"noisedeck/audio"
	"noisedeck/log"
)

// ErrAudioUnavailable is returned by Start when the audio backend could not
// be initialized. Enumeration failures are not errors; they surface as an
// empty device list.
var ErrAudioUnavailable = errors.New("audio backend unavailable")

// DefaultMonitorInterval is how often the deadline monitor wakes up.
const DefaultMonitorInterval = 50 * time.Millisecond

// StatusInfo is a point-in-time snapshot of the playback session.
type StatusInfo struct {
	Running     bool    `json:"running"`
	PlaybackID  string  `json:"playback_id,omitempty"`
	SampleRate  uint32  `json:"rate,omitempty"`
	Channels    uint32  `json:"channels,omitempty"`
	Amplitude   float32 `json:"amplitude,omitempty"`
	RemainingMs int64   `json:"remaining_ms,omitempty"`
}

// Device is one enumerated playback device plus whether it is the current
// selection target.
type Device struct {
	Index    int
	Name     string
	Selected bool
}

// Service owns all mutable playback state: the single device handle, its
// configuration, the output-device selection, and the deadline monitor.
// Every control mutation and the monitor's check-and-stop serialize on one
// mutex; the audio callback never takes it (see source).
type Service struct {
	newContext func() (audio.Context, error)
	interval   time.Duration

	mu         sync.Mutex
	ctx        audio.Context
	ctxFailed  bool
	selected   int
	running    bool
	cfg        Config
	playback   audio.PlaybackDevice
	deadline   time.Time
	playbackID string

	stopMonitor chan struct{}
	monitorDone chan struct{}
	closeOnce   sync.Once

	subsMu sync.Mutex
	subs   map[chan StatusInfo]struct{}
}

// NewService constructs the service and starts its deadline monitor. The
// audio context itself is created lazily on first use so a broken backend
// does not prevent the process from serving.
func NewService(newContext func() (audio.Context, error), interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	s := &Service{
		newContext:  newContext,
		interval:    interval,
		selected:    -1,
		stopMonitor: make(chan struct{}),
		monitorDone: make(chan struct{}),
		subs:        make(map[chan StatusInfo]struct{}),
	}
	go s.monitor()
	return s
}

// contextLocked lazily creates the audio context. A failed init is sticky:
// further calls fail fast instead of retrying the backend.
func (s *Service) contextLocked() (audio.Context, error) {
	if s.ctx != nil {
		return s.ctx, nil
	}
	if s.ctxFailed {
		return nil, ErrAudioUnavailable
	}
	ctx, err := s.newContext()
	if err != nil {
		s.ctxFailed = true
		log.Errorf("audio context init failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	s.ctx = ctx
	return ctx, nil
}

// Start clamps cfg and (re)starts playback with it. A running session is
// torn down first, so Start doubles as reconfigure; the old handle is closed
// before the new one is opened. On open/start failure the session is left
// stopped with no partial state.
func (s *Service) Start(cfg Config) error {
	cfg = cfg.Clamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.contextLocked()
	if err != nil {
		return err
	}

	s.stopLocked("restart")

	var target *audio.DeviceInfo
	deviceName := "default"
	if s.selected >= 0 {
		// Selection is an index hint into the current enumeration; if the
		// list changed or enumeration fails, fall back to the default device.
		devices, err := ctx.Devices()
		if err == nil && s.selected < len(devices) {
			target = &devices[s.selected]
			deviceName = target.Name
		}
	}

	src := &source{state: defaultSeed, amplitude: cfg.Amplitude}
	dev, err := ctx.NewPlayback(target, audio.PlaybackConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}, src.fill)
	if err != nil {
		log.Errorf("opening playback device: %v", err)
		return fmt.Errorf("opening playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Close()
		log.Errorf("starting playback device: %v", err)
		return fmt.Errorf("starting playback device: %w", err)
	}

	s.playback = dev
	s.running = true
	s.cfg = cfg
	s.playbackID = uuid.New().String()
	s.deadline = time.Now().Add(time.Duration(cfg.DurationMs) * time.Millisecond)

	log.PlaybackStart(s.playbackID, cfg.SampleRate, cfg.Channels, cfg.Amplitude, cfg.DurationMs, deviceName)
	s.notifyLocked()
	return nil
}

// Stop halts playback and releases the device handle. Calling it when
// already stopped is a no-op. When Stop returns the handle is closed.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopLocked("stop")
	s.mu.Unlock()
}

func (s *Service) stopLocked(reason string) {
	if s.playback != nil {
		s.playback.Stop()
		s.playback.Close()
		s.playback = nil
	}
	s.deadline = time.Time{}
	if s.running {
		s.running = false
		log.PlaybackStop(s.playbackID, reason)
		s.notifyLocked()
	}
}

// SelectDevice stores index as the target for the next Start. Out-of-range
// indexes clear the selection silently; a running stream is unaffected
// either way.
func (s *Service) SelectDevice(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	if ctx, err := s.contextLocked(); err == nil {
		if devices, err := ctx.Devices(); err == nil {
			count = len(devices)
		}
	}
	if index < 0 || index >= count {
		s.selected = -1
	} else {
		s.selected = index
	}
	log.DeviceSelected(s.selected)
}

// Devices enumerates playback devices, marking the current selection. A
// broken backend or failed enumeration yields an empty list.
func (s *Service) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.contextLocked()
	if err != nil {
		return nil
	}
	infos, err := ctx.Devices()
	if err != nil {
		log.Warnf("enumerating playback devices: %v", err)
		return nil
	}
	devices := make([]Device, len(infos))
	for i, d := range infos {
		devices[i] = Device{Index: i, Name: d.Name, Selected: i == s.selected}
	}
	return devices
}

// Selected returns the stored device index, or -1 when no selection is set.
func (s *Service) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Service) Status() StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Service) statusLocked() StatusInfo {
	info := StatusInfo{Running: s.running}
	if s.running {
		info.PlaybackID = s.playbackID
		info.SampleRate = s.cfg.SampleRate
		info.Channels = s.cfg.Channels
		info.Amplitude = s.cfg.Amplitude
		if remaining := time.Until(s.deadline); remaining > 0 {
			info.RemainingMs = remaining.Milliseconds()
		}
	}
	return info
}

// Subscribe registers a status listener. Updates that arrive faster than the
// listener drains are dropped, never blocked on.
func (s *Service) Subscribe() chan StatusInfo {
	ch := make(chan StatusInfo, 4)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

func (s *Service) Unsubscribe(ch chan StatusInfo) {
	s.subsMu.Lock()
	delete(s.subs, ch)
	s.subsMu.Unlock()
}

func (s *Service) notifyLocked() {
	info := s.statusLocked()
	s.subsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- info:
		default:
		}
	}
	s.subsMu.Unlock()
}

// monitor enforces deadlines. It sleeps between checks and never holds the
// lock while sleeping; observing a stopped session is the common case and
// does nothing.
func (s *Service) monitor() {
	defer close(s.monitorDone)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopMonitor:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.running && !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
				s.stopLocked("deadline")
			}
			s.mu.Unlock()
		}
	}
}

// Close stops the monitor, force-stops any running playback, and releases
// the audio context. Safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.stopMonitor)
		<-s.monitorDone

		s.mu.Lock()
		s.stopLocked("shutdown")
		if s.ctx != nil {
			s.ctx.Close()
			s.ctx = nil
		}
		s.mu.Unlock()
	})
}
