package noise

import (
	"errors"
	"sync"
	"testing"
	"time"

	"noisedeck/audio"
)

func newTestService(t *testing.T, fake *audio.FakeContext, interval time.Duration) *Service {
	t.Helper()
	svc := NewService(func() (audio.Context, error) { return fake, nil }, interval)
	t.Cleanup(svc.Close)
	return svc
}

func waitStopped(t *testing.T, svc *Service, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !svc.Status().Running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for playback to stop")
}

func TestStartOpensAndStartsDevice(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !svc.Status().Running {
		t.Error("status not running after Start")
	}
	if fake.OpenHandles() != 1 {
		t.Errorf("open handles = %d, want 1", fake.OpenHandles())
	}
	if !fake.LastPlayback().Started() {
		t.Error("device not started")
	}
}

func TestStopIdempotent(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.Stop()
	if fake.OpenHandles() != 0 {
		t.Errorf("open handles after stop = %d, want 0", fake.OpenHandles())
	}
	// Second stop must be a no-op, not a double-free.
	svc.Stop()
	if svc.Status().Running {
		t.Error("running after double stop")
	}
	if fake.OpenHandles() != 0 {
		t.Errorf("open handles after double stop = %d, want 0", fake.OpenHandles())
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	svc.Stop()
	if svc.Status().Running {
		t.Error("running after stop on fresh service")
	}
}

func TestStartWhileRunningReconfigures(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	cfgA := Config{SampleRate: 44100, Channels: 1, Amplitude: 0.3, DurationMs: 5000}
	cfgB := Config{SampleRate: 48000, Channels: 4, Amplitude: 0.8, DurationMs: 1000}

	if err := svc.Start(cfgA); err != nil {
		t.Fatalf("Start(cfgA): %v", err)
	}
	first := fake.LastPlayback()
	if err := svc.Start(cfgB); err != nil {
		t.Fatalf("Start(cfgB): %v", err)
	}

	if !first.Closed() {
		t.Error("first handle not closed after reconfigure")
	}
	if fake.OpenHandles() != 1 {
		t.Errorf("open handles = %d, want 1", fake.OpenHandles())
	}
	if fake.MaxOpenHandles() != 1 {
		t.Errorf("max simultaneous handles = %d, want 1", fake.MaxOpenHandles())
	}

	got := fake.LastPlayback().Config()
	if got.SampleRate != cfgB.SampleRate || got.Channels != cfgB.Channels {
		t.Errorf("second handle config = %+v, want rate=%d channels=%d", got, cfgB.SampleRate, cfgB.Channels)
	}

	info := svc.Status()
	if !info.Running || info.Channels != 4 || info.SampleRate != 48000 {
		t.Errorf("status = %+v, want running with cfgB parameters", info)
	}
}

func TestDeadlineStopsPlayback(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, 10*time.Millisecond)

	cfg := DefaultConfig()
	cfg.DurationMs = 200
	if err := svc.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitStopped(t, svc, time.Second)
	if fake.OpenHandles() != 0 {
		t.Errorf("open handles after deadline = %d, want 0", fake.OpenHandles())
	}
}

func TestRestartReplacesDeadline(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, 10*time.Millisecond)

	cfg := DefaultConfig()
	cfg.DurationMs = 150
	if err := svc.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	// Restart near the first deadline; the fresh deadline must win.
	cfg.DurationMs = 400
	if err := svc.Start(cfg); err != nil {
		t.Fatalf("restart: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if !svc.Status().Running {
		t.Fatal("stopped by stale deadline from first start")
	}
	waitStopped(t, svc, time.Second)
}

func TestOpenFailureLeavesStopped(t *testing.T) {
	fake := audio.NewFakeContext()
	fake.FailOpen(errors.New("device busy"))
	svc := newTestService(t, fake, time.Minute)

	if err := svc.Start(DefaultConfig()); err == nil {
		t.Fatal("Start succeeded with failing open")
	}
	if svc.Status().Running {
		t.Error("running after failed open")
	}
	if fake.OpenHandles() != 0 {
		t.Errorf("open handles = %d, want 0", fake.OpenHandles())
	}
}

func TestStartFailureReleasesHandle(t *testing.T) {
	fake := audio.NewFakeContext()
	fake.FailStart(errors.New("driver refused"))
	svc := newTestService(t, fake, time.Minute)

	if err := svc.Start(DefaultConfig()); err == nil {
		t.Fatal("Start succeeded with failing device start")
	}
	if svc.Status().Running {
		t.Error("running after failed device start")
	}
	if fake.OpenHandles() != 0 {
		t.Errorf("open handles = %d, want 0 (leaked on start failure)", fake.OpenHandles())
	}
}

func TestContextInitFailureIsSticky(t *testing.T) {
	calls := 0
	svc := NewService(func() (audio.Context, error) {
		calls++
		return nil, errors.New("no backend")
	}, time.Minute)
	t.Cleanup(svc.Close)

	if err := svc.Start(DefaultConfig()); !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("Start error = %v, want ErrAudioUnavailable", err)
	}
	if err := svc.Start(DefaultConfig()); !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("second Start error = %v, want ErrAudioUnavailable", err)
	}
	if devices := svc.Devices(); len(devices) != 0 {
		t.Errorf("Devices() = %v, want empty", devices)
	}
	if calls != 1 {
		t.Errorf("context factory called %d times, want 1", calls)
	}
}

func TestSelectDeviceBounds(t *testing.T) {
	fake := audio.NewFakeContext(
		audio.DeviceInfo{ID: "00", Name: "Speakers"},
		audio.DeviceInfo{ID: "01", Name: "Headphones"},
	)
	svc := newTestService(t, fake, time.Minute)

	svc.SelectDevice(1)
	if got := svc.Selected(); got != 1 {
		t.Errorf("Selected() = %d, want 1", got)
	}
	svc.SelectDevice(5)
	if got := svc.Selected(); got != -1 {
		t.Errorf("Selected() after out-of-range = %d, want -1", got)
	}
	svc.SelectDevice(-3)
	if got := svc.Selected(); got != -1 {
		t.Errorf("Selected() after negative = %d, want -1", got)
	}
}

func TestSelectionUsedAtStart(t *testing.T) {
	fake := audio.NewFakeContext(
		audio.DeviceInfo{ID: "00", Name: "Speakers"},
		audio.DeviceInfo{ID: "01", Name: "Headphones"},
	)
	svc := newTestService(t, fake, time.Minute)

	svc.SelectDevice(1)
	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev := fake.LastPlayback().Device()
	if dev == nil || dev.Name != "Headphones" {
		t.Errorf("opened device = %v, want Headphones", dev)
	}

	// Clearing the selection must not touch the running stream.
	svc.SelectDevice(-1)
	if !svc.Status().Running {
		t.Error("selection change stopped a running stream")
	}
	if got := fake.LastPlayback().Device(); got == nil || got.Name != "Headphones" {
		t.Error("running stream's device changed retroactively")
	}

	// The next start picks up the cleared selection (system default).
	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := fake.LastPlayback().Device(); got != nil {
		t.Errorf("opened device = %v, want system default (nil)", got)
	}
}

func TestDevicesMarksSelection(t *testing.T) {
	fake := audio.NewFakeContext(
		audio.DeviceInfo{ID: "00", Name: "Speakers"},
		audio.DeviceInfo{ID: "01", Name: "Headphones"},
	)
	svc := newTestService(t, fake, time.Minute)

	svc.SelectDevice(0)
	devices := svc.Devices()
	if len(devices) != 2 {
		t.Fatalf("Devices() returned %d entries, want 2", len(devices))
	}
	if !devices[0].Selected || devices[1].Selected {
		t.Errorf("selection flags = %v/%v, want true/false", devices[0].Selected, devices[1].Selected)
	}
}

func TestEnumerationFailureYieldsEmptyList(t *testing.T) {
	fake := audio.NewFakeContext()
	fake.FailEnumeration(errors.New("backend gone"))
	svc := newTestService(t, fake, time.Minute)

	if devices := svc.Devices(); len(devices) != 0 {
		t.Errorf("Devices() = %v, want empty", devices)
	}
	// Stale selection with failed enumeration: start still succeeds on the
	// default device.
	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := fake.LastPlayback().Device(); got != nil {
		t.Errorf("opened device = %v, want system default (nil)", got)
	}
}

func TestConcurrentStartStop(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if (n+j)%3 == 0 {
					svc.Stop()
				} else {
					cfg := DefaultConfig()
					cfg.DurationMs = 200
					svc.Start(cfg)
				}
			}
		}(i)
	}
	wg.Wait()

	if fake.MaxOpenHandles() > 1 {
		t.Errorf("max simultaneous handles = %d, want <= 1", fake.MaxOpenHandles())
	}
	info := svc.Status()
	handles := fake.OpenHandles()
	if info.Running && handles != 1 {
		t.Errorf("running with %d handles, want 1", handles)
	}
	if !info.Running && handles != 0 {
		t.Errorf("stopped with %d handles, want 0", handles)
	}
}

func TestStatusSnapshot(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	cfg := Config{SampleRate: 44100, Channels: 2, Amplitude: 0.5, DurationMs: 60000}
	if err := svc.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	info := svc.Status()
	if info.PlaybackID == "" {
		t.Error("no playback ID on running session")
	}
	if info.RemainingMs <= 0 || info.RemainingMs > 60000 {
		t.Errorf("RemainingMs = %d, want (0, 60000]", info.RemainingMs)
	}

	svc.Stop()
	info = svc.Status()
	if info.Running || info.PlaybackID != "" || info.RemainingMs != 0 {
		t.Errorf("stopped status = %+v, want zeroed", info)
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	sub := svc.Subscribe()
	defer svc.Unsubscribe(sub)

	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case info := <-sub:
		if !info.Running {
			t.Errorf("first update = %+v, want running", info)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for start update")
	}

	svc.Stop()
	select {
	case info := <-sub:
		if info.Running {
			t.Errorf("second update = %+v, want stopped", info)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stop update")
	}
}

func TestCloseStopsRunningPlayback(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := NewService(func() (audio.Context, error) { return fake, nil }, time.Minute)

	if err := svc.Start(DefaultConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.Close()
	svc.Close() // idempotent

	if fake.OpenHandles() != 0 {
		t.Errorf("open handles after Close = %d, want 0", fake.OpenHandles())
	}
	if !fake.Closed() {
		t.Error("audio context not closed")
	}
}

func TestRenderedSamplesMatchAmplitude(t *testing.T) {
	fake := audio.NewFakeContext()
	svc := newTestService(t, fake, time.Minute)

	cfg := DefaultConfig()
	cfg.Amplitude = 0.25
	if err := svc.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out := fake.LastPlayback().Render(256)
	nonzero := false
	for i, v := range out {
		if v < -0.25 || v >= 0.25 {
			t.Fatalf("sample %d = %v outside [-0.25, 0.25)", i, v)
		}
		if v != 0 {
			nonzero = true
		}
	}
	if !nonzero {
		t.Error("rendered buffer is all silence")
	}
}
