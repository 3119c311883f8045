package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

// ResolveDir determines the log directory with priority:
// flag > NOISEDECK_LOG_PATH env > OS default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	envPath := os.Getenv("NOISEDECK_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

// PlaybackStart records the parameters of a newly started noise playback.
func PlaybackStart(id string, rate, channels uint32, amplitude float32, durationMs uint32, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("playback_id", id).
		Uint32("rate", rate).
		Uint32("channels", channels).
		Float32("amplitude", amplitude).
		Uint32("duration_ms", durationMs).
		Str("device", device).
		Msg("playback_start")
}

// PlaybackStop records the end of a playback, with reason "stop" for an
// explicit request or "deadline" for a monitor-enforced one.
func PlaybackStop(id, reason string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("playback_id", id).
		Str("reason", reason).
		Msg("playback_stop")
}

// DeviceSelected records an output-device selection change. Index -1 means
// the selection was cleared.
func DeviceSelected(index int) {
	if !logReady {
		return
	}
	diagLog.Info().Int("index", index).Msg("device_selected")
}

// PeripheralToggle records a BLE connect/disconnect attempt.
func PeripheralToggle(address, action string, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info().Str("address", address).Str("action", action)
	if err != nil {
		ev = diagLog.Error().Str("address", address).Str("action", action).Err(err)
	}
	ev.Msg("peripheral_toggle")
}

// SessionStart records process startup with the bound address.
func SessionStart(addr string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("addr", addr).Msg("session_start")
}

// SessionEnd records process shutdown.
func SessionEnd() {
	if !logReady {
		return
	}
	diagLog.Info().Msg("session_end")
}
