package doctor

import (
	"context"
	"fmt"
	"time"

	"noisedeck/audio"
	"noisedeck/ble"
	"noisedeck/log"
	"noisedeck/noise"
)

// Run executes system diagnostics and returns an exit code (0=all pass,
// 1=any fail).
func Run() int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("noisedeck doctor - system diagnostics")
	fmt.Println("=====================================")

	allPass := true

	if !checkLogDir() {
		allPass = false
	}
	if !checkPlayback() {
		allPass = false
	}
	if !checkBluetooth() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkLogDir() bool {
	fmt.Println()
	fmt.Println("[1/3] Log directory")

	dir, err := log.ResolveDir("")
	if err != nil {
		fmt.Printf("  FAIL: cannot resolve log directory: %v\n", err)
		return false
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", dir)
	return true
}

func checkPlayback() bool {
	fmt.Println()
	fmt.Println("[2/3] Audio playback")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}

	devices, err := ctx.Devices()
	if err != nil {
		ctx.Close()
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		ctx.Close()
		fmt.Println("  FAIL: no playback devices found")
		return false
	}
	for i, d := range devices {
		fmt.Printf("    %d. %s\n", i, d.Name)
	}

	// Quiet burst through the full playback path on the default device.
	svc := noise.NewService(func() (audio.Context, error) { return ctx, nil }, 10*time.Millisecond)
	defer svc.Close()

	cfg := noise.DefaultConfig()
	cfg.Amplitude = 0.05
	cfg.DurationMs = 200
	if err := svc.Start(cfg); err != nil {
		fmt.Printf("  FAIL: playback start: %v\n", err)
		return false
	}
	time.Sleep(400 * time.Millisecond)
	if svc.Status().Running {
		fmt.Println("  FAIL: deadline did not stop playback")
		return false
	}

	fmt.Printf("  PASS: %d device(s), test burst played\n", len(devices))
	return true
}

func checkBluetooth() bool {
	fmt.Println()
	fmt.Println("[3/3] Bluetooth adapter")

	scanner := ble.NewScanner()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peripherals, err := scanner.Scan(ctx, 1500*time.Millisecond)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: adapter up, %d peripheral(s) in range\n", len(peripherals))
	return true
}
