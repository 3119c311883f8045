package ble

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeScanner is an in-memory Scanner for tests.
type FakeScanner struct {
	mu          sync.Mutex
	peripherals []Peripheral
	scanErr     error
	toggleErr   error
	toggled     []string
}

func NewFakeScanner(peripherals ...Peripheral) *FakeScanner {
	return &FakeScanner{peripherals: peripherals}
}

func (f *FakeScanner) FailScan(err error) {
	f.mu.Lock()
	f.scanErr = err
	f.mu.Unlock()
}

func (f *FakeScanner) FailToggle(err error) {
	f.mu.Lock()
	f.toggleErr = err
	f.mu.Unlock()
}

func (f *FakeScanner) Scan(_ context.Context, _ time.Duration) ([]Peripheral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := make([]Peripheral, len(f.peripherals))
	copy(out, f.peripherals)
	return out, nil
}

func (f *FakeScanner) Toggle(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return f.toggleErr
	}
	f.toggled = append(f.toggled, address)
	for i := range f.peripherals {
		if f.peripherals[i].Address == address {
			f.peripherals[i].Connected = !f.peripherals[i].Connected
			return nil
		}
	}
	return fmt.Errorf("peripheral %s not found", address)
}

// Toggled returns the addresses passed to Toggle, in order.
func (f *FakeScanner) Toggled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.toggled))
	copy(out, f.toggled)
	return out
}
