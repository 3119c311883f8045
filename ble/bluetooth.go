package ble

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// adapterScanner drives the platform's default BLE adapter. It remembers the
// connections it created; peripherals connected by anything else report as
// disconnected, same as the adapter itself would.
type adapterScanner struct {
	adapter *bluetooth.Adapter

	mu        sync.Mutex
	enabled   bool
	known     map[string]bluetooth.Address
	connected map[string]bluetooth.Device
}

func NewScanner() Scanner {
	return &adapterScanner{
		adapter:   bluetooth.DefaultAdapter,
		known:     make(map[string]bluetooth.Address),
		connected: make(map[string]bluetooth.Device),
	}
}

func (s *adapterScanner) enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return nil
	}
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("enabling bluetooth adapter: %w", err)
	}
	s.enabled = true
	return nil
}

func (s *adapterScanner) Scan(ctx context.Context, window time.Duration) ([]Peripheral, error) {
	if err := s.enable(); err != nil {
		return nil, err
	}

	names := make(map[string]string)
	var namesMu sync.Mutex
	done := make(chan error, 1)

	go func() {
		done <- s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			addr := result.Address.String()
			s.mu.Lock()
			s.known[addr] = result.Address
			s.mu.Unlock()
			namesMu.Lock()
			if name := result.LocalName(); name != "" || names[addr] == "" {
				names[addr] = name
			}
			namesMu.Unlock()
		})
	}()

	select {
	case <-time.After(window):
	case <-ctx.Done():
	}
	if err := s.adapter.StopScan(); err != nil {
		return nil, fmt.Errorf("stopping scan: %w", err)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}

	namesMu.Lock()
	defer namesMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	peripherals := make([]Peripheral, 0, len(names))
	for addr, name := range names {
		_, conn := s.connected[addr]
		peripherals = append(peripherals, Peripheral{Name: name, Address: addr, Connected: conn})
	}
	sort.Slice(peripherals, func(i, j int) bool {
		return peripherals[i].Address < peripherals[j].Address
	})
	return peripherals, nil
}

func (s *adapterScanner) Toggle(ctx context.Context, address string) error {
	if err := s.enable(); err != nil {
		return err
	}

	s.mu.Lock()
	dev, connected := s.connected[address]
	s.mu.Unlock()

	if connected {
		s.mu.Lock()
		delete(s.connected, address)
		s.mu.Unlock()
		if err := dev.Disconnect(); err != nil {
			return fmt.Errorf("disconnecting %s: %w", address, err)
		}
		return nil
	}

	addr, err := s.resolve(ctx, address)
	if err != nil {
		return err
	}
	dev, err = s.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting %s: %w", address, err)
	}
	s.mu.Lock()
	s.connected[address] = dev
	s.mu.Unlock()
	return nil
}

// resolve maps an address string back to a connectable adapter address,
// rescanning briefly when the peripheral was not seen before.
func (s *adapterScanner) resolve(ctx context.Context, address string) (bluetooth.Address, error) {
	s.mu.Lock()
	addr, ok := s.known[address]
	s.mu.Unlock()
	if ok {
		return addr, nil
	}

	if _, err := s.Scan(ctx, 1500*time.Millisecond); err != nil {
		return bluetooth.Address{}, err
	}

	s.mu.Lock()
	addr, ok = s.known[address]
	s.mu.Unlock()
	if !ok {
		return bluetooth.Address{}, fmt.Errorf("peripheral %s not found", address)
	}
	return addr, nil
}
