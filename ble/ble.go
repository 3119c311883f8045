// Package ble exposes nearby Bluetooth LE peripherals as a stateless
// enumerate-and-act surface: scan a short window, toggle a connection.
package ble

import (
	"context"
	"time"
)

// Peripheral is one device seen during a scan window.
type Peripheral struct {
	Name      string
	Address   string
	Connected bool
}

type Scanner interface {
	// Scan collects advertisements for roughly the given window and returns
	// the peripherals seen, ordered by address.
	Scan(ctx context.Context, window time.Duration) ([]Peripheral, error)

	// Toggle connects the peripheral at address if we do not hold a
	// connection to it, and disconnects it if we do.
	Toggle(ctx context.Context, address string) error
}
