// Package at24 drives AT24Cxx serial EEPROMs on a shared I2C bus.
//
// Writes are split on page boundaries. After each page the chip is polled
// for an ACK until its internal write cycle completes; the bus is released
// between polls so other devices can be used meanwhile.
package at24

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/oxplot/go-sharedi2c"
	"github.com/oxplot/go-sharedi2c/device"
)

// DefaultAddr is the address of a chip with all address pins tied low.
const DefaultAddr = 0x50

// Model describes the memory layout of one AT24 part.
type Model struct {
	Name     string
	Size     int
	PageSize int
	AddrSize sharedi2c.AddrSize
}

// Supported models.
var (
	AT24C02  = Model{Name: "AT24C02", Size: 256, PageSize: 8, AddrSize: sharedi2c.AddrSize8}
	AT24C32  = Model{Name: "AT24C32", Size: 4 << 10, PageSize: 32, AddrSize: sharedi2c.AddrSize16}
	AT24C64  = Model{Name: "AT24C64", Size: 8 << 10, PageSize: 32, AddrSize: sharedi2c.AddrSize16}
	AT24C256 = Model{Name: "AT24C256", Size: 32 << 10, PageSize: 64, AddrSize: sharedi2c.AddrSize16}
)

var models = []Model{AT24C02, AT24C32, AT24C64, AT24C256}

// ModelByName looks up a model by its part number, ignoring case.
func ModelByName(name string) (Model, error) {
	for _, m := range models {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return Model{}, errors.Errorf("unknown eeprom model %q", name)
}

var (
	ErrOutOfRange   = errors.New("at24: access out of range")
	ErrWriteTimeout = errors.New("at24: chip did not finish write cycle")
)

// Number of ACK polls after a page write, one per millisecond. Datasheets
// give a maximum write cycle of 5ms.
const pollTries = 10

// Dev is an AT24 EEPROM.
type Dev struct {
	dev   *device.Dev
	model Model
}

// New returns the EEPROM of the given model at addr on bus.
func New(bus *sharedi2c.LockedBus, addr uint16, model Model) *Dev {
	return &Dev{
		dev:   device.New(bus, addr, model.AddrSize),
		model: model,
	}
}

// Model returns the chip model.
func (d *Dev) Model() Model {
	return d.model
}

func (d *Dev) check(n int, off int64) error {
	if off < 0 || off+int64(n) > int64(d.model.Size) {
		return errors.Wrapf(ErrOutOfRange, "%d bytes at %d on %s", n, off, d.model.Name)
	}
	return nil
}

// ReadAt reads len(p) bytes starting at off in a single bus transfer.
func (d *Dev) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := d.check(len(p), off); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.dev.ReadRegs(ctx, uint32(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAt writes p starting at off, one bus transfer per page. The returned
// count only includes pages whose write cycle was seen to complete.
func (d *Dev) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := d.check(len(p), off); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) {
		addr := int(off) + n
		chunk := d.model.PageSize - addr%d.model.PageSize
		if chunk > len(p)-n {
			chunk = len(p) - n
		}
		if err := d.dev.WriteRegs(ctx, uint32(addr), p[n:n+chunk]); err != nil {
			return n, err
		}
		if err := d.waitReady(ctx); err != nil {
			return n, err
		}
		n += chunk
	}
	return n, nil
}

// waitReady polls the chip until it ACKs its address again.
func (d *Dev) waitReady(ctx context.Context) error {
	for i := 0; i < pollTries; i++ {
		time.Sleep(time.Millisecond)
		if err := d.dev.Probe(ctx); err == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrWriteTimeout
}
