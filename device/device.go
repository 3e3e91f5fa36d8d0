// Package device provides helpers for talking to register based chips on a
// shared bus, and adapters that let existing periph.io and TinyGo device
// drivers run on top of a sharedi2c.LockedBus.
package device

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"github.com/oxplot/go-sharedi2c"
)

// Dev is a chip at a fixed address whose registers are addressed with
// regSize wide register numbers. Every method is a single guarded bus call.
type Dev struct {
	bus     *sharedi2c.LockedBus
	addr    uint16
	regSize sharedi2c.AddrSize
}

// New returns a device at addr on bus.
func New(bus *sharedi2c.LockedBus, addr uint16, regSize sharedi2c.AddrSize) *Dev {
	return &Dev{bus: bus, addr: addr, regSize: regSize}
}

// Addr returns the address of the device.
func (d *Dev) Addr() uint16 {
	return d.addr
}

func (d *Dev) String() string {
	return fmt.Sprintf("i2c device %#02x", d.addr)
}

// ReadReg reads a single register.
func (d *Dev) ReadReg(ctx context.Context, reg uint32) (byte, error) {
	var b [1]byte
	if err := d.bus.ReadFromMemInto(ctx, d.addr, reg, b[:], d.regSize); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteReg writes a single register.
func (d *Dev) WriteReg(ctx context.Context, reg uint32, v byte) error {
	return d.bus.WriteToMem(ctx, d.addr, reg, []byte{v}, d.regSize)
}

// ReadRegs fills buf starting at register reg.
func (d *Dev) ReadRegs(ctx context.Context, reg uint32, buf []byte) error {
	return d.bus.ReadFromMemInto(ctx, d.addr, reg, buf, d.regSize)
}

// WriteRegs writes buf starting at register reg.
func (d *Dev) WriteRegs(ctx context.Context, reg uint32, buf []byte) error {
	return d.bus.WriteToMem(ctx, d.addr, reg, buf, d.regSize)
}

// Probe returns nil if the device acknowledges its address.
func (d *Dev) Probe(ctx context.Context) error {
	var b [1]byte
	return d.bus.ReadFromInto(ctx, d.addr, b[:], true)
}

// Port exposes a LockedBus through the single transfer bus interfaces used
// by periph.io and TinyGo device drivers. Every transfer is a guarded call
// made with the context given to NewPort.
type Port struct {
	ctx context.Context
	bus *sharedi2c.LockedBus
}

var (
	_ i2c.Bus     = (*Port)(nil)
	_ drivers.I2C = (*Port)(nil)
)

// NewPort binds ctx to bus. Lock waits started through the port give up
// once ctx is done.
func NewPort(ctx context.Context, bus *sharedi2c.LockedBus) *Port {
	return &Port{ctx: ctx, bus: bus}
}

// Tx implements i2c.Bus and drivers.I2C.
func (p *Port) Tx(addr uint16, w, r []byte) error {
	return p.bus.Tx(p.ctx, addr, w, r)
}

// SetSpeed is not supported: the speed is fixed when the bus is opened.
func (p *Port) SetSpeed(f physic.Frequency) error {
	return sharedi2c.ErrNotSupported
}

func (p *Port) String() string {
	return "sharedi2c"
}

// ReadRegister implements drivers.I2C.
func (p *Port) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return p.bus.ReadFromMemInto(p.ctx, uint16(addr), uint32(r), buf, sharedi2c.AddrSize8)
}

// WriteRegister implements drivers.I2C.
func (p *Port) WriteRegister(addr uint8, r uint8, buf []byte) error {
	return p.bus.WriteToMem(p.ctx, uint16(addr), uint32(r), buf, sharedi2c.AddrSize8)
}
