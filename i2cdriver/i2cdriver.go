// Package i2cdriver implements sharedi2c drivers on top of single method I2C
// ports such as periph's i2c.Bus, TinyGo's machine.I2C and bit-banged
// software ports.
//
// The Port interface is copied from TinyGo source code with minor
// modifications.
package i2cdriver

import (
	"io"

	"github.com/oxplot/go-sharedi2c"
)

// Port defines a minimum interface to I2C hardware with a single Tx method
// which allows a single driver implementation to work across many different
// µControllers and host platforms. This interface was originally defined in
// TinyGo.
type Port interface {

	// Tx performs a write and then a read transfer placing the result in r.
	//
	// Passing a nil value for w or r skips the transfer corresponding to write
	// or read, respectively.
	//
	//  port.Tx(addr, nil, r)
	// Performs only a read transfer.
	//
	//  port.Tx(addr, w, nil)
	// Performs only a write transfer.
	Tx(addr uint16, w, r []byte) error
}

// PortFunc is an adapter to allow the use of ordinary functions as Port.
type PortFunc func(addr uint16, w, r []byte) error

// Tx implements Port interface.
func (f PortFunc) Tx(addr uint16, w, r []byte) error {
	return f(addr, w, r)
}

// Addresses probed by Scan. 0x00-0x07 and 0x78-0x7F are reserved.
const (
	scanFirst = 0x08
	scanLast  = 0x77
)

// TxDriver implements sharedi2c.Driver on top of a Port. Every transfer on
// a Port ends with a STOP, so raw START/STOP framing, raw reads and writes,
// and addressed transfers with stop set to false are not supported and
// return sharedi2c.ErrNotSupported.
//
// TxDriver is not safe for concurrent use. Wrap it in a sharedi2c.LockedBus.
type TxDriver struct {
	port Port

	// Scratch space reused across transfers to avoid heap allocations on
	// every write.
	buf   []byte
	probe [1]byte
	maddr [4]byte
}

// New returns a driver that performs all transfers through port.
func New(port Port) *TxDriver {
	return &TxDriver{port: port}
}

// Scan probes every non-reserved 7-bit address with a single byte read.
// Addresses whose probe fails are treated as absent.
func (d *TxDriver) Scan() ([]uint16, error) {
	var found []uint16
	for a := uint16(scanFirst); a <= scanLast; a++ {
		if err := d.port.Tx(a, nil, d.probe[:]); err == nil {
			found = append(found, a)
		}
	}
	return found, nil
}

// Start is not supported.
func (d *TxDriver) Start() error {
	return sharedi2c.ErrNotSupported
}

// Stop is not supported.
func (d *TxDriver) Stop() error {
	return sharedi2c.ErrNotSupported
}

// ReadInto is not supported.
func (d *TxDriver) ReadInto(buf []byte, nack bool) error {
	return sharedi2c.ErrNotSupported
}

// Write is not supported.
func (d *TxDriver) Write(buf []byte) (int, error) {
	return 0, sharedi2c.ErrNotSupported
}

// ReadFrom reads n bytes from the device at addr.
func (d *TxDriver) ReadFrom(addr uint16, n int, stop bool) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.ReadFromInto(addr, buf, stop); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFromInto fills buf from the device at addr.
func (d *TxDriver) ReadFromInto(addr uint16, buf []byte, stop bool) error {
	if !stop {
		return sharedi2c.ErrNotSupported
	}
	return d.port.Tx(addr, nil, buf)
}

// WriteTo writes buf to the device at addr. A Port does not report partial
// ACKs, so on success every byte counts as ACKed.
func (d *TxDriver) WriteTo(addr uint16, buf []byte, stop bool) (int, error) {
	if !stop {
		return 0, sharedi2c.ErrNotSupported
	}
	if err := d.port.Tx(addr, buf, nil); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// WriteVTo joins vector and writes it to the device at addr in one transfer.
func (d *TxDriver) WriteVTo(addr uint16, vector [][]byte, stop bool) (int, error) {
	if !stop {
		return 0, sharedi2c.ErrNotSupported
	}
	d.buf = d.buf[:0]
	for _, v := range vector {
		d.buf = append(d.buf, v...)
	}
	return d.WriteTo(addr, d.buf, true)
}

// ReadFromMem reads n bytes from memory address memaddr of the device at
// addr.
func (d *TxDriver) ReadFromMem(addr uint16, memaddr uint32, n int, addrSize sharedi2c.AddrSize) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.ReadFromMemInto(addr, memaddr, buf, addrSize); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFromMemInto sends memaddr and then, after a repeated START, fills buf.
func (d *TxDriver) ReadFromMemInto(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error {
	n, err := addrSize.PutMemAddr(d.maddr[:], memaddr)
	if err != nil {
		return err
	}
	return d.port.Tx(addr, d.maddr[:n], buf)
}

// WriteToMem sends memaddr followed by buf in a single write transfer.
func (d *TxDriver) WriteToMem(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error {
	n, err := addrSize.PutMemAddr(d.maddr[:], memaddr)
	if err != nil {
		return err
	}
	d.buf = append(append(d.buf[:0], d.maddr[:n]...), buf...)
	return d.port.Tx(addr, d.buf, nil)
}

// Tx forwards to the port.
func (d *TxDriver) Tx(addr uint16, w, r []byte) error {
	return d.port.Tx(addr, w, r)
}

// Close closes the port if it implements io.Closer.
func (d *TxDriver) Close() error {
	if c, ok := d.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
