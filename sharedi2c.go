// Package sharedi2c provides goroutine-safe access to a shared I2C bus by
// wrapping a synchronous bus driver so that any number of tasks can issue
// transactions without interleaving each other's transfers.
package sharedi2c

import (
	"github.com/pkg/errors"
)

// Op identifies a single bus primitive. Every guarded call is tagged with
// one.
type Op uint8

// The bus primitives, in the order drivers usually implement them.
const (
	OpScan            Op = iota // Probe all addresses
	OpStart                     // Generate a START condition
	OpStop                      // Generate a STOP condition
	OpReadInto                  // Read raw bytes after a START
	OpWrite                     // Write raw bytes after a START
	OpReadFrom                  // Read n bytes from an address
	OpReadFromInto              // Read into a buffer from an address
	OpWriteTo                   // Write a buffer to an address
	OpWriteVTo                  // Write a vector of buffers to an address
	OpReadFromMem               // Read n bytes from a memory address of a device
	OpReadFromMemInto           // Read into a buffer from a memory address of a device
	OpWriteToMem                // Write a buffer to a memory address of a device
	OpTx                        // Write then read with a repeated START
)

func (o Op) String() string {
	switch o {
	case OpScan:
		return "scan"
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpReadInto:
		return "readinto"
	case OpWrite:
		return "write"
	case OpReadFrom:
		return "readfrom"
	case OpReadFromInto:
		return "readfrom_into"
	case OpWriteTo:
		return "writeto"
	case OpWriteVTo:
		return "writevto"
	case OpReadFromMem:
		return "readfrom_mem"
	case OpReadFromMemInto:
		return "readfrom_mem_into"
	case OpWriteToMem:
		return "writeto_mem"
	case OpTx:
		return "tx"
	default:
		return "INVALID"
	}
}

// AddrSize is the width in bits of a device's internal memory address.
type AddrSize uint8

// Supported memory address widths. AddrSize8 is what most register based
// devices use.
const (
	AddrSize8  AddrSize = 8
	AddrSize16 AddrSize = 16
	AddrSize24 AddrSize = 24
	AddrSize32 AddrSize = 32
)

// Bytes returns the number of bytes a memory address of this width occupies
// on the wire, or 0 if the width is not supported.
func (s AddrSize) Bytes() int {
	switch s {
	case AddrSize8, AddrSize16, AddrSize24, AddrSize32:
		return int(s) / 8
	default:
		return 0
	}
}

// PutMemAddr encodes memaddr into b, most significant byte first, and
// returns the number of bytes written. b must be at least s.Bytes() long.
func (s AddrSize) PutMemAddr(b []byte, memaddr uint32) (int, error) {
	n := s.Bytes()
	if n == 0 {
		return 0, ErrInvalidAddrSize
	}
	for i := 0; i < n; i++ {
		b[i] = byte(memaddr >> (8 * (n - 1 - i)))
	}
	return n, nil
}

// Driver is the synchronous capability set of an I2C bus controller, either
// a hardware peripheral or a bit-banged pair of pins. The method set mirrors
// the classic microcontroller I2C master surface plus the combined Tx transfer
// used by periph and TinyGo.
//
// Every method is a complete, self contained bus transaction from the
// scheduler's point of view: it blocks until done and is never expected to
// be interleaved with another call on the same driver. Drivers need not be
// safe for concurrent use; LockedBus provides the serialization.
//
// Drivers that cannot perform a primitive (for instance raw START/STOP
// framing on a hardware peripheral) must return ErrNotSupported.
type Driver interface {

	// Scan returns the 7-bit addresses, in ascending order, of all devices
	// that acknowledged their address.
	Scan() ([]uint16, error)

	// Start generates a START condition on the bus.
	Start() error

	// Stop generates a STOP condition on the bus.
	Stop() error

	// ReadInto reads len(buf) bytes from the bus into buf, acking every byte
	// but the last. If nack is true the last byte is NACKed.
	ReadInto(buf []byte, nack bool) error

	// Write writes buf to the bus and returns the number of bytes that were
	// ACKed. Writing stops at the first NACK.
	Write(buf []byte) (int, error)

	// ReadFrom reads n bytes from the device at addr. A STOP is generated at
	// the end of the transfer if stop is true.
	ReadFrom(addr uint16, n int, stop bool) ([]byte, error)

	// ReadFromInto fills buf from the device at addr.
	ReadFromInto(addr uint16, buf []byte, stop bool) error

	// WriteTo writes buf to the device at addr and returns the number of
	// ACKs received.
	WriteTo(addr uint16, buf []byte, stop bool) (int, error)

	// WriteVTo writes the concatenation of vector to the device at addr as a
	// single transfer and returns the number of ACKs received.
	WriteVTo(addr uint16, vector [][]byte, stop bool) (int, error)

	// ReadFromMem reads n bytes from the device at addr starting at memory
	// address memaddr, which is sent using addrSize bits.
	ReadFromMem(addr uint16, memaddr uint32, n int, addrSize AddrSize) ([]byte, error)

	// ReadFromMemInto fills buf from memory address memaddr of the device at
	// addr.
	ReadFromMemInto(addr uint16, memaddr uint32, buf []byte, addrSize AddrSize) error

	// WriteToMem writes buf to memory address memaddr of the device at addr.
	WriteToMem(addr uint16, memaddr uint32, buf []byte, addrSize AddrSize) error

	// Tx writes w to the device at addr and then, after a repeated START,
	// reads len(r) bytes into r. A nil w or r skips that half of the
	// transfer.
	Tx(addr uint16, w, r []byte) error

	// Close releases the underlying bus handle.
	Close() error
}

var (
	// ErrNotSupported is returned by drivers for primitives the underlying
	// controller cannot perform.
	ErrNotSupported = errors.New("i2c: operation not supported by driver")

	// ErrInvalidAddrSize is returned by drivers when asked to encode a memory
	// address with an unsupported width.
	ErrInvalidAddrSize = errors.New("i2c: invalid memory address size")
)
