package device

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/goleak"
	"go.viam.com/test"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/oxplot/go-sharedi2c"
	"github.com/oxplot/go-sharedi2c/internal/fakebus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// regFile returns a fake driver backed by a register file for one chip.
func regFile(chip uint16, regs []byte) *fakebus.Driver {
	return &fakebus.Driver{
		ReadFromMemIntoFunc: func(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error {
			if addr != chip {
				return errNack
			}
			copy(buf, regs[memaddr:])
			return nil
		},
		WriteToMemFunc: func(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error {
			if addr != chip {
				return errNack
			}
			copy(regs[memaddr:], buf)
			return nil
		},
		ReadFromIntoFunc: func(addr uint16, buf []byte, stop bool) error {
			if addr != chip {
				return errNack
			}
			return nil
		},
		TxFunc: func(addr uint16, w, r []byte) error {
			if addr != chip {
				return errNack
			}
			if len(w) > 0 {
				copy(r, regs[w[0]:])
			}
			return nil
		},
	}
}

var errNack = errors.New("nack")

func TestDevRegisters(t *testing.T) {
	regs := make([]byte, 16)
	regs[0x0d] = 0x33
	fake := regFile(0x1e, regs)
	ctx := context.Background()
	d := New(sharedi2c.New(fake), 0x1e, sharedi2c.AddrSize8)

	test.That(t, d.Addr(), test.ShouldEqual, 0x1e)
	test.That(t, d.String(), test.ShouldEqual, "i2c device 0x1e")

	v, err := d.ReadReg(ctx, 0x0d)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 0x33)

	test.That(t, d.WriteReg(ctx, 0x02, 0x01), test.ShouldBeNil)
	test.That(t, regs[0x02], test.ShouldEqual, 0x01)

	test.That(t, d.WriteRegs(ctx, 0x04, []byte{1, 2, 3}), test.ShouldBeNil)
	buf := make([]byte, 3)
	test.That(t, d.ReadRegs(ctx, 0x04, buf), test.ShouldBeNil)
	test.That(t, buf, test.ShouldResemble, []byte{1, 2, 3})

	test.That(t, d.Probe(ctx), test.ShouldBeNil)
	test.That(t, New(sharedi2c.New(fake), 0x1f, sharedi2c.AddrSize8).Probe(ctx), test.ShouldEqual, errNack)

	// One driver call per method.
	test.That(t, fake.Calls(), test.ShouldHaveLength, 6)
}

func TestDevReadRegError(t *testing.T) {
	d := New(sharedi2c.New(regFile(0x1e, make([]byte, 4))), 0x40, sharedi2c.AddrSize8)
	v, err := d.ReadReg(context.Background(), 0)
	test.That(t, err, test.ShouldEqual, errNack)
	test.That(t, v, test.ShouldEqual, 0)
}

func TestPortAsPeriphBus(t *testing.T) {
	regs := make([]byte, 8)
	regs[3] = 0x99
	fake := regFile(0x68, regs)
	p := NewPort(context.Background(), sharedi2c.New(fake))

	d := &i2c.Dev{Bus: p, Addr: 0x68}
	r := make([]byte, 1)
	test.That(t, d.Tx([]byte{3}, r), test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, []byte{0x99})

	test.That(t, p.SetSpeed(400*physic.KiloHertz), test.ShouldEqual, sharedi2c.ErrNotSupported)
	test.That(t, p.String(), test.ShouldEqual, "sharedi2c")

	calls := fake.Calls()
	test.That(t, calls, test.ShouldHaveLength, 1)
	test.That(t, calls[0].Op, test.ShouldEqual, sharedi2c.OpTx)
	test.That(t, calls[0].Addr, test.ShouldEqual, 0x68)
}

func TestPortRegisters(t *testing.T) {
	regs := make([]byte, 8)
	p := NewPort(context.Background(), sharedi2c.New(regFile(0x3c, regs)))

	test.That(t, p.WriteRegister(0x3c, 5, []byte{0xab}), test.ShouldBeNil)
	buf := make([]byte, 1)
	test.That(t, p.ReadRegister(0x3c, 5, buf), test.ShouldBeNil)
	test.That(t, buf, test.ShouldResemble, []byte{0xab})

	test.That(t, p.ReadRegister(0x3d, 5, buf), test.ShouldEqual, errNack)
}

func TestPortCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus := sharedi2c.New(&fakebus.Driver{})

	// The lock is free, so the call runs even though ctx is done.
	p := NewPort(ctx, bus)
	test.That(t, p.Tx(0x10, []byte{1}, nil), test.ShouldBeNil)
}
