package i2cdriver

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/oxplot/go-sharedi2c"
)

type tx struct {
	addr uint16
	w    []byte
	r    int
}

// recordingPort logs every transfer and answers reads from devices.
type recordingPort struct {
	txs     []tx
	devices map[uint16][]byte
	closed  bool
}

func (p *recordingPort) Tx(addr uint16, w, r []byte) error {
	p.txs = append(p.txs, tx{addr: addr, w: append([]byte(nil), w...), r: len(r)})
	data, ok := p.devices[addr]
	if !ok {
		return errNack
	}
	copy(r, data)
	return nil
}

func (p *recordingPort) Close() error {
	p.closed = true
	return nil
}

var errNack = errors.New("nack")

func TestScan(t *testing.T) {
	p := &recordingPort{devices: map[uint16][]byte{0x50: nil, 0x1e: nil, 0x03: nil, 0x7b: nil}}
	d := New(p)

	found, err := d.Scan()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldResemble, []uint16{0x1e, 0x50})
	test.That(t, p.txs, test.ShouldHaveLength, scanLast-scanFirst+1)
	test.That(t, p.txs[0].addr, test.ShouldEqual, scanFirst)
	test.That(t, p.txs[0].r, test.ShouldEqual, 1)
}

func TestAddressedTransfers(t *testing.T) {
	p := &recordingPort{devices: map[uint16][]byte{0x50: {0xca, 0xfe}}}
	d := New(p)

	data, err := d.ReadFrom(0x50, 2, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0xca, 0xfe})

	n, err := d.WriteTo(0x50, []byte{1, 2, 3}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 3)

	n, err = d.WriteVTo(0x50, [][]byte{{0x10}, {0x20, 0x30}}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 3)
	test.That(t, p.txs[len(p.txs)-1].w, test.ShouldResemble, []byte{0x10, 0x20, 0x30})

	_, err = d.WriteTo(0x51, []byte{1}, true)
	test.That(t, err, test.ShouldEqual, errNack)

	_, err = d.ReadFrom(0x50, 1, false)
	test.That(t, err, test.ShouldEqual, sharedi2c.ErrNotSupported)
	_, err = d.WriteVTo(0x50, nil, false)
	test.That(t, err, test.ShouldEqual, sharedi2c.ErrNotSupported)
}

func TestMemoryTransfers(t *testing.T) {
	p := &recordingPort{devices: map[uint16][]byte{0x57: {0x11, 0x22, 0x33}}}
	d := New(p)

	data, err := d.ReadFromMem(0x57, 0x0102, 3, sharedi2c.AddrSize16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x11, 0x22, 0x33})
	test.That(t, p.txs[0], test.ShouldResemble, tx{addr: 0x57, w: []byte{0x01, 0x02}, r: 3})

	err = d.WriteToMem(0x57, 0x3b, []byte{0xaa, 0xbb}, sharedi2c.AddrSize8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.txs[1], test.ShouldResemble, tx{addr: 0x57, w: []byte{0x3b, 0xaa, 0xbb}, r: 0})

	err = d.WriteToMem(0x57, 0, nil, sharedi2c.AddrSize(7))
	test.That(t, err, test.ShouldEqual, sharedi2c.ErrInvalidAddrSize)
	test.That(t, p.txs, test.ShouldHaveLength, 2)
}

func TestFramingNotSupported(t *testing.T) {
	d := New(PortFunc(func(addr uint16, w, r []byte) error { return nil }))
	test.That(t, d.Start(), test.ShouldEqual, sharedi2c.ErrNotSupported)
	test.That(t, d.Stop(), test.ShouldEqual, sharedi2c.ErrNotSupported)
	test.That(t, d.ReadInto(make([]byte, 1), true), test.ShouldEqual, sharedi2c.ErrNotSupported)
	_, err := d.Write([]byte{1})
	test.That(t, err, test.ShouldEqual, sharedi2c.ErrNotSupported)

	// A port without Close closes cleanly.
	test.That(t, d.Close(), test.ShouldBeNil)
}

func TestClose(t *testing.T) {
	p := &recordingPort{}
	test.That(t, New(p).Close(), test.ShouldBeNil)
	test.That(t, p.closed, test.ShouldBeTrue)
}

func TestLockedTxDriver(t *testing.T) {
	p := &recordingPort{devices: map[uint16][]byte{0x68: {0x42}}}
	lb := sharedi2c.New(New(p))
	ctx := context.Background()

	r := make([]byte, 1)
	test.That(t, lb.Tx(ctx, 0x68, []byte{0x75}, r), test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, []byte{0x42})

	test.That(t, lb.Start(ctx), test.ShouldEqual, sharedi2c.ErrNotSupported)

	addrs, err := lb.Scan(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, addrs, test.ShouldResemble, []uint16{0x68})

	test.That(t, lb.Close(), test.ShouldBeNil)
	test.That(t, p.closed, test.ShouldBeTrue)
}
