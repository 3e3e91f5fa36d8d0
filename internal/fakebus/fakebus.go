// Package fakebus provides an instrumented in-memory sharedi2c.Driver for
// tests.
package fakebus

import (
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/oxplot/go-sharedi2c"
)

// Call records one driver call. Enter and Exit are taken from a counter
// shared by all calls on the same Driver, so two calls overlapped in time if
// and only if their [Enter, Exit] intervals intersect.
type Call struct {
	Op    sharedi2c.Op
	Addr  uint16
	Enter uint64
	Exit  uint64
}

// Driver is a sharedi2c.Driver whose behavior is injected per method.
// Methods without an injected function succeed with zero-ish results: reads
// return zeroed buffers and writes report every byte as ACKed.
type Driver struct {
	ScanFunc            func() ([]uint16, error)
	StartFunc           func() error
	StopFunc            func() error
	ReadIntoFunc        func(buf []byte, nack bool) error
	WriteFunc           func(buf []byte) (int, error)
	ReadFromFunc        func(addr uint16, n int, stop bool) ([]byte, error)
	ReadFromIntoFunc    func(addr uint16, buf []byte, stop bool) error
	WriteToFunc         func(addr uint16, buf []byte, stop bool) (int, error)
	WriteVToFunc        func(addr uint16, vector [][]byte, stop bool) (int, error)
	ReadFromMemFunc     func(addr uint16, memaddr uint32, n int, addrSize sharedi2c.AddrSize) ([]byte, error)
	ReadFromMemIntoFunc func(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error
	WriteToMemFunc      func(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error
	TxFunc              func(addr uint16, w, r []byte) error
	CloseFunc           func() error

	seq         atomic.Uint64
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	closed      atomic.Bool

	mu    sync.Mutex
	calls []Call
}

var _ sharedi2c.Driver = (*Driver)(nil)

func (d *Driver) enter(op sharedi2c.Op, addr uint16) func() {
	c := Call{Op: op, Addr: addr, Enter: d.seq.Inc()}
	n := d.inFlight.Inc()
	for {
		m := d.maxInFlight.Load()
		if n <= m || d.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() {
		d.inFlight.Dec()
		c.Exit = d.seq.Inc()
		d.mu.Lock()
		d.calls = append(d.calls, c)
		d.mu.Unlock()
	}
}

// Calls returns the completed calls ordered by the time they started.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	calls := append([]Call(nil), d.calls...)
	d.mu.Unlock()
	sort.Slice(calls, func(i, j int) bool { return calls[i].Enter < calls[j].Enter })
	return calls
}

// MaxInFlight returns the largest number of calls ever executing at once.
func (d *Driver) MaxInFlight() int {
	return int(d.maxInFlight.Load())
}

// Overlapping reports whether any two completed calls overlapped in time.
func (d *Driver) Overlapping() bool {
	calls := d.Calls()
	for i := 1; i < len(calls); i++ {
		if calls[i].Enter < calls[i-1].Exit {
			return true
		}
	}
	return false
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	return d.closed.Load()
}

// Scan implements sharedi2c.Driver.
func (d *Driver) Scan() ([]uint16, error) {
	defer d.enter(sharedi2c.OpScan, 0)()
	if d.ScanFunc != nil {
		return d.ScanFunc()
	}
	return nil, nil
}

// Start implements sharedi2c.Driver.
func (d *Driver) Start() error {
	defer d.enter(sharedi2c.OpStart, 0)()
	if d.StartFunc != nil {
		return d.StartFunc()
	}
	return nil
}

// Stop implements sharedi2c.Driver.
func (d *Driver) Stop() error {
	defer d.enter(sharedi2c.OpStop, 0)()
	if d.StopFunc != nil {
		return d.StopFunc()
	}
	return nil
}

// ReadInto implements sharedi2c.Driver.
func (d *Driver) ReadInto(buf []byte, nack bool) error {
	defer d.enter(sharedi2c.OpReadInto, 0)()
	if d.ReadIntoFunc != nil {
		return d.ReadIntoFunc(buf, nack)
	}
	return nil
}

// Write implements sharedi2c.Driver.
func (d *Driver) Write(buf []byte) (int, error) {
	defer d.enter(sharedi2c.OpWrite, 0)()
	if d.WriteFunc != nil {
		return d.WriteFunc(buf)
	}
	return len(buf), nil
}

// ReadFrom implements sharedi2c.Driver.
func (d *Driver) ReadFrom(addr uint16, n int, stop bool) ([]byte, error) {
	defer d.enter(sharedi2c.OpReadFrom, addr)()
	if d.ReadFromFunc != nil {
		return d.ReadFromFunc(addr, n, stop)
	}
	return make([]byte, n), nil
}

// ReadFromInto implements sharedi2c.Driver.
func (d *Driver) ReadFromInto(addr uint16, buf []byte, stop bool) error {
	defer d.enter(sharedi2c.OpReadFromInto, addr)()
	if d.ReadFromIntoFunc != nil {
		return d.ReadFromIntoFunc(addr, buf, stop)
	}
	return nil
}

// WriteTo implements sharedi2c.Driver.
func (d *Driver) WriteTo(addr uint16, buf []byte, stop bool) (int, error) {
	defer d.enter(sharedi2c.OpWriteTo, addr)()
	if d.WriteToFunc != nil {
		return d.WriteToFunc(addr, buf, stop)
	}
	return len(buf), nil
}

// WriteVTo implements sharedi2c.Driver.
func (d *Driver) WriteVTo(addr uint16, vector [][]byte, stop bool) (int, error) {
	defer d.enter(sharedi2c.OpWriteVTo, addr)()
	if d.WriteVToFunc != nil {
		return d.WriteVToFunc(addr, vector, stop)
	}
	n := 0
	for _, v := range vector {
		n += len(v)
	}
	return n, nil
}

// ReadFromMem implements sharedi2c.Driver.
func (d *Driver) ReadFromMem(addr uint16, memaddr uint32, n int, addrSize sharedi2c.AddrSize) ([]byte, error) {
	defer d.enter(sharedi2c.OpReadFromMem, addr)()
	if d.ReadFromMemFunc != nil {
		return d.ReadFromMemFunc(addr, memaddr, n, addrSize)
	}
	return make([]byte, n), nil
}

// ReadFromMemInto implements sharedi2c.Driver.
func (d *Driver) ReadFromMemInto(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error {
	defer d.enter(sharedi2c.OpReadFromMemInto, addr)()
	if d.ReadFromMemIntoFunc != nil {
		return d.ReadFromMemIntoFunc(addr, memaddr, buf, addrSize)
	}
	return nil
}

// WriteToMem implements sharedi2c.Driver.
func (d *Driver) WriteToMem(addr uint16, memaddr uint32, buf []byte, addrSize sharedi2c.AddrSize) error {
	defer d.enter(sharedi2c.OpWriteToMem, addr)()
	if d.WriteToMemFunc != nil {
		return d.WriteToMemFunc(addr, memaddr, buf, addrSize)
	}
	return nil
}

// Tx implements sharedi2c.Driver.
func (d *Driver) Tx(addr uint16, w, r []byte) error {
	defer d.enter(sharedi2c.OpTx, addr)()
	if d.TxFunc != nil {
		return d.TxFunc(addr, w, r)
	}
	return nil
}

// Close implements sharedi2c.Driver.
func (d *Driver) Close() error {
	d.closed.Store(true)
	if d.CloseFunc != nil {
		return d.CloseFunc()
	}
	return nil
}
