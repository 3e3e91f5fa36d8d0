package sharedi2c

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// LockedBus serializes access to a single Driver. Each method performs
// exactly one driver call while holding an instance-wide lock, releases the
// lock and then yields the processor once before returning, so a goroutine
// issuing back to back transactions cannot starve others sharing the bus.
//
// Results and errors from the driver are returned unmodified. The only error
// a LockedBus produces by itself is ctx.Err() when ctx is done while waiting
// for the lock.
//
// A LockedBus owns its Driver: nothing else may use the driver, and two
// LockedBus values must never wrap the same physical bus.
type LockedBus struct {
	bus Driver
	sem *semaphore.Weighted

	logger *zap.Logger
	yield  func()

	stats struct {
		calls     atomic.Uint64
		errors    atomic.Uint64
		contended atomic.Uint64
		cancelled atomic.Uint64
	}
}

// Option configures a LockedBus.
type Option func(*LockedBus)

// WithLogger sets the logger used to record every bus operation at debug
// level. The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *LockedBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithYield replaces the function called after every operation once the
// lock is released. The default is runtime.Gosched.
func WithYield(f func()) Option {
	return func(b *LockedBus) {
		if f != nil {
			b.yield = f
		}
	}
}

// New returns a LockedBus that takes ownership of bus.
func New(bus Driver, opts ...Option) *LockedBus {
	b := &LockedBus{
		bus:    bus,
		sem:    semaphore.NewWeighted(1),
		logger: zap.NewNop(),
		yield:  runtime.Gosched,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Stats is a snapshot of a LockedBus' counters.
type Stats struct {
	Calls     uint64 // Driver calls made
	Errors    uint64 // Driver calls that returned an error
	Contended uint64 // Operations that had to wait for the lock
	Cancelled uint64 // Operations abandoned while waiting for the lock
}

// Stats returns the current counters.
func (b *LockedBus) Stats() Stats {
	return Stats{
		Calls:     b.stats.calls.Load(),
		Errors:    b.stats.errors.Load(),
		Contended: b.stats.contended.Load(),
		Cancelled: b.stats.cancelled.Load(),
	}
}

// noAddr marks operations that do not target a single device.
const noAddr = -1

// guard runs call against the driver under the lock. Waiting for the lock is
// the only point where ctx is consulted. The lock is released on every exit
// path including a panic in call; the yield runs after release whether or
// not call failed.
func guard[T any](ctx context.Context, b *LockedBus, op Op, addr int, call func(Driver) (T, error)) (T, error) {
	if !b.sem.TryAcquire(1) {
		b.stats.contended.Inc()
		if err := b.sem.Acquire(ctx, 1); err != nil {
			b.stats.cancelled.Inc()
			var zero T
			return zero, err
		}
	}

	start := time.Now()
	res, err := invoke(b, call)
	took := time.Since(start)

	b.stats.calls.Inc()
	if err != nil {
		b.stats.errors.Inc()
	}
	if ce := b.logger.Check(zap.DebugLevel, "i2c op"); ce != nil {
		fields := []zap.Field{zap.Stringer("op", op), zap.Duration("took", took)}
		if addr != noAddr {
			fields = append(fields, zap.String("addr", fmt.Sprintf("%#02x", addr)))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		ce.Write(fields...)
	}

	b.yield()
	return res, err
}

func invoke[T any](b *LockedBus, call func(Driver) (T, error)) (T, error) {
	defer b.sem.Release(1)
	return call(b.bus)
}

func guardErr(ctx context.Context, b *LockedBus, op Op, addr int, call func(Driver) error) error {
	_, err := guard(ctx, b, op, addr, func(d Driver) (struct{}, error) {
		return struct{}{}, call(d)
	})
	return err
}

// Scan returns the addresses of all devices that respond on the bus.
func (b *LockedBus) Scan(ctx context.Context) ([]uint16, error) {
	return guard(ctx, b, OpScan, noAddr, func(d Driver) ([]uint16, error) {
		return d.Scan()
	})
}

// Start generates a START condition.
func (b *LockedBus) Start(ctx context.Context) error {
	return guardErr(ctx, b, OpStart, noAddr, func(d Driver) error {
		return d.Start()
	})
}

// Stop generates a STOP condition.
func (b *LockedBus) Stop(ctx context.Context) error {
	return guardErr(ctx, b, OpStop, noAddr, func(d Driver) error {
		return d.Stop()
	})
}

// ReadInto reads raw bytes from the bus into buf, NACKing the last one if
// nack is true.
func (b *LockedBus) ReadInto(ctx context.Context, buf []byte, nack bool) error {
	return guardErr(ctx, b, OpReadInto, noAddr, func(d Driver) error {
		return d.ReadInto(buf, nack)
	})
}

// Write writes raw bytes to the bus and returns the number of ACKs received.
func (b *LockedBus) Write(ctx context.Context, buf []byte) (int, error) {
	return guard(ctx, b, OpWrite, noAddr, func(d Driver) (int, error) {
		return d.Write(buf)
	})
}

// ReadFrom reads n bytes from the device at addr.
func (b *LockedBus) ReadFrom(ctx context.Context, addr uint16, n int, stop bool) ([]byte, error) {
	return guard(ctx, b, OpReadFrom, int(addr), func(d Driver) ([]byte, error) {
		return d.ReadFrom(addr, n, stop)
	})
}

// ReadFromInto fills buf from the device at addr.
func (b *LockedBus) ReadFromInto(ctx context.Context, addr uint16, buf []byte, stop bool) error {
	return guardErr(ctx, b, OpReadFromInto, int(addr), func(d Driver) error {
		return d.ReadFromInto(addr, buf, stop)
	})
}

// WriteTo writes buf to the device at addr and returns the number of ACKs
// received.
func (b *LockedBus) WriteTo(ctx context.Context, addr uint16, buf []byte, stop bool) (int, error) {
	return guard(ctx, b, OpWriteTo, int(addr), func(d Driver) (int, error) {
		return d.WriteTo(addr, buf, stop)
	})
}

// WriteVTo writes all buffers in vector to the device at addr as one
// transfer and returns the number of ACKs received.
func (b *LockedBus) WriteVTo(ctx context.Context, addr uint16, vector [][]byte, stop bool) (int, error) {
	return guard(ctx, b, OpWriteVTo, int(addr), func(d Driver) (int, error) {
		return d.WriteVTo(addr, vector, stop)
	})
}

// ReadFromMem reads n bytes starting at memory address memaddr of the
// device at addr.
func (b *LockedBus) ReadFromMem(ctx context.Context, addr uint16, memaddr uint32, n int, addrSize AddrSize) ([]byte, error) {
	return guard(ctx, b, OpReadFromMem, int(addr), func(d Driver) ([]byte, error) {
		return d.ReadFromMem(addr, memaddr, n, addrSize)
	})
}

// ReadFromMemInto fills buf starting at memory address memaddr of the device
// at addr.
func (b *LockedBus) ReadFromMemInto(ctx context.Context, addr uint16, memaddr uint32, buf []byte, addrSize AddrSize) error {
	return guardErr(ctx, b, OpReadFromMemInto, int(addr), func(d Driver) error {
		return d.ReadFromMemInto(addr, memaddr, buf, addrSize)
	})
}

// WriteToMem writes buf starting at memory address memaddr of the device at
// addr.
func (b *LockedBus) WriteToMem(ctx context.Context, addr uint16, memaddr uint32, buf []byte, addrSize AddrSize) error {
	return guardErr(ctx, b, OpWriteToMem, int(addr), func(d Driver) error {
		return d.WriteToMem(addr, memaddr, buf, addrSize)
	})
}

// Tx writes w to the device at addr then reads len(r) bytes into r after a
// repeated START. Both halves happen under a single acquisition of the lock.
func (b *LockedBus) Tx(ctx context.Context, addr uint16, w, r []byte) error {
	return guardErr(ctx, b, OpTx, int(addr), func(d Driver) error {
		return d.Tx(addr, w, r)
	})
}

// Close waits for the operation in flight, if any, and closes the driver.
// The LockedBus must not be used after Close.
func (b *LockedBus) Close() error {
	if err := b.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer b.sem.Release(1)
	return b.bus.Close()
}
