// Package periphbus opens locked I2C buses on hosts supported by periph.io.
package periphbus

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bitbang"
	"periph.io/x/host/v3"

	"github.com/oxplot/go-sharedi2c"
	"github.com/oxplot/go-sharedi2c/i2cdriver"
)

// DefaultSoftFrequency is the clock used by OpenSoft when none is given.
const DefaultSoftFrequency = 100 * physic.KiloHertz

// HardwareConfig selects a hardware I2C controller.
type HardwareConfig struct {
	// Bus is the name or number of the bus as known to i2creg. Empty selects
	// the first registered bus.
	Bus string

	// Frequency of the bus clock. Zero keeps the controller's current speed.
	Frequency physic.Frequency
}

func (c HardwareConfig) validate() error {
	if c.Frequency < 0 {
		return errors.Errorf("invalid bus frequency %s", c.Frequency)
	}
	return nil
}

// SoftConfig selects two GPIO pins to bit-bang an I2C bus on.
type SoftConfig struct {
	SCL string
	SDA string

	Frequency physic.Frequency
}

func (c SoftConfig) validate() error {
	switch {
	case c.SCL == "" || c.SDA == "":
		return errors.New("both SCL and SDA pins are required")
	case c.SCL == c.SDA:
		return errors.Errorf("SCL and SDA must be different pins, got %q for both", c.SCL)
	case c.Frequency < 0:
		return errors.Errorf("invalid bus frequency %s", c.Frequency)
	}
	return nil
}

// OpenHardware opens the hardware bus described by cfg and returns it
// wrapped in a LockedBus.
func OpenHardware(cfg HardwareConfig, opts ...sharedi2c.Option) (*sharedi2c.LockedBus, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing host drivers")
	}
	b, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, errors.Wrapf(err, "opening i2c bus %q", cfg.Bus)
	}
	if cfg.Frequency > 0 {
		if err := b.SetSpeed(cfg.Frequency); err != nil {
			return nil, multierr.Combine(
				errors.Wrapf(err, "setting speed of %s to %s", b, cfg.Frequency),
				b.Close(),
			)
		}
	}
	return sharedi2c.New(i2cdriver.New(b), opts...), nil
}

// OpenSoft bit-bangs an I2C bus on the GPIO pins named in cfg and returns
// it wrapped in a LockedBus.
func OpenSoft(cfg SoftConfig, opts ...sharedi2c.Option) (*sharedi2c.LockedBus, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = DefaultSoftFrequency
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing host drivers")
	}
	scl, err := pin(cfg.SCL)
	if err != nil {
		return nil, err
	}
	sda, err := pin(cfg.SDA)
	if err != nil {
		return nil, err
	}
	b, err := bitbang.New(scl, sda, cfg.Frequency)
	if err != nil {
		return nil, errors.Wrapf(err, "bit-banging i2c on SCL=%s SDA=%s", cfg.SCL, cfg.SDA)
	}
	return sharedi2c.New(i2cdriver.New(b), opts...), nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no gpio pin named %q", name)
	}
	return p, nil
}
