//go:build tinygo

// Package tinygobus constructs locked I2C buses on microcontrollers
// supported by TinyGo.
package tinygobus

import (
	"machine"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers/i2csoft"

	"github.com/oxplot/go-sharedi2c"
	"github.com/oxplot/go-sharedi2c/i2cdriver"
)

// NewHardware configures the hardware controller i2c with cfg and returns it
// wrapped in a LockedBus.
func NewHardware(i2c *machine.I2C, cfg machine.I2CConfig, opts ...sharedi2c.Option) (*sharedi2c.LockedBus, error) {
	if i2c == nil {
		return nil, errors.New("nil i2c controller")
	}
	if err := i2c.Configure(cfg); err != nil {
		return nil, errors.Wrap(err, "configuring i2c controller")
	}
	return sharedi2c.New(i2cdriver.New(i2c), opts...), nil
}

// NewSoft bit-bangs an I2C bus on the SCL and SDA pins in cfg and returns it
// wrapped in a LockedBus.
func NewSoft(cfg i2csoft.I2CConfig, opts ...sharedi2c.Option) (*sharedi2c.LockedBus, error) {
	if cfg.SCL == cfg.SDA {
		return nil, errors.New("SCL and SDA must be different pins")
	}
	b := i2csoft.New(cfg.SCL, cfg.SDA)
	if err := b.Configure(cfg); err != nil {
		return nil, errors.Wrap(err, "configuring software i2c")
	}
	return sharedi2c.New(i2cdriver.New(b), opts...), nil
}
