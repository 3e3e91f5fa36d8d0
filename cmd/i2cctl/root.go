package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/oxplot/go-sharedi2c"
	"github.com/oxplot/go-sharedi2c/periphbus"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "i2cctl",
	Short:        "Inspect and talk to devices on an I2C bus.",
	Long:         "Inspect and talk to devices on a hardware or bit-banged I2C bus.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("bus", "", "hardware bus name or number (default first bus)")
	rootCmd.PersistentFlags().String("frequency", "", "bus clock, e.g. 100kHz or 400kHz")
	rootCmd.PersistentFlags().Bool("soft", false, "bit-bang the bus on --scl and --sda")
	rootCmd.PersistentFlags().String("scl", "", "clock pin of a bit-banged bus")
	rootCmd.PersistentFlags().String("sda", "", "data pin of a bit-banged bus")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every bus operation")
}

// openBus opens the bus selected on the command line.
var openBus = func(cmd *cobra.Command, logger *zap.Logger) (*sharedi2c.LockedBus, error) {
	freq, err := GetFrequency(cmd, "frequency")
	if err != nil {
		return nil, err
	}
	opts := []sharedi2c.Option{sharedi2c.WithLogger(logger)}
	if GetFlag(cmd, "soft") {
		return periphbus.OpenSoft(periphbus.SoftConfig{
			SCL:       GetString(cmd, "scl"),
			SDA:       GetString(cmd, "sda"),
			Frequency: freq,
		}, opts...)
	}
	return periphbus.OpenHardware(periphbus.HardwareConfig{
		Bus:       GetString(cmd, "bus"),
		Frequency: freq,
	}, opts...)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// withBus opens the bus, runs fn and closes the bus again.
func withBus(cmd *cobra.Command, fn func(ctx context.Context, bus *sharedi2c.LockedBus) error) (err error) {
	logger, err := newLogger(GetFlag(cmd, "verbose"))
	if err != nil {
		return errors.Wrap(err, "creating logger")
	}
	defer func() { _ = logger.Sync() }()

	bus, err := openBus(cmd, logger)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(bus))

	err = fn(cmd.Context(), bus)
	st := bus.Stats()
	logger.Debug("bus stats",
		zap.Uint64("calls", st.Calls),
		zap.Uint64("errors", st.Errors),
		zap.Uint64("contended", st.Contended),
	)
	return err
}

// GetFlag gets an expected boolean flag. Flags are registered in init, so a
// lookup failure is a programming error.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		panic(err)
	}
	return r
}

// GetString gets an expected string flag.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		panic(err)
	}
	return r
}

// GetFrequency parses a frequency flag. An empty flag is zero.
func GetFrequency(cmd *cobra.Command, flag string) (physic.Frequency, error) {
	var f physic.Frequency
	s := GetString(cmd, flag)
	if s == "" {
		return 0, nil
	}
	if err := f.Set(s); err != nil {
		return 0, errors.Wrapf(err, "invalid --%s", flag)
	}
	return f, nil
}
