package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oxplot/go-sharedi2c"
	"github.com/oxplot/go-sharedi2c/device"
	"github.com/oxplot/go-sharedi2c/device/at24"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List addresses of devices that respond on the bus.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *sharedi2c.LockedBus) error {
			addrs, err := bus.Scan(ctx)
			if err != nil {
				return errors.Wrap(err, "scanning bus")
			}
			for _, a := range addrs {
				fmt.Fprintf(cmd.OutOrStdout(), "%#02x\n", a)
			}
			return nil
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read ADDR REG N",
	Short: "Read N bytes starting at register REG of the device at ADDR.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		reg, err := parseByte("register", args[1])
		if err != nil {
			return err
		}
		n, err := parseCount(args[2])
		if err != nil {
			return err
		}
		return withBus(cmd, func(ctx context.Context, bus *sharedi2c.LockedBus) error {
			buf := make([]byte, n)
			if err := device.New(bus, addr, sharedi2c.AddrSize8).ReadRegs(ctx, uint32(reg), buf); err != nil {
				return errors.Wrapf(err, "reading %#02x", addr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "% x\n", buf)
			return nil
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write ADDR REG BYTE...",
	Short: "Write bytes starting at register REG of the device at ADDR.",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		reg, err := parseByte("register", args[1])
		if err != nil {
			return err
		}
		data := make([]byte, 0, len(args)-2)
		for _, s := range args[2:] {
			b, err := parseByte("byte", s)
			if err != nil {
				return err
			}
			data = append(data, b)
		}
		return withBus(cmd, func(ctx context.Context, bus *sharedi2c.LockedBus) error {
			if err := device.New(bus, addr, sharedi2c.AddrSize8).WriteRegs(ctx, uint32(reg), data); err != nil {
				return errors.Wrapf(err, "writing %#02x", addr)
			}
			return nil
		})
	},
}

var eepromDumpCmd = &cobra.Command{
	Use:   "eeprom-dump ADDR MODEL OFFSET N",
	Short: "Hex dump N bytes of an AT24 EEPROM starting at OFFSET.",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		model, err := at24.ModelByName(args[1])
		if err != nil {
			return err
		}
		off, err := strconv.ParseInt(args[2], 0, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid offset %q", args[2])
		}
		n, err := parseCount(args[3])
		if err != nil {
			return err
		}
		return withBus(cmd, func(ctx context.Context, bus *sharedi2c.LockedBus) error {
			buf := make([]byte, n)
			if _, err := at24.New(bus, addr, model).ReadAt(ctx, buf, off); err != nil {
				return errors.Wrapf(err, "reading %s at %#02x", model.Name, addr)
			}
			d := hex.Dumper(cmd.OutOrStdout())
			if _, err := d.Write(buf); err != nil {
				return err
			}
			return d.Close()
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd, readCmd, writeCmd, eepromDumpCmd)
}

// parseAddr parses a 7-bit device address.
func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v > 0x7f {
		return 0, errors.Errorf("invalid device address %q", s)
	}
	return uint16(v), nil
}

func parseByte(what, s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Errorf("invalid %s %q", what, s)
	}
	return byte(v), nil
}

func parseCount(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, errors.Errorf("invalid byte count %q", s)
	}
	return v, nil
}
