package periphbus

import (
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"
)

func TestHardwareConfigValidate(t *testing.T) {
	test.That(t, HardwareConfig{}.validate(), test.ShouldBeNil)
	test.That(t, HardwareConfig{Bus: "1", Frequency: 400 * physic.KiloHertz}.validate(), test.ShouldBeNil)

	err := HardwareConfig{Frequency: -1}.validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid bus frequency")
}

func TestSoftConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		cfg SoftConfig
		err string
	}{
		{SoftConfig{SCL: "GPIO5", SDA: "GPIO4"}, ""},
		{SoftConfig{SCL: "GPIO5", SDA: "GPIO4", Frequency: 10 * physic.KiloHertz}, ""},
		{SoftConfig{SCL: "GPIO5"}, "both SCL and SDA"},
		{SoftConfig{SDA: "GPIO4"}, "both SCL and SDA"},
		{SoftConfig{SCL: "GPIO4", SDA: "GPIO4"}, "different pins"},
		{SoftConfig{SCL: "GPIO5", SDA: "GPIO4", Frequency: -1}, "invalid bus frequency"},
	} {
		err := tc.cfg.validate()
		if tc.err == "" {
			test.That(t, err, test.ShouldBeNil)
			continue
		}
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
	}
}

func TestOpenSoftRejectsBadConfig(t *testing.T) {
	_, err := OpenSoft(SoftConfig{SCL: "GPIO4", SDA: "GPIO4"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "different pins")
}
