package roombabridge

import (
	"fmt"

	"github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/config"
	tfhc "github.com/cloudkucooland/roombabridge/homecontrol"
	"github.com/cloudkucooland/roombabridge/platform"
	"github.com/cloudkucooland/roombabridge/roomba"
	"github.com/cloudkucooland/roombabridge/tfhttp"
	"github.com/cloudkucooland/roombabridge/tfmqtt"

	"github.com/brutella/hc/log"
)

// BootstrapPlatforms sets up all the platforms
func BootstrapPlatforms(c *config.Config) {
	config.Set(c)

	var hcp tfhc.HCPlatform
	platform.RegisterPlatform("HomeControl", hcp)

	var rp roomba.Platform
	platform.RegisterPlatform(roomba.PlatformName, rp)

	var h tfhttp.Platform
	platform.RegisterPlatform("HTTP", h)

	var m tfmqtt.Platform
	platform.RegisterPlatform("MQTT", m)

	platform.StartupAllPlatforms(c)
}

// AddAccessory is a wrapper to each platform's AddAccessory, no need to expose each platform to the daemon
func AddAccessory(h *accessory.TFAccessory) error {
	if h.Platform == "" {
		err := fmt.Errorf("accessory platform unset: %s", h.Name)
		log.Info.Print(err)
		return err
	}

	p, ok := platform.GetPlatform(h.Platform)
	if !ok {
		err := fmt.Errorf("unknown accessory platform [%s] for %s", h.Platform, h.Name)
		log.Info.Print(err)
		return err
	}

	p.AddAccessory(h)
	return nil
}

// StartHC is just a wrapper, no need to expose tfhc to the daemon
func StartHC() error {
	return tfhc.StartHC()
}
