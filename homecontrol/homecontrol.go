package tfhc

import (
	"fmt"
	"sort"
	"sync"

	tfaccessory "github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/config"
	"github.com/cloudkucooland/roombabridge/platform"

	"github.com/brutella/hc"
	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/log"
	"github.com/brutella/hc/util"
)

// FirmwareRevision is reported by the bridge accessory
const FirmwareRevision = "0.1.0"

// HCPlatform is the platform handle
type HCPlatform struct {
	Running bool
}

var mu sync.Mutex
var hcs = make(map[string]*tfaccessory.TFAccessory)
var transport interface {
	Start()
	Stop() <-chan struct{}
}

// Startup is called by the platform bootstrap
func (h HCPlatform) Startup(c *config.Config) platform.Control {
	h.Running = true
	return h
}

// StartHC is called after all devices are discovered/registered to start operation
func StartHC() error {
	c := config.Get()
	if c == nil {
		return fmt.Errorf("no running config")
	}
	storage, err := util.NewFileStorage("serials")
	if err != nil {
		log.Info.Println("unable to get storage")
	}
	serial := c.ID
	if serial == "" && storage != nil {
		serial = util.GetSerialNumberForAccessoryName("RoombaBridgeRoot", storage)
	}

	root := accessory.NewBridge(accessory.Info{
		Name:             c.Name,
		ID:               1,
		SerialNumber:     serial,
		Manufacturer:     "roombabridge",
		Model:            "RoombaBridge",
		FirmwareRevision: FirmwareRevision,
	})
	root.Accessory.OnIdentify(func() {
		log.Info.Printf("bridge root identify called: %+v", root.Accessory)
	})

	t, err := hc.NewIPTransport(hc.Config(c.HCConfig), root.Accessory, Accessories()...)
	if err != nil {
		return err
	}

	// stopped by Shutdown, the daemon owns signal handling
	mu.Lock()
	transport = t
	mu.Unlock()
	go t.Start()

	uri, _ := t.XHMURI()
	log.Info.Printf("add this bridge with: %s", uri)
	return nil
}

// Accessories returns the registered hc accessories, ordered by name
func Accessories() []*accessory.Accessory {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(hcs))
	for name := range hcs {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]*accessory.Accessory, 0, len(names))
	for _, name := range names {
		values = append(values, hcs[name].Accessory)
	}
	return values
}

// Shutdown is called at process teardown
func (h HCPlatform) Shutdown() platform.Control {
	mu.Lock()
	t := transport
	transport = nil
	mu.Unlock()
	if t != nil {
		<-t.Stop()
	}
	h.Running = false
	return h
}

// AddAccessory registers a device with HC
func (h HCPlatform) AddAccessory(a *tfaccessory.TFAccessory) {
	// catch devices that didn't get built properly
	if a.Accessory == nil {
		log.Info.Printf("accessory unset: %v", a.Info)
		return
	}

	a.Accessory.OnIdentify(func() {
		log.Debug.Printf("identify called for [%s]", a.Name)
		for _, service := range a.Accessory.GetServices() {
			log.Debug.Printf("service: %+v", service)
			for _, char := range service.GetCharacteristics() {
				log.Debug.Printf("characteristic : %+v", char)
			}
		}
	})

	mu.Lock()
	hcs[a.Name] = a
	mu.Unlock()
}

// GetAccessory looks up a device by name -- you probably want the various platform's version, not this
func (h HCPlatform) GetAccessory(name string) (*tfaccessory.TFAccessory, bool) {
	mu.Lock()
	defer mu.Unlock()
	a, ok := hcs[name]
	return a, ok
}

// Background runs the various background tasks: none for HC
func (h HCPlatform) Background() {
	// the Roomba platform does the pulling
}
