package roomba

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brutella/hc/log"
	tfaccessory "github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/action"
	"github.com/cloudkucooland/roombabridge/config"
	"github.com/cloudkucooland/roombabridge/devices"
	"github.com/cloudkucooland/roombabridge/platform"
	"github.com/cloudkucooland/roombabridge/runner"
	"github.com/sirupsen/logrus"
)

// PlatformName is the name accessory files use to select this platform
const PlatformName = "Roomba"

// ErrUnknownRoomba is returned for names no accessory file defined
var ErrUnknownRoomba = errors.New("unknown roomba")

// Platform is the platform handle for the vacuums
type Platform struct {
	Running bool
}

type rmu struct {
	mu sync.RWMutex
	rs map[string]*tfaccessory.TFAccessory
}

var roombas = rmu{rs: make(map[string]*tfaccessory.TFAccessory)}
var devs sync.Map // name -> *devices.Roomba
var logger logrus.FieldLogger = logrus.StandardLogger()
var stop chan struct{}

// SetLogger sets the logger handed to every adapter created afterwards
func SetLogger(l logrus.FieldLogger) {
	logger = l
}

// Startup is called by the platform management to start the platform up
func (p Platform) Startup(c *config.Config) platform.Control {
	stop = make(chan struct{})
	p.Running = true
	return p
}

// Shutdown is called by the platform management to shut things down
func (p Platform) Shutdown() platform.Control {
	if p.Running && stop != nil {
		close(stop)
	}
	p.Running = false
	return p
}

// AddAccessory builds the adapter and hc device for a vacuum, then adds it to HC
func (p Platform) AddAccessory(a *tfaccessory.TFAccessory) {
	if _, ok := p.GetAccessory(a.Name); ok {
		log.Info.Printf("already have a roomba named [%s], ignoring", a.Name)
		return
	}

	hc, ok := platform.GetPlatform("HomeControl")
	if !ok {
		log.Info.Println("can't add accessory, HomeControl platform does not yet exist")
		return
	}

	ad := New(Config{
		Name:     a.Label(),
		Address:  a.Hostname,
		Model:    a.Model,
		BLID:     a.BLID,
		Password: a.Password,
	}, logger.WithField("roomba", a.Name), WithTimeout(config.Get().Timeout()))

	a.Info.Name = a.Label()
	a.Info.Manufacturer = Manufacturer
	a.Info.SerialNumber = SerialNumber
	a.Info.Model = a.Model
	if a.Info.ID == 0 {
		a.Info.ID = accessoryID(a.Name)
	}

	d := devices.NewRoomba(a.Info.ID, ad.Capabilities())
	d.OnSwitched(func(on bool) {
		state := "Off"
		if on {
			state = "On"
		}
		runner.RunActions(a.MatchActions(state))
	})

	a.Device = ad
	a.Accessory = d.Accessory
	a.Runner = actionRunner

	roombas.mu.Lock()
	roombas.rs[a.Name] = a
	roombas.mu.Unlock()
	devs.Store(a.Name, d)

	log.Info.Printf("adding [%s]: [%s] at %s", a.Info.Name, a.Info.Model, a.Hostname)
	hc.AddAccessory(a)
}

// GetAccessory looks up a vacuum by name
func (p Platform) GetAccessory(name string) (*tfaccessory.TFAccessory, bool) {
	roombas.mu.RLock()
	defer roombas.mu.RUnlock()
	val, ok := roombas.rs[name]
	return val, ok
}

// Lookup finds the adapter for a vacuum by name
func Lookup(name string) (*Adapter, bool) {
	var p Platform
	a, ok := p.GetAccessory(name)
	if !ok {
		return nil, false
	}
	ad, ok := a.Device.(*Adapter)
	return ad, ok
}

// Names returns the names of all known vacuums, sorted
func Names() []string {
	roombas.mu.RLock()
	defer roombas.mu.RUnlock()
	names := make([]string, 0, len(roombas.rs))
	for name := range roombas.rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Background refreshes the HomeKit values every PullRate seconds
func (p Platform) Background() {
	c := config.Get()
	if c == nil || c.PullRate <= 0 {
		log.Info.Println("roomba background pull disabled")
		return
	}
	done := stop
	go func() {
		t := time.NewTicker(time.Second * time.Duration(c.PullRate))
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				p.backgroundPuller()
			}
		}
	}()
}

func (p Platform) backgroundPuller() {
	for _, name := range Names() {
		if err := Refresh(context.Background(), name); err != nil {
			log.Info.Printf("refresh [%s]: %s", name, err.Error())
		}
	}
}

// Refresh fetches a vacuum's status and pushes it into its hc characteristics
func Refresh(ctx context.Context, name string) error {
	ad, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w [%s]", ErrUnknownRoomba, name)
	}
	s, err := ad.Status(ctx)
	if err != nil {
		return err
	}
	if d, ok := devs.Load(name); ok {
		d.(*devices.Roomba).Update(s.Running(), s.BatteryLevel, s.ChargingState())
	}
	return nil
}

// actionRunner lets other accessories' actions drive a vacuum: Start, Dock, or Power with Value on/off
func actionRunner(a *tfaccessory.TFAccessory, act *action.Action) {
	ad, ok := a.Device.(*Adapter)
	if !ok {
		log.Info.Printf("[%s] has no roomba adapter", a.Name)
		return
	}

	var on bool
	switch strings.ToLower(act.Verb) {
	case "start":
		on = true
	case "dock":
		on = false
	case "power":
		switch strings.ToLower(strings.TrimSpace(act.Value)) {
		case "on", "true":
			on = true
		case "off", "false":
			on = false
		default:
			log.Info.Printf("roomba power action on [%s] needs on or off, got [%s]", a.Name, act.Value)
			return
		}
	default:
		log.Info.Printf("unknown roomba action verb [%s]", act.Verb)
		return
	}

	if err := ad.SetPowerState(context.Background(), on); err != nil {
		log.Info.Printf("action on [%s] failed: %s", a.Name, err.Error())
		return
	}
	if d, ok := devs.Load(a.Name); ok {
		d.(*devices.Roomba).Switch.On.SetValue(on)
	}
}

// hc needs a stable, unique, nonzero ID per accessory; the bridge itself is 1
func accessoryID(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	id := h.Sum64()
	if id <= 1 {
		id += 2
	}
	return id
}
