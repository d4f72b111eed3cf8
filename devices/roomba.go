package devices

import (
	"context"
	"math"

	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	"github.com/brutella/hc/log"
	"github.com/brutella/hc/service"
	"github.com/cloudkucooland/roombabridge/capability"
)

const lowBattery = 20 // percent

// Roomba is an hc Switch accessory with a battery service
type Roomba struct {
	*accessory.Accessory

	Battery *service.BatteryService
	Switch  *service.Switch

	switched []func(bool)
}

// NewRoomba renders capability descriptors as hc services. The Info descriptor, if present, sets the
// accessory information; the others become services in the order given.
func NewRoomba(id uint64, caps []capability.Capability) *Roomba {
	info := accessory.Info{ID: id}
	var ident capability.Info
	for _, c := range caps {
		if i, ok := c.(capability.Info); ok {
			ident = i
			info.Name = i.Name
			info.Manufacturer = i.Manufacturer
			info.SerialNumber = i.SerialNumber
			info.Model = i.Model
		}
	}

	acc := Roomba{}
	acc.Accessory = accessory.New(info, accessory.TypeSwitch)
	acc.Info.Identify.SetValue(ident.Identifiable)
	acc.Accessory.OnIdentify(func() {
		if ident.Identify == nil {
			return
		}
		if err := ident.Identify(context.Background()); err != nil {
			log.Info.Printf("identify [%s]: %s", info.Name, err.Error())
		}
	})

	for _, c := range caps {
		switch c := c.(type) {
		case capability.Battery:
			acc.addBattery(c)
		case capability.Switch:
			acc.addSwitch(c)
		}
	}
	return &acc
}

// OnSwitched registers fn to run after a HomeKit client successfully changed the switch
func (r *Roomba) OnSwitched(fn func(bool)) {
	r.switched = append(r.switched, fn)
}

// Update pushes freshly fetched values to the characteristics, notifying connected clients of changes
func (r *Roomba) Update(on bool, level float64, state capability.ChargingState) {
	if r.Switch != nil && currentBool(r.Switch.On.Characteristic) != on {
		r.Switch.On.SetValue(on)
	}
	if r.Battery != nil {
		pct := percent(level)
		if currentInt(r.Battery.BatteryLevel.Characteristic) != pct {
			r.Battery.BatteryLevel.SetValue(pct)
		}
		r.Battery.StatusLowBattery.SetValue(lowBatteryStatus(pct))
		cs := hcChargingState(state)
		if currentInt(r.Battery.ChargingState.Characteristic) != cs {
			r.Battery.ChargingState.SetValue(cs)
		}
	}
}

func (r *Roomba) addBattery(b capability.Battery) {
	r.Battery = service.NewBatteryService()
	r.Battery.ChargingState.SetValue(characteristic.ChargingStateNotCharging)

	if b.Level != nil {
		r.Battery.BatteryLevel.OnValueRemoteGet(func() int {
			level, err := b.Level(context.Background())
			if err != nil {
				// hc get hooks cannot report a failure; the error is logged and the stored value stands
				log.Info.Printf("battery level: %s", err.Error())
				return currentInt(r.Battery.BatteryLevel.Characteristic)
			}
			pct := percent(level)
			r.Battery.StatusLowBattery.SetValue(lowBatteryStatus(pct))
			return pct
		})
	}
	if b.Charging != nil {
		r.Battery.ChargingState.OnValueRemoteGet(func() int {
			state, err := b.Charging(context.Background())
			if err != nil {
				log.Info.Printf("charging state: %s", err.Error())
				return currentInt(r.Battery.ChargingState.Characteristic)
			}
			return hcChargingState(state)
		})
	}
	r.AddService(r.Battery.Service)
}

func (r *Roomba) addSwitch(s capability.Switch) {
	r.Switch = service.NewSwitch()
	if s.Name != "" {
		name := characteristic.NewName()
		name.SetValue(s.Name)
		r.Switch.AddCharacteristic(name.Characteristic)
	}

	if s.Get != nil {
		r.Switch.On.OnValueRemoteGet(func() bool {
			on, err := s.Get(context.Background())
			if err != nil {
				// no error path in hc get hooks, see battery level above
				log.Info.Printf("power state [%s]: %s", s.Name, err.Error())
				return currentBool(r.Switch.On.Characteristic)
			}
			// hc replays a changed read through the remote update hooks; storing it first keeps
			// a read from sending a start or dock
			if currentBool(r.Switch.On.Characteristic) != on {
				r.Switch.On.SetValue(on)
			}
			return on
		})
	}
	if s.Set != nil {
		r.Switch.On.OnValueRemoteUpdate(func(on bool) {
			log.Info.Printf("setting [%s] to [%t] from HC handler", s.Name, on)
			if err := s.Set(context.Background(), on); err != nil {
				log.Info.Printf("set power state [%s]: %s", s.Name, err.Error())
				// hc stored the requested value before calling us; put it back so clients see the real state
				r.Switch.On.SetValue(!on)
				return
			}
			for _, fn := range r.switched {
				fn(on)
			}
		})
	}
	r.AddService(r.Switch.Service)
}

// HomeKit battery level is an integer percentage
func percent(level float64) int {
	return int(math.Round(level))
}

func lowBatteryStatus(pct int) int {
	if pct < lowBattery {
		return characteristic.StatusLowBatteryBatteryLevelLow
	}
	return characteristic.StatusLowBatteryBatteryLevelNormal
}

func hcChargingState(state capability.ChargingState) int {
	if state == capability.Charging {
		return characteristic.ChargingStateCharging
	}
	return characteristic.ChargingStateNotCharging
}

// read the stored value directly; GetValue would re-enter the remote get hook
func currentBool(c *characteristic.Characteristic) bool {
	v, _ := c.Value.(bool)
	return v
}

func currentInt(c *characteristic.Characteristic) int {
	switch v := c.Value.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
