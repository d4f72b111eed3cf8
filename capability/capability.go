// Package capability describes what an accessory can do, independent of the HomeKit library that
// eventually renders it. An adapter returns an ordered list of descriptors; the devices package turns
// them into hc services.
package capability

import "context"

// Kind identifies one of the fixed descriptor types
type Kind int

const (
	KindInfo Kind = iota
	KindBattery
	KindSwitch
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindBattery:
		return "battery"
	case KindSwitch:
		return "switch"
	default:
		return "unknown"
	}
}

// Capability is satisfied by Info, Battery and Switch
type Capability interface {
	Kind() Kind
}

// ChargingState mirrors the HomeKit ChargingState values
type ChargingState int

const (
	NotCharging ChargingState = 0
	Charging    ChargingState = 1
)

func (c ChargingState) String() string {
	if c == Charging {
		return "CHARGING"
	}
	return "NOT_CHARGING"
}

// Info is the identity shown in the accessory details
type Info struct {
	Manufacturer string
	SerialNumber string
	Model        string
	Name         string
	Identifiable bool                        // false hides identify support from the client
	Identify     func(context.Context) error // may be nil
}

// Kind implements Capability
func (Info) Kind() Kind { return KindInfo }

// Battery exposes battery level (0-100) and charging state
type Battery struct {
	Level    func(context.Context) (float64, error)
	Charging func(context.Context) (ChargingState, error)
}

// Kind implements Capability
func (Battery) Kind() Kind { return KindBattery }

// Switch exposes a single on/off value
type Switch struct {
	Name string
	Get  func(context.Context) (bool, error)
	Set  func(context.Context, bool) error
}

// Kind implements Capability
func (Switch) Kind() Kind { return KindSwitch }
