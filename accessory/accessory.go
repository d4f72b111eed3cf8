package accessory

import (
	hcaccessory "github.com/brutella/hc/accessory"
	"github.com/brutella/hc/log"
	"github.com/cloudkucooland/roombabridge/action"
)

// TFAccessory is the accessory type, the bridge's stuff, plus hc's stuff
type TFAccessory struct {
	Platform    string `yaml:"platform"`         // Roomba
	Name        string `json:"-" yaml:"-"`       // the name used internally, from the accessory's config file name
	DisplayName string `json:"name" yaml:"name"` // what HomeKit shows; falls back to Name
	Hostname    string `yaml:"hostname"`         // base URL of the device's REST API
	BLID        string `yaml:"blid"`             // accepted, not sent to the device
	Password    string `yaml:"password"`         // accepted, not sent to the device
	Model       string `yaml:"model"`

	// defined at https://github.com/brutella/hc/blob/master/accessory/accessory.go
	Info                   hcaccessory.Info `yaml:"-"`
	*hcaccessory.Accessory `json:"-" yaml:"-"` // set when the device is added to HomeControl

	Device interface{} `json:"-" yaml:"-"` // *roomba.Adapter

	Actions []action.Action                    `yaml:"actions"`
	Runner  func(*TFAccessory, *action.Action) `json:"-" yaml:"-"`
}

// Label is the name shown in HomeKit
func (a *TFAccessory) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

// MatchActions returns a slice of actions that should be run
// jumping through hoops since including platform here would be circular
func (a TFAccessory) MatchActions(state string) []*action.Action {
	log.Debug.Printf("MatchActions [%s]: %s", a.Name, state)
	var actions []*action.Action
	for i := range a.Actions {
		if a.Actions[i].TriggerState == state {
			log.Debug.Printf("%s: %+v", a.Actions[i].TriggerState, a.Actions[i])
			actions = append(actions, &a.Actions[i])
		}
	}
	return actions
}
