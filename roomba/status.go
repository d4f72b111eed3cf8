package roomba

// StateRun is the only status value that counts as "on"
const StateRun = "run"

// Status is the document served at /status
type Status struct {
	State        string  `json:"status"`
	IsCharging   bool    `json:"is_charging"`
	BatteryLevel float64 `json:"battery_level"`
}

// Running is true only for the literal "run"
func (s Status) Running() bool {
	return s.State == StateRun
}

// ChargingState maps is_charging onto the HomeKit values
func (s Status) ChargingState() ChargingState {
	if s.IsCharging {
		return Charging
	}
	return NotCharging
}
