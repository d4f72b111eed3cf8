package action

// Action is run against another accessory when the source accessory changes state
type Action struct {
	// don't need to store the source device since this is linked
	TriggerState   string `yaml:"triggerstate"` // On or Off
	TargetPlatform string `yaml:"targetplatform"`
	TargetDevice   string `yaml:"targetdevice"` // accessory name
	Verb           string `yaml:"verb"`         // per-platform specific: Start, Dock, Power
	Value          string `yaml:"value"`        // per-platform specific
}

// see runner for running actions -- circular imports suck
