package runner

// this is distinct from action because of circular imports

import (
	"errors"
	"fmt"

	"github.com/brutella/hc/log"
	"github.com/cloudkucooland/roombabridge/action"
	"github.com/cloudkucooland/roombabridge/platform"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnknownDevice   = errors.New("unknown device")
	ErrNoRunner        = errors.New("device has no action runner")
)

// RunActions fires each action in its own goroutine; failures are only logged
func RunActions(as []*action.Action) {
	for _, a := range as {
		go func(a *action.Action) {
			if err := Run(a); err != nil {
				log.Info.Printf("action %+v: %s", a, err.Error())
			}
		}(a)
	}
}

// Run resolves the action's target through the platform registry and hands it to the target's runner
func Run(a *action.Action) error {
	log.Debug.Printf("running action: %+v", a)
	p, ok := platform.GetPlatform(a.TargetPlatform)
	if !ok {
		return fmt.Errorf("%w [%s]", ErrUnknownPlatform, a.TargetPlatform)
	}
	d, ok := p.GetAccessory(a.TargetDevice)
	if !ok {
		return fmt.Errorf("%w [%s]", ErrUnknownDevice, a.TargetDevice)
	}
	if d.Runner == nil {
		return fmt.Errorf("%w [%s]", ErrNoRunner, d.Name)
	}
	d.Runner(d, a)
	return nil
}
