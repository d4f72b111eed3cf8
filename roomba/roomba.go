package roomba

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudkucooland/roombabridge/capability"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds every request to the vacuum unless overridden
	DefaultTimeout = 10 * time.Second

	Manufacturer = "iRobot"
	SerialNumber = "MY-AWESOME-ROOMBA-876"

	pathStart  = "/start"
	pathDock   = "/dock"
	pathStatus = "/status"
)

var (
	// ErrRequest covers connection failures, timeouts, DNS errors and non-2xx replies
	ErrRequest = errors.New("roomba request failed")
	// ErrDecode covers bodies that are not the expected JSON
	ErrDecode = errors.New("roomba response malformed")
)

// ChargingState is the value reported by ChargingState
type ChargingState = capability.ChargingState

const (
	NotCharging = capability.NotCharging
	Charging    = capability.Charging
)

// Config identifies one vacuum. BLID and Password are accepted but never sent.
type Config struct {
	Name     string
	Address  string // base URL of the vacuum's REST API, e.g. http://10.0.0.5:3000
	Model    string
	BLID     string
	Password string
}

// Adapter translates accessory reads and writes into calls against the vacuum's REST API.
// It keeps no state between calls and is safe for concurrent use.
type Adapter struct {
	cfg    Config
	log    logrus.FieldLogger
	client *http.Client
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// WithTimeout sets the per-request timeout; zero or negative leaves it alone
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d <= 0 {
			return
		}
		c := *a.client
		c.Timeout = d
		a.client = &c
	}
}

// New builds an adapter. The address is not validated; a bad one shows up as ErrRequest on the first call.
func New(cfg Config, log logrus.FieldLogger, opts ...Option) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &Adapter{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}

	a.log.WithFields(logrus.Fields{
		"name":    cfg.Name,
		"address": cfg.Address,
		"model":   cfg.Model,
	}).Info("roomba adapter ready")
	if cfg.BLID != "" || cfg.Password != "" {
		a.log.Debug("blid/password configured but not used by the REST transport")
	}
	return a
}

// Config returns a copy of the adapter's configuration
func (a *Adapter) Config() Config {
	return a.cfg
}

// SetPowerState starts a cleaning run when on is true, otherwise sends the vacuum back to its dock
func (a *Adapter) SetPowerState(ctx context.Context, on bool) error {
	op, path := "dock", pathDock
	if on {
		op, path = "start", pathStart
	}
	log := a.log.WithFields(logrus.Fields{"op": op, "path": path})
	log.Infof("setting power state to %t", on)

	var reply interface{}
	if err := a.getJSON(ctx, path, &reply); err != nil {
		log.WithError(err).Error("command failed")
		observeRequest(a.cfg.Name, op, err)
		return err
	}
	observeRequest(a.cfg.Name, op, nil)
	log.WithField("reply", reply).Debug("command accepted")
	return nil
}

// PowerState is true when the vacuum reports status "run"
func (a *Adapter) PowerState(ctx context.Context) (bool, error) {
	s, err := a.status(ctx, "power")
	if err != nil {
		return false, err
	}
	return s.Running(), nil
}

// ChargingState reports Charging when is_charging is true, NotCharging otherwise
func (a *Adapter) ChargingState(ctx context.Context) (ChargingState, error) {
	s, err := a.status(ctx, "charging")
	if err != nil {
		return NotCharging, err
	}
	return s.ChargingState(), nil
}

// BatteryLevel returns battery_level exactly as the vacuum reported it
func (a *Adapter) BatteryLevel(ctx context.Context) (float64, error) {
	s, err := a.status(ctx, "battery")
	if err != nil {
		return 0, err
	}
	return s.BatteryLevel, nil
}

// Status fetches the raw status document
func (a *Adapter) Status(ctx context.Context) (Status, error) {
	return a.status(ctx, "status")
}

// Identify is not supported by the vacuum; it always succeeds without contacting it
func (a *Adapter) Identify(ctx context.Context) error {
	a.log.WithField("op", "identify").Info("identify requested, not supported by the vacuum")
	return nil
}

// Capabilities describes the accessory: identity, battery, then the on/off switch
func (a *Adapter) Capabilities() []capability.Capability {
	a.log.Debug("capabilities requested")
	return []capability.Capability{
		capability.Info{
			Manufacturer: Manufacturer,
			SerialNumber: SerialNumber,
			Model:        a.cfg.Model,
			Name:         a.cfg.Name,
			Identifiable: false,
			Identify:     a.Identify,
		},
		capability.Battery{
			Level:    a.BatteryLevel,
			Charging: a.ChargingState,
		},
		capability.Switch{
			Name: a.cfg.Name,
			Get:  a.PowerState,
			Set:  a.SetPowerState,
		},
	}
}

func (a *Adapter) status(ctx context.Context, op string) (Status, error) {
	log := a.log.WithFields(logrus.Fields{"op": op, "path": pathStatus})

	var doc *Status
	err := a.getJSON(ctx, pathStatus, &doc)
	if err == nil && doc == nil {
		err = fmt.Errorf("%w: %s returned null", ErrDecode, pathStatus)
	}
	if err != nil {
		log.WithError(err).Error("status request failed")
		observeRequest(a.cfg.Name, op, err)
		return Status{}, err
	}
	s := *doc
	observeRequest(a.cfg.Name, op, nil)
	observeStatus(a.cfg.Name, s)
	log.WithFields(logrus.Fields{
		"status":        s.State,
		"is_charging":   s.IsCharging,
		"battery_level": s.BatteryLevel,
	}).Debug("status received")
	return s, nil
}

func (a *Adapter) getJSON(ctx context.Context, path string, dest interface{}) error {
	payload, err := a.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrDecode, path, err)
	}
	return nil
}

func (a *Adapter) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := strings.TrimRight(a.cfg.Address, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request %s: %w", ErrRequest, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrRequest, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrRequest, endpoint, resp.Status)
	}
	return payload, nil
}
