// Package tfmqtt publishes vacuum state to an MQTT broker and accepts start/dock commands from it.
//
// Topics, with the default prefix:
//
//	roomba/{name}/state  JSON status, published every PublishRate seconds and after each command
//	roomba/{name}/set    payload start|on|dock|off
package tfmqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brutella/hc/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	tfaccessory "github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/config"
	"github.com/cloudkucooland/roombabridge/platform"
	"github.com/cloudkucooland/roombabridge/roomba"
)

const qos = 1

// Platform is the handle to the MQTT connection
type Platform struct {
	Running bool
}

var (
	mu     sync.Mutex
	client mqtt.Client
	prefix string
	rate   time.Duration
	stop   chan struct{}
)

// State is the payload published on the state topic
type State struct {
	Status        string  `json:"status"`
	On            bool    `json:"on"`
	IsCharging    bool    `json:"is_charging"`
	ChargingState string  `json:"charging_state"`
	BatteryLevel  float64 `json:"battery_level"`
}

// Startup connects to the broker, if one is configured
func (p Platform) Startup(c *config.Config) platform.Control {
	if c.MQTT.Broker == "" {
		log.Info.Print("no MQTT broker configured, MQTT disabled")
		return p
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.MQTT.Broker)
	opts.SetClientID(c.MQTT.ClientID)
	opts.SetUsername(c.MQTT.Username)
	opts.SetPassword(c.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(cl mqtt.Client) {
		topic := fmt.Sprintf("%s/+/set", c.MQTT.Prefix)
		if token := cl.Subscribe(topic, qos, commandHandler); token.Wait() && token.Error() != nil {
			log.Info.Printf("mqtt subscribe %s: %s", topic, token.Error())
		}
	}

	// with ConnectRetry the token only completes once connected; don't hold up the bridge for it
	cl := mqtt.NewClient(opts)
	token := cl.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Info.Printf("mqtt broker %s not reachable yet, retrying in the background", c.MQTT.Broker)
	} else if token.Error() != nil {
		log.Info.Printf("mqtt connect %s: %s", c.MQTT.Broker, token.Error())
		return p
	}

	mu.Lock()
	client = cl
	prefix = c.MQTT.Prefix
	rate = time.Duration(c.MQTT.PublishRate) * time.Second
	stop = make(chan struct{})
	mu.Unlock()

	log.Info.Printf("using MQTT broker %s, prefix %s", c.MQTT.Broker, c.MQTT.Prefix)
	p.Running = true
	return p
}

// Shutdown disconnects from the broker
func (p Platform) Shutdown() platform.Control {
	mu.Lock()
	defer mu.Unlock()
	if stop != nil {
		close(stop)
		stop = nil
	}
	if client != nil {
		client.Disconnect(250)
		client = nil
	}
	p.Running = false
	return p
}

// Background publishes every vacuum's state every PublishRate seconds
func (p Platform) Background() {
	mu.Lock()
	done, every := stop, rate
	mu.Unlock()
	if done == nil || every <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				for _, name := range roomba.Names() {
					publishState(name)
				}
			}
		}
	}()
}

// AddAccessory - vacuums are owned by the Roomba platform
func (p Platform) AddAccessory(a *tfaccessory.TFAccessory) {
	log.Info.Printf("MQTT platform does not own accessories, ignoring [%s]", a.Name)
}

// GetAccessory - do not use, just satisfies the Platform interface
func (p Platform) GetAccessory(name string) (*tfaccessory.TFAccessory, bool) {
	return nil, false
}

func commandHandler(_ mqtt.Client, msg mqtt.Message) {
	name, ok := nameFromTopic(msg.Topic())
	if !ok {
		log.Info.Printf("mqtt: unexpected topic %s", msg.Topic())
		return
	}
	on, ok := parseCommand(string(msg.Payload()))
	if !ok {
		log.Info.Printf("mqtt: unknown command [%s] for [%s]", msg.Payload(), name)
		return
	}
	ad, ok := roomba.Lookup(name)
	if !ok {
		log.Info.Printf("mqtt: unknown roomba [%s]", name)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Get().Timeout())
	defer cancel()
	if err := ad.SetPowerState(ctx, on); err != nil {
		log.Info.Printf("mqtt: command for [%s] failed: %s", name, err.Error())
		return
	}
	if err := roomba.Refresh(ctx, name); err != nil {
		log.Info.Printf("mqtt: refresh [%s]: %s", name, err.Error())
	}
	publishState(name)
}

func publishState(name string) {
	mu.Lock()
	cl, pre := client, prefix
	mu.Unlock()
	if cl == nil {
		return
	}
	ad, ok := roomba.Lookup(name)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Get().Timeout())
	defer cancel()
	s, err := ad.Status(ctx)
	if err != nil {
		log.Info.Printf("mqtt: status [%s]: %s", name, err.Error())
		return
	}
	payload, err := json.Marshal(stateFromStatus(s))
	if err != nil {
		log.Info.Print(err)
		return
	}
	token := cl.Publish(stateTopic(pre, name), qos, true, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Info.Printf("mqtt: publish [%s]: %s", name, token.Error())
	}
}

func stateFromStatus(s roomba.Status) State {
	return State{
		Status:        s.State,
		On:            s.Running(),
		IsCharging:    s.IsCharging,
		ChargingState: s.ChargingState().String(),
		BatteryLevel:  s.BatteryLevel,
	}
}

func stateTopic(prefix, name string) string {
	return fmt.Sprintf("%s/%s/state", prefix, name)
}

// topics look like {prefix}/{name}/set; the prefix may itself contain slashes
func nameFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "set" || parts[len(parts)-2] == "" {
		return "", false
	}
	return parts[len(parts)-2], true
}

func parseCommand(payload string) (on bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "start", "on", "true", "1":
		return true, true
	case "dock", "off", "false", "0":
		return false, true
	}
	return false, false
}
