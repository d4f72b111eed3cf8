package platform

import (
	"sort"
	"sync"

	"github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/config"
)

// Control is the interface which all platforms must satisfy
type Control interface {
	Startup(*config.Config) Control
	Background()
	Shutdown() Control
	AddAccessory(*accessory.TFAccessory)
	GetAccessory(string) (*accessory.TFAccessory, bool)
}

var platforms map[string]Control
var mu sync.RWMutex
var doOnce sync.Once

// RegisterPlatform is called whenever a new platform is instantiated
func RegisterPlatform(name string, control Control) {
	doOnce.Do(func() {
		platforms = make(map[string]Control)
	})
	mu.Lock()
	defer mu.Unlock()
	if _, ok := platforms[name]; !ok {
		platforms[name] = control
	}
}

// GetPlatform looks up a registered platform by name
func GetPlatform(name string) (Control, bool) {
	mu.RLock()
	defer mu.RUnlock()
	pc, ok := platforms[name]
	return pc, ok
}

// Names returns the registered platform names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ShutdownAllPlatforms is called at process stop to shutdown all platforms
func ShutdownAllPlatforms() {
	for _, name := range Names() {
		p, _ := GetPlatform(name)
		set(name, p.Shutdown())
	}
}

// StartupAllPlatforms is called at process start to initialize all platforms
func StartupAllPlatforms(c *config.Config) {
	for _, name := range Names() {
		p, _ := GetPlatform(name)
		set(name, p.Startup(c))
	}
}

// Background starts the background processes for every platform
func Background() {
	for _, name := range Names() {
		p, _ := GetPlatform(name)
		p.Background()
	}
}

func set(name string, control Control) {
	mu.Lock()
	platforms[name] = control
	mu.Unlock()
}
