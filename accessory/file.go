package accessory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPlatform is used when an accessory file does not name one
const DefaultPlatform = "Roomba"

// FromFile loads an accessory config file; .yaml and .yml are parsed as YAML, everything else as JSON.
// The accessory's internal name is the file name without the extension.
func FromFile(file string) (*TFAccessory, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to open accessory config file %s: %w", file, err)
	}

	var acc TFAccessory
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &acc)
	default:
		err = json.Unmarshal(raw, &acc)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse accessory config file %s: %w", file, err)
	}

	base := filepath.Base(file)
	acc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	if acc.Platform == "" {
		acc.Platform = DefaultPlatform
	}
	return &acc, nil
}

// LoadDir loads every accessory config file in dir, skipping the ones that fail to parse
func LoadDir(dir string) ([]*TFAccessory, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{err}
	}

	var accs []*TFAccessory
	var errs []error
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		acc, err := FromFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		accs = append(accs, acc)
	}
	return accs, errs
}
