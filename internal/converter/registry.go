package converter

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]Converter)
	mu       sync.RWMutex
	disabled = make(map[string]bool)
)

// Register registers a converter in the global registry
func Register(c Converter) {
	mu.Lock()
	defer mu.Unlock()
	registry[c.Name()] = c
}

// List returns all registered converters sorted by name
func List() []Converter {
	mu.RLock()
	defer mu.RUnlock()
	converters := make([]Converter, 0, len(registry))
	for _, c := range registry {
		converters = append(converters, c)
	}
	sort.Slice(converters, func(i, j int) bool { return converters[i].Name() < converters[j].Name() })
	return converters
}

// ListInfo returns information about all registered converters
func ListInfo() []ConverterInfo {
	infos := []ConverterInfo{}
	for _, c := range List() {
		infos = append(infos, ConverterInfo{
			Name:         c.Name(),
			TargetFormat: c.TargetFormat(),
			Enabled:      IsEnabled(c.Name()),
		})
	}
	return infos
}

// FindConverter returns the enabled converter with the given name, or, when
// name is empty, the first enabled converter (by name) that accepts srcPath.
func FindConverter(name, srcPath string) (Converter, error) {
	mu.RLock()
	defer mu.RUnlock()

	if name != "" {
		c, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("converter not found: %s", name)
		}
		if disabled[name] {
			return nil, fmt.Errorf("converter disabled: %s", name)
		}
		if srcPath != "" && !c.CanConvert(srcPath) {
			return nil, fmt.Errorf("converter %s cannot handle %s", name, srcPath)
		}
		return c, nil
	}

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if disabled[n] {
			continue
		}
		if registry[n].CanConvert(srcPath) {
			return registry[n], nil
		}
	}

	return nil, fmt.Errorf("no converter found for file: %s", srcPath)
}

// Enable enables a converter by name
func Enable(name string) error {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := registry[name]; !ok {
		return fmt.Errorf("converter not found: %s", name)
	}

	delete(disabled, name)
	return nil
}

// Disable disables a converter by name
func Disable(name string) error {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := registry[name]; !ok {
		return fmt.Errorf("converter not found: %s", name)
	}

	disabled[name] = true
	return nil
}

// IsEnabled checks if a converter is enabled
func IsEnabled(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return !disabled[name]
}
