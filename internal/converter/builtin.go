package converter

import (
	"fmt"
	"log"
	"strings"
)

// RegisterBuiltinConverters registers every converter shipped with the binary.
// The in-process encoder is always enabled; avifenc is enabled only while the
// tool is on PATH.
func RegisterBuiltinConverters() {
	Register(NewAVIFConverter())

	enc := NewAVIFEncConverter()
	Register(enc)
	if enc.Available() {
		_ = Enable(enc.Name())
	} else {
		log.Printf("converter: %s not found on PATH, %s converter disabled", enc.bin, enc.Name())
		_ = Disable(enc.Name())
	}
}

// DisableAll disables each named converter. Unknown names are an error.
func DisableAll(names []string) error {
	for _, n := range names {
		if err := Disable(n); err != nil {
			return err
		}
	}
	return nil
}

// Describe renders the registry as "name (enabled)" entries for log lines.
func Describe() string {
	var parts []string
	for _, info := range ListInfo() {
		state := "enabled"
		if !info.Enabled {
			state = "disabled"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", info.Name, state))
	}
	return strings.Join(parts, ", ")
}
