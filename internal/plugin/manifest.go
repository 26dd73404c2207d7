package plugin

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Capability names a host function group a plugin may be granted access
// to. Plugins declare the capabilities they need; every host function is
// exported regardless, and the host's CapabilityEnforcer checks the grant
// when the function is called, per §9's "Plugin sandboxing" design note.
type Capability string

const (
	CapabilityNetOutbound Capability = "net:outbound"
	CapabilityFSTemp      Capability = "fs:temp"
	CapabilityLog         Capability = "log"
)

// Manifest is a plugin's declared metadata: which capabilities it needs
// and which entry points it exports. It is loaded from a sidecar
// `<module>.manifest.json` next to the `.wasm` file.
type Manifest struct {
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Exports      []string     `json:"exports,omitempty"`
}

// LoadManifest reads and parses the manifest sidecar for a WASM module
// path (`plugin.wasm` -> `plugin.manifest.json`).
func LoadManifest(wasmPath string) (*Manifest, error) {
	manifestPath := strings.TrimSuffix(wasmPath, ".wasm") + ".manifest.json"
	content, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigNotFound,
			"plugin manifest not found: "+manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"invalid plugin manifest: "+manifestPath, err)
	}
	return &m, nil
}

// HasExport reports whether the manifest declares name among its
// Exports; an empty Exports list is treated as "exports everything it's
// asked for" (no declared entry-point list).
func (m *Manifest) HasExport(name string) bool {
	if len(m.Exports) == 0 {
		return true
	}
	for _, e := range m.Exports {
		if e == name {
			return true
		}
	}
	return false
}
