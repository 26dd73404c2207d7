package plugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CapabilityEnforcer gates a plugin's access to host functions by its
// manifest's declared capability set, grounded on
// openfroyo/pkg/providers/host/capabilities.go's CapabilityEnforcer.
type CapabilityEnforcer struct {
	granted    map[Capability]bool
	httpClient *http.Client
	tempDir    string
}

// NewCapabilityEnforcer constructs an enforcer for a set of granted
// capabilities.
func NewCapabilityEnforcer(capabilities []Capability, tempDir string) *CapabilityEnforcer {
	granted := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		granted[c] = true
	}
	return &CapabilityEnforcer{
		granted:    granted,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tempDir:    tempDir,
	}
}

// Has reports whether capability c was granted to the plugin.
func (e *CapabilityEnforcer) Has(c Capability) bool {
	return e.granted[c]
}

// HTTPRequest performs an HTTP request on the plugin's behalf, rejecting
// the call outright if net:outbound was not granted.
func (e *CapabilityEnforcer) HTTPRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	if !e.Has(CapabilityNetOutbound) {
		return nil, fmt.Errorf("capability %s not granted", CapabilityNetOutbound)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	return e.httpClient.Do(req)
}

// Log records a message a plugin emitted via the log host function. It is
// a no-op unless the log capability was granted.
func (e *CapabilityEnforcer) Log(message string) {
	if !e.Has(CapabilityLog) {
		return
	}
	fmt.Println("[plugin]", message)
}

// CreateTempFile creates name under the plugin's scratch directory,
// rejecting the call if fs:temp was not granted and refusing any name
// that would escape tempDir.
func (e *CapabilityEnforcer) CreateTempFile(name string) (*os.File, error) {
	if !e.Has(CapabilityFSTemp) {
		return nil, fmt.Errorf("capability %s not granted", CapabilityFSTemp)
	}
	if err := os.MkdirAll(e.tempDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create plugin temp directory: %w", err)
	}
	path := filepath.Join(e.tempDir, name)
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(e.tempDir)) {
		return nil, fmt.Errorf("invalid temp file name: path traversal detected")
	}
	return os.Create(path)
}
