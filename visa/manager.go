package visa

import (
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var serialDevicePatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/ttyS*",
}

// Manager is the default ResourceManager. It enumerates local serial device
// nodes and opens either a direct serial resource or a Prologix GPIB
// resource depending on the address grammar.
type Manager struct {
	log hclog.Logger
}

var _ ResourceManager = (*Manager)(nil)

func NewManager(logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{log: logger}
}

// ListResources returns candidate ASRL addresses for every serial device
// node present on the host. GPIB addresses are never listed; a Prologix
// controller is indistinguishable from any other serial device until spoken
// to, so discovery probes the ASRL form and explicit GPIB addresses come
// from configuration.
func (m *Manager) ListResources() ([]string, error) {
	var addrs []string
	for _, pattern := range serialDevicePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(ErrTransportIO, "globbing %s: %v", pattern, err)
		}
		for _, path := range matches {
			addrs = append(addrs, SerialAddress(path))
		}
	}
	sort.Strings(addrs)
	m.log.Debug("enumerated serial resources", "count", len(addrs))
	return addrs, nil
}

func (m *Manager) OpenResource(addr string, opts ...ResourceOption) (Resource, error) {
	parsed, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}
	cfg := newResourceConfig(opts)
	switch parsed.kind {
	case kindGPIB:
		m.log.Debug("opening GPIB resource", "addr", addr)
		return openGPIBResource(parsed, cfg)
	default:
		m.log.Debug("opening serial resource", "addr", addr)
		return openSerialResource(parsed, cfg)
	}
}
