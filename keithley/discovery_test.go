package keithley

import (
	"errors"
	"testing"

	"github.com/SSSOC-CAN/picoamp-plugin/visa"
	"github.com/hashicorp/go-hclog"
)

type fakeManager struct {
	addrs     []string
	resources map[string]*fakeResource
	openErrs  map[string]error
	opened    []string
}

func (m *fakeManager) ListResources() ([]string, error) {
	return m.addrs, nil
}

func (m *fakeManager) OpenResource(addr string, opts ...visa.ResourceOption) (visa.Resource, error) {
	m.opened = append(m.opened, addr)
	if err, ok := m.openErrs[addr]; ok {
		return nil, err
	}
	res, ok := m.resources[addr]
	if !ok {
		return nil, visa.ErrNoSuchResource
	}
	return res, nil
}

var _ visa.ResourceManager = (*fakeManager)(nil)

func idnResource(idn string) *fakeResource {
	return &fakeResource{
		queryFn: func(cmd string) (string, error) {
			return idn, nil
		},
	}
}

func TestFindInstrument(t *testing.T) {
	const identifier = "MODEL 6482"
	rm := &fakeManager{
		addrs: []string{
			"ASRL::/dev/ttyUSB0::INSTR",
			"ASRL::/dev/ttyUSB1::INSTR",
			"ASRL::/dev/ttyUSB2::INSTR",
		},
		resources: map[string]*fakeResource{
			"ASRL::/dev/ttyUSB1::INSTR": idnResource("ACME WIDGETS,MODEL 1234"),
			"ASRL::/dev/ttyUSB2::INSTR": idnResource("KEITHLEY INSTRUMENTS INC.,MODEL 6482,4008415"),
		},
		openErrs: map[string]error{
			"ASRL::/dev/ttyUSB0::INSTR": errors.New("resource busy"),
		},
	}
	s := NewSession(rm, hclog.NewNullLogger())

	addr, err := s.FindInstrument(identifier)
	if err != nil {
		t.Fatalf("FindInstrument() error = %v", err)
	}
	if addr != "ASRL::/dev/ttyUSB2::INSTR" {
		t.Errorf("FindInstrument() = %q, want the ttyUSB2 address", addr)
	}
	// the failing candidate is skipped, not fatal
	if len(rm.opened) != 3 {
		t.Errorf("opened %d candidates, want 3", len(rm.opened))
	}
	if !rm.resources["ASRL::/dev/ttyUSB2::INSTR"].closed {
		t.Error("matching probe resource left open")
	}
}

func TestFindInstrumentQueryFailureSkips(t *testing.T) {
	failing := &fakeResource{
		queryFn: func(cmd string) (string, error) {
			return "", errors.New("timeout")
		},
	}
	rm := &fakeManager{
		addrs: []string{"ASRL::/dev/ttyS0::INSTR", "ASRL::/dev/ttyS1::INSTR"},
		resources: map[string]*fakeResource{
			"ASRL::/dev/ttyS0::INSTR": failing,
			"ASRL::/dev/ttyS1::INSTR": idnResource("KEITHLEY INSTRUMENTS INC.,MODEL 6482"),
		},
	}
	s := NewSession(rm, hclog.NewNullLogger())

	addr, err := s.FindInstrument("MODEL 6482")
	if err != nil {
		t.Fatalf("FindInstrument() error = %v", err)
	}
	if addr != "ASRL::/dev/ttyS1::INSTR" {
		t.Errorf("FindInstrument() = %q, want the ttyS1 address", addr)
	}
	if !failing.closed {
		t.Error("failing probe resource left open")
	}
}

func TestFindInstrumentNotFound(t *testing.T) {
	rm := &fakeManager{
		addrs: []string{"ASRL::/dev/ttyUSB0::INSTR"},
		resources: map[string]*fakeResource{
			"ASRL::/dev/ttyUSB0::INSTR": idnResource("ACME WIDGETS,MODEL 1234"),
		},
	}
	s := NewSession(rm, hclog.NewNullLogger())

	_, err := s.FindInstrument("MODEL 6482")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("FindInstrument() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestConnectExplicitAddress(t *testing.T) {
	rm := &fakeManager{
		resources: map[string]*fakeResource{
			"GPIB22::/dev/ttyUSB0::INSTR": idnResource("irrelevant"),
		},
	}
	s := NewSession(rm, hclog.NewNullLogger())

	if err := s.Connect("GPIB22::/dev/ttyUSB0::INSTR", ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	// explicit address must not trigger discovery
	if len(rm.opened) != 1 {
		t.Errorf("opened %d resources, want 1", len(rm.opened))
	}
}

func TestConnectDiscovers(t *testing.T) {
	rm := &fakeManager{
		addrs: []string{"ASRL::/dev/ttyUSB0::INSTR"},
		resources: map[string]*fakeResource{
			"ASRL::/dev/ttyUSB0::INSTR": idnResource(DefaultIdentifier),
		},
	}
	s := NewSession(rm, hclog.NewNullLogger())

	if err := s.Connect("", ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	// one open for the probe, one for the session proper
	if len(rm.opened) != 2 {
		t.Errorf("opened %d resources, want 2", len(rm.opened))
	}
}

func TestConnectOpenFailureNotRetried(t *testing.T) {
	rm := &fakeManager{
		openErrs: map[string]error{
			"ASRL::/dev/ttyUSB0::INSTR": visa.ErrTransportIO,
		},
	}
	s := NewSession(rm, hclog.NewNullLogger())

	err := s.Connect("ASRL::/dev/ttyUSB0::INSTR", "")
	if !errors.Is(err, visa.ErrTransportIO) {
		t.Fatalf("Connect() error = %v, want ErrTransportIO", err)
	}
	if len(rm.opened) != 1 {
		t.Errorf("opened %d times, want exactly 1", len(rm.opened))
	}
}
