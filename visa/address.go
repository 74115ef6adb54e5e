package visa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type resourceKind int

const (
	kindSerial resourceKind = iota
	kindGPIB
)

// parsedAddress is the broken-down form of a VISA-style resource address.
// Two grammars are understood:
//
//	ASRL::/dev/ttyUSB0::INSTR          direct serial instrument
//	GPIB22::/dev/ttyUSB1::INSTR        instrument at primary address 22
//	                                   behind a Prologix controller on
//	                                   that serial device
//
// The trailing ::INSTR is optional on input and always present on output.
type parsedAddress struct {
	kind resourceKind
	path string
	pad  int
}

func parseAddress(addr string) (parsedAddress, error) {
	fields := strings.Split(addr, "::")
	if len(fields) == 3 && fields[2] != "INSTR" {
		return parsedAddress{}, errors.Wrapf(ErrBadAddress, "unknown suffix %q in %q", fields[2], addr)
	}
	if len(fields) != 2 && len(fields) != 3 {
		return parsedAddress{}, errors.Wrapf(ErrBadAddress, "%q", addr)
	}
	head, path := fields[0], fields[1]
	if path == "" {
		return parsedAddress{}, errors.Wrapf(ErrBadAddress, "empty device path in %q", addr)
	}
	switch {
	case head == "ASRL":
		return parsedAddress{kind: kindSerial, path: path}, nil
	case strings.HasPrefix(head, "GPIB"):
		pad, err := strconv.Atoi(head[len("GPIB"):])
		if err != nil {
			return parsedAddress{}, errors.Wrapf(ErrBadAddress, "bad GPIB primary address in %q", addr)
		}
		if pad < 0 || pad > 30 {
			return parsedAddress{}, errors.Wrapf(ErrBadAddress, "GPIB primary address %d out of range in %q", pad, addr)
		}
		return parsedAddress{kind: kindGPIB, path: path, pad: pad}, nil
	}
	return parsedAddress{}, errors.Wrapf(ErrBadAddress, "%q", addr)
}

func (a parsedAddress) String() string {
	if a.kind == kindGPIB {
		return fmt.Sprintf("GPIB%d::%s::INSTR", a.pad, a.path)
	}
	return fmt.Sprintf("ASRL::%s::INSTR", a.path)
}

// SerialAddress renders the canonical address for a directly attached
// serial instrument.
func SerialAddress(devicePath string) string {
	return parsedAddress{kind: kindSerial, path: devicePath}.String()
}

// GPIBAddress renders the canonical address for an instrument at primary
// address pad behind a Prologix controller on devicePath.
func GPIBAddress(pad int, devicePath string) string {
	return parsedAddress{kind: kindGPIB, path: devicePath, pad: pad}.String()
}
