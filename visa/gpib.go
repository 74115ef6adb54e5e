package visa

import (
	"strings"

	"github.com/gotmc/prologix"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// gpibResource reaches an instrument through a Prologix GPIB-USB controller
// sitting on a serial device. The controller handles bus addressing and
// read-after-write; we only push SCPI text through it.
type gpibResource struct {
	ctrl *prologix.Controller
	port *serial.Port
	cfg  resourceConfig
}

func openGPIBResource(addr parsedAddress, cfg resourceConfig) (*gpibResource, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        addr.path,
		Baud:        cfg.baudRate,
		ReadTimeout: cfg.timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(ErrTransportIO, "open %s: %v", addr.path, err)
	}
	ctrl, err := prologix.NewController(port, addr.pad, false)
	if err != nil {
		port.Close()
		return nil, errors.Wrapf(ErrTransportIO, "prologix controller on %s: %v", addr.path, err)
	}
	return &gpibResource{ctrl: ctrl, port: port, cfg: cfg}, nil
}

func (r *gpibResource) Write(cmd string) error {
	if err := r.ctrl.Command(cmd); err != nil {
		return errors.Wrapf(ErrTransportIO, "write %q: %v", cmd, err)
	}
	return nil
}

func (r *gpibResource) Query(cmd string) (string, error) {
	resp, err := r.ctrl.Query(cmd)
	if err != nil {
		return "", errors.Wrapf(ErrTransportIO, "query %q: %v", cmd, err)
	}
	resp = strings.TrimSuffix(strings.TrimSuffix(resp, "\n"), string(r.cfg.readTerm))
	if resp == "" {
		return "", errors.Wrapf(ErrTransportIO, "empty response to %q", cmd)
	}
	return resp, nil
}

func (r *gpibResource) Close() error {
	// Hand the instrument back to its front panel before dropping the port.
	if err := r.ctrl.FrontPanel(true); err != nil {
		r.port.Close()
		return errors.Wrapf(ErrTransportIO, "front panel release: %v", err)
	}
	if err := r.port.Close(); err != nil {
		return errors.Wrapf(ErrTransportIO, "close: %v", err)
	}
	return nil
}
