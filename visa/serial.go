package visa

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// serialResource speaks newline-terminated ASCII over a directly attached
// serial port. Responses are accumulated until the read-termination byte
// shows up; the port's read timeout bounds the whole wait.
type serialResource struct {
	port    *serial.Port
	cfg     resourceConfig
	pending bytes.Buffer
}

func openSerialResource(addr parsedAddress, cfg resourceConfig) (*serialResource, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        addr.path,
		Baud:        cfg.baudRate,
		ReadTimeout: cfg.timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(ErrTransportIO, "open %s: %v", addr.path, err)
	}
	return &serialResource{port: port, cfg: cfg}, nil
}

func (r *serialResource) Write(cmd string) error {
	if _, err := r.port.Write([]byte(cmd + defaultWriteSuffix)); err != nil {
		return errors.Wrapf(ErrTransportIO, "write %q: %v", cmd, err)
	}
	return nil
}

func (r *serialResource) Query(cmd string) (string, error) {
	// Anything buffered past the previous terminator belongs to a stale
	// transaction and would desynchronize this one.
	r.pending.Reset()
	if err := r.port.Flush(); err != nil {
		return "", errors.Wrapf(ErrTransportIO, "flush before %q: %v", cmd, err)
	}
	if err := r.Write(cmd); err != nil {
		return "", err
	}
	return r.readUntilTerm(cmd)
}

func (r *serialResource) readUntilTerm(cmd string) (string, error) {
	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(r.pending.Bytes(), r.cfg.readTerm); i >= 0 {
			line := make([]byte, i)
			copy(line, r.pending.Bytes()[:i])
			r.pending.Next(i + 1)
			return string(line), nil
		}
		n, err := r.port.Read(buf)
		if n > 0 {
			r.pending.Write(buf[:n])
			continue
		}
		if err != nil && err != io.EOF {
			return "", errors.Wrapf(ErrTransportIO, "read after %q: %v", cmd, err)
		}
		// tarm/serial reports an expired ReadTimeout as a zero-length
		// read, with io.EOF on some platforms.
		return "", errors.Wrapf(ErrTransportIO, "timeout waiting for response to %q", cmd)
	}
}

func (r *serialResource) Close() error {
	if err := r.port.Close(); err != nil {
		return errors.Wrapf(ErrTransportIO, "close: %v", err)
	}
	return nil
}
