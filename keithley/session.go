package keithley

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SSSOC-CAN/picoamp-plugin/visa"
	bg "github.com/SSSOCPaulCote/blunderguard"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const (
	ErrDeviceNotFound = bg.Error("device not found")
	ErrRetryExhausted = bg.Error("max query retries reached")
	ErrInvalidRange   = bg.Error("not a valid current range")
	ErrNotConnected   = bg.Error("session not connected")
)

const (
	// DefaultIdentifier is the *IDN? response of the picoammeter this
	// driver was written against.
	DefaultIdentifier = "KEITHLEY INSTRUMENTS INC.,MODEL 6482,4008415,A01   May 29 2012 09:36:59/A02  /E"

	DefaultMaxRetries  = 100
	DefaultFilterCount = 10
	DefaultPLC         = 10

	queryTimeout    = 20000 * time.Millisecond
	discoveryProbe  = 3000 * time.Millisecond
	retryBackoff    = 100 * time.Millisecond
	readTermination = byte('\r')
)

// Session owns one transport handle to a 6482. It is constructed
// disconnected; Connect opens the handle and Close releases it. A Session
// serves one caller at a time, all operations block.
type Session struct {
	rm      visa.ResourceManager
	res     visa.Resource
	log     hclog.Logger
	baud    int
	backoff time.Duration
}

func NewSession(rm visa.ResourceManager, logger hclog.Logger) *Session {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Session{
		rm:      rm,
		log:     logger,
		baud:    visa.DefaultBaudRate,
		backoff: retryBackoff,
	}
}

// SetBaudRate overrides the serial line speed used by Connect and
// FindInstrument. It has no effect on an already open handle.
func (s *Session) SetBaudRate(baud int) {
	s.baud = baud
}

// FindInstrument probes every candidate resource for an identification
// response matching the identifier pattern and returns the first matching
// address. Candidates that fail to open or answer are skipped.
func (s *Session) FindInstrument(identifier string) (string, error) {
	re, err := regexp.Compile(identifier)
	if err != nil {
		return "", errors.Wrapf(err, "bad identifier pattern %q", identifier)
	}
	addrs, err := s.rm.ListResources()
	if err != nil {
		return "", err
	}
	s.log.Info("searching for picoammeter", "identifier", identifier, "candidates", len(addrs))
	for _, addr := range addrs {
		res, err := s.rm.OpenResource(addr,
			visa.WithTimeout(discoveryProbe),
			visa.WithReadTermination(readTermination),
			visa.WithBaudRate(s.baud),
		)
		if err != nil {
			s.log.Debug("skipping candidate", "addr", addr, "error", err)
			continue
		}
		info, err := res.Query(CmdIdentify.Text())
		res.Close()
		if err != nil {
			s.log.Debug("candidate did not identify", "addr", addr, "error", err)
			continue
		}
		if re.MatchString(info) {
			s.log.Info("found picoammeter", "addr", addr, "idn", info)
			return addr, nil
		}
	}
	s.log.Error("no instrument matched identifier, provide an address directly or check the connection", "identifier", identifier)
	return "", errors.Wrapf(ErrDeviceNotFound, "identifier %q", identifier)
}

// Connect opens the transport. An empty addr triggers discovery via
// FindInstrument; an empty identifier falls back to DefaultIdentifier. Open
// failures surface immediately, they are not retried.
func (s *Session) Connect(addr, identifier string) error {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	if addr == "" {
		found, err := s.FindInstrument(identifier)
		if err != nil {
			return err
		}
		addr = found
	}
	s.log.Info("connecting to picoammeter", "addr", addr)
	res, err := s.rm.OpenResource(addr,
		visa.WithTimeout(queryTimeout),
		visa.WithReadTermination(readTermination),
		visa.WithBaudRate(s.baud),
	)
	if err != nil {
		return err
	}
	s.res = res
	return nil
}

// Write transmits one command, fire-and-forget.
func (s *Session) Write(cmd string) error {
	if s.res == nil {
		return ErrNotConnected
	}
	s.log.Debug("sending command", "cmd", cmd)
	return s.res.Write(cmd)
}

func (s *Session) writeCommand(c Command) error {
	return s.Write(c.Text())
}

// Query sends cmd and blocks for the terminated response, retrying up to
// DefaultMaxRetries times on transport faults.
func (s *Session) Query(cmd string) (string, error) {
	return s.QueryWithRetries(cmd, DefaultMaxRetries)
}

// QueryWithRetries recovers from transport faults by resetting the
// instrument, re-running the full default configuration and retrying after
// a short backoff. The instrument's state is unknown after any fault, so
// recovery always reconfigures from scratch rather than trying to patch up
// whatever survived. Exhausting all attempts means the hardware needs
// operator attention.
func (s *Session) QueryWithRetries(cmd string, maxRetries int) (string, error) {
	if s.res == nil {
		return "", ErrNotConnected
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		s.log.Debug("query", "cmd", cmd, "attempt", attempt)
		resp, err := s.res.Query(cmd)
		if err == nil {
			return resp, nil
		}
		s.log.Warn("query attempt failed", "cmd", cmd, "attempt", attempt, "error", err)
		if err := s.writeCommand(CmdReset); err != nil {
			s.log.Warn("reset after failed query did not go through", "error", err)
		}
		if err := s.AutoConfig(DefaultPLC); err != nil {
			s.log.Warn("reconfigure after failed query did not go through", "error", err)
		}
		time.Sleep(s.backoff)
	}
	s.log.Error("reached maximum query retries, check the picoammeter", "cmd", cmd, "maxRetries", maxRetries)
	return "", errors.Wrapf(ErrRetryExhausted, "%d attempts for %q", maxRetries, cmd)
}

// AutoConfig applies the default configuration: autozero on, auto-range on
// both channels, integration over plc power line cycles.
func (s *Session) AutoConfig(plc int) error {
	s.log.Info("configuring default settings", "autozero", "on", "autorange", "both channels", "plc", plc)
	if err := s.writeCommand(CmdAutozeroOn); err != nil {
		return err
	}
	if err := s.writeCommand(CmdAutoRangeChannel1); err != nil {
		return err
	}
	if err := s.writeCommand(CmdAutoRangeChannel2); err != nil {
		return err
	}
	return s.Write(fmt.Sprintf("%s %d", CmdSpeed.Text(), plc))
}

// SetChannelRange selects fixed measurement ranges for both channels. The
// auto-range applied by AutoConfig usually behaves better; a fixed range
// saturates on out-of-range signals. A value outside the CurrentRange set
// is rejected without sending anything.
func (s *Session) SetChannelRange(rangeCh1, rangeCh2 CurrentRange) error {
	s.log.Warn("auto-range usually works better than a manual range, readings may saturate")
	channels := []struct {
		rng CurrentRange
		cmd Command
	}{
		{rangeCh1, CmdRangeChannel1},
		{rangeCh2, CmdRangeChannel2},
	}
	// Validate both before sending either so a bad value never leaves the
	// channels configured asymmetrically.
	for i, ch := range channels {
		if !ch.rng.Valid() {
			s.log.Error("not an element of the CurrentRange set, command skipped", "channel", i+1, "value", float64(ch.rng))
			return errors.Wrapf(ErrInvalidRange, "channel %d value %g", i+1, float64(ch.rng))
		}
	}
	for i, ch := range channels {
		s.log.Info("selected channel range", "channel", i+1, "value", float64(ch.rng), "description", ch.rng.Description())
		if err := s.Write(fmt.Sprintf("%s %g", ch.cmd.Text(), float64(ch.rng))); err != nil {
			return err
		}
	}
	return nil
}

// ActivateAverageFilter enables the moving average filter. The filter keeps
// a first-in first-out stack of filterCount readings; once full, each new
// reading displaces the oldest and the stack is re-averaged.
func (s *Session) ActivateAverageFilter(filterCount int) error {
	if err := s.Write(fmt.Sprintf("%s %d", CmdFilterCount.Text(), filterCount)); err != nil {
		return err
	}
	return s.writeCommand(CmdFilterOn)
}

func (s *Session) DeactivateAverageFilter() error {
	return s.writeCommand(CmdFilterOff)
}

// ActivateAdvancedFilter puts a noise window on the moving filter. The
// window is a percentage of full scale (0 to 105); a reading inside it is
// averaged normally, a reading outside it flushes the stack so a genuine
// step change is tracked immediately instead of being smeared.
func (s *Session) ActivateAdvancedFilter(noiseWindow int) error {
	if err := s.Write(fmt.Sprintf("%s %d", CmdFilterNoiseWindow.Text(), noiseWindow)); err != nil {
		return err
	}
	return s.writeCommand(CmdAdvancedFilterOn)
}

func (s *Session) DeactivateAdvancedFilter() error {
	return s.writeCommand(CmdAdvancedFilterOff)
}

// ActivateAutozero re-enables the zero and reference measurements taken
// with every reading. Rated accuracy needs autozero; disabling it trades
// accuracy drift for speed.
func (s *Session) ActivateAutozero() error {
	s.log.Info("activating autozero")
	return s.writeCommand(CmdAutozeroOn)
}

func (s *Session) DeactivateAutozero() error {
	s.log.Info("deactivating autozero")
	return s.writeCommand(CmdAutozeroOff)
}

// GetCurrents acquires n readings per channel. The instrument interleaves
// both channels into one comma-separated reply: even fields are channel 1,
// odd fields channel 2. A reply with an odd field count leaves channel 2
// one reading short.
func (s *Session) GetCurrents(n int) ([]float64, []float64, error) {
	if err := s.Write(fmt.Sprintf("%s %d", CmdSweeps.Text(), n)); err != nil {
		return nil, nil, err
	}
	reply, err := s.Query(CmdReadCurrent.Text())
	if err != nil {
		return nil, nil, err
	}
	return demuxReadings(reply)
}

func demuxReadings(reply string) ([]float64, []float64, error) {
	fields := strings.Split(strings.TrimSpace(reply), ",")
	var ch1, ch2 []float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reading %d of reply %q", i, reply)
		}
		if i%2 == 0 {
			ch1 = append(ch1, v)
		} else {
			ch2 = append(ch2, v)
		}
	}
	return ch1, ch2, nil
}

// GetMeanCurrent acquires n readings per channel and reduces each channel
// to mean and standard error. Fewer than 3 readings cannot carry a
// meaningful uncertainty, so n is raised to 3 with a warning.
func (s *Session) GetMeanCurrent(n int) (Measurement, Measurement, error) {
	if n < 3 {
		s.log.Warn("at least 3 readings are needed for the uncertainty of the mean, measuring with n=3")
		n = 3
	}
	ch1, ch2, err := s.GetCurrents(n)
	if err != nil {
		return Measurement{}, Measurement{}, err
	}
	return summarize(ch1), summarize(ch2), nil
}

// Close releases the transport handle. The session does not guard against
// use after close; later operations fail with whatever the transport
// raises.
func (s *Session) Close() error {
	s.log.Info("disconnecting picoammeter")
	if s.res == nil {
		return ErrNotConnected
	}
	err := s.res.Close()
	s.res = nil
	return err
}
