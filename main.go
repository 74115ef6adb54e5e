package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	sdk "github.com/SSSOC-CAN/laniakea-plugin-sdk"
	"github.com/SSSOC-CAN/laniakea-plugin-sdk/proto"
	"github.com/SSSOC-CAN/picoamp-plugin/cfg"
	"github.com/SSSOC-CAN/picoamp-plugin/keithley"
	"github.com/SSSOC-CAN/picoamp-plugin/visa"
	bg "github.com/SSSOCPaulCote/blunderguard"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	influx "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"
)

var (
	pluginName                               = "picoamp-plugin"
	pluginVersion                            = "1.0.0"
	laniVersionConstraint                    = ">= 0.2.0"
	minPolInterval             time.Duration = 15 * time.Second
	ErrAlreadyRecording                      = bg.Error("already recording")
	ErrAlreadyStoppedRecording               = bg.Error("already stopped recording")
	ErrBlankInfluxOrgOrBucket                = bg.Error("influx organization or bucket cannot be blank")
	ErrBlankInfluxURLOrToken                 = bg.Error("influx URL or API token cannot be blank")
	ErrInvalidOrg                            = bg.Error("invalid influx organization")
)

type PicoampDatasource struct {
	sdk.DatasourceBase
	recording int32 // used atomically
	quitChan  chan struct{}
	session   *keithley.Session
	config    *cfg.Config
	client    influx.Client
	log       hclog.Logger
	sync.WaitGroup
}

type Payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type Frame struct {
	Data []Payload `json:"data"`
}

// configureInstrument pushes the configured measurement settings to the
// picoammeter: default auto config first, then the optional filters.
func (e *PicoampDatasource) configureInstrument() error {
	if err := e.session.AutoConfig(e.config.PowerLineCycles); err != nil {
		return err
	}
	if e.config.DisableAutozero {
		if err := e.session.DeactivateAutozero(); err != nil {
			return err
		}
	}
	if e.config.FilterCount > 0 {
		if err := e.session.ActivateAverageFilter(e.config.FilterCount); err != nil {
			return err
		}
	}
	if e.config.NoiseWindow > 0 {
		if err := e.session.ActivateAdvancedFilter(e.config.NoiseWindow); err != nil {
			return err
		}
	}
	return nil
}

// Implements the Datasource interface funciton StartRecord
func (e *PicoampDatasource) StartRecord() (chan *proto.Frame, error) {
	if atomic.LoadInt32(&e.recording) == 1 {
		return nil, ErrAlreadyRecording
	}
	if err := e.configureInstrument(); err != nil {
		return nil, err
	}
	var ticker *time.Ticker
	if e.config.PollingInterval == 0 || time.Duration(e.config.PollingInterval)*time.Second < minPolInterval {
		ticker = time.NewTicker(minPolInterval)
	} else {
		ticker = time.NewTicker(time.Duration(e.config.PollingInterval) * time.Second)
	}
	frameChan := make(chan *proto.Frame)
	var writeAPI api.WriteAPI
	if e.config.Influx {
		if e.config.InfluxOrgName == "" || e.config.InfluxBucketName == "" {
			return nil, ErrBlankInfluxOrgOrBucket
		}
		orgAPI := e.client.OrganizationsAPI()
		org, err := orgAPI.FindOrganizationByName(context.Background(), e.config.InfluxOrgName)
		if err != nil {
			return nil, ErrInvalidOrg
		}
		bucketAPI := e.client.BucketsAPI()
		buckets, err := bucketAPI.FindBucketsByOrgName(context.Background(), e.config.InfluxOrgName)
		if err != nil {
			return nil, ErrInvalidOrg
		}
		var found bool
		for _, bucket := range *buckets {
			if bucket.Name == e.config.InfluxBucketName {
				found = true
				break
			}
		}
		if !found {
			e.log.Info("creating influx bucket", "bucket", e.config.InfluxBucketName)
			_, err := bucketAPI.CreateBucketWithName(context.Background(), org, e.config.InfluxBucketName, domain.RetentionRule{EverySeconds: 0})
			if err != nil {
				return nil, err
			}
		}
		writeAPI = e.client.WriteAPI(e.config.InfluxOrgName, e.config.InfluxBucketName)
	}
	if ok := atomic.CompareAndSwapInt32(&e.recording, 0, 1); !ok {
		return nil, ErrAlreadyRecording
	}
	e.Add(1)
	go func() {
		defer e.Done()
		defer close(frameChan)
		defer func() {
			if e.config.Influx {
				writeAPI.Flush()
				e.client.Close()
			}
			ticker.Stop()
		}()
		time.Sleep(1 * time.Second) // sleep for a second while laniakea sets up the plugin
		for {
			select {
			case <-ticker.C:
				current_time := time.Now()
				ch1, ch2, err := e.session.GetMeanCurrent(e.config.SweepCount)
				if err != nil {
					e.log.Error("could not acquire mean currents", "error", err)
					return
				}
				df := Frame{Data: []Payload{
					{Name: "channel 1 mean", Value: ch1.Mean},
					{Name: "channel 1 sem", Value: ch1.StdErr},
					{Name: "channel 2 mean", Value: ch2.Mean},
					{Name: "channel 2 sem", Value: ch2.StdErr},
				}}
				if e.config.Influx {
					for i, m := range []keithley.Measurement{ch1, ch2} {
						p := influx.NewPoint(
							"current",
							map[string]string{
								"channel": strconv.Itoa(i + 1),
							},
							map[string]interface{}{
								"mean": m.Mean,
								"sem":  m.StdErr,
							},
							current_time,
						)
						// write asynchronously
						writeAPI.WritePoint(p)
					}
				}
				// transform to json string
				b, err := json.Marshal(&df)
				if err != nil {
					e.log.Error("could not marshal frame", "error", err)
					return
				}
				frameChan <- &proto.Frame{
					Source:    pluginName,
					Type:      "application/json",
					Timestamp: current_time.UnixMilli(),
					Payload:   b,
				}
			case <-e.quitChan:
				return
			}
		}
	}()
	return frameChan, nil
}

// Implements the Datasource interface funciton StopRecord
func (e *PicoampDatasource) StopRecord() error {
	if ok := atomic.CompareAndSwapInt32(&e.recording, 1, 0); !ok {
		return ErrAlreadyStoppedRecording
	}
	e.quitChan <- struct{}{}
	return nil
}

// Implements the Datasource interface funciton Stop
func (e *PicoampDatasource) Stop() error {
	close(e.quitChan)
	e.Wait()
	if err := e.session.Close(); err != nil {
		e.log.Error("could not close instrument session", "error", err)
	}
	return nil
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{Name: pluginName})
	config, err := cfg.InitConfig()
	if err != nil {
		logger.Error("could not load config", "error", err)
		return
	}
	session := keithley.NewSession(visa.NewManager(logger.Named("visa")), logger.Named("keithley"))
	if config.BaudRate > 0 {
		session.SetBaudRate(config.BaudRate)
	}
	if err := session.Connect(config.InstrumentAddr, config.Identifier); err != nil {
		logger.Error("could not connect to picoammeter", "error", err)
		return
	}
	impl := &PicoampDatasource{quitChan: make(chan struct{}), session: session, config: config, log: logger}
	if config.Influx {
		if config.InfluxURL == "" || config.InfluxAPIToken == "" {
			logger.Error(ErrBlankInfluxURLOrToken.Error())
			return
		}
		impl.client = influx.NewClientWithOptions(config.InfluxURL, config.InfluxAPIToken, influx.DefaultOptions().SetTLSConfig(&tls.Config{InsecureSkipVerify: config.InfluxSkipTLS}))
	}
	impl.SetPluginVersion(pluginVersion)              // set the plugin version before serving
	impl.SetVersionConstraints(laniVersionConstraint) // set required laniakea version before serving
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: sdk.HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			pluginName: &sdk.DatasourcePlugin{Impl: impl},
		},
		// A non-nil value here enables gRPC serving for this plugin...
		GRPCServer: plugin.DefaultGRPCServer,
	})
}
