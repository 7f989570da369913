// command victronctl is the internal tool for exercising a Victron
// MK2/MK3 interface: it polls a device on an interval and logs
// whatever it reports, or probes it once and exits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"seedhammer.com/victron"
)

var (
	serialDev = flag.String("device", "", "serial device")
	probe     = flag.Bool("probe", false, "probe the device once and exit")
	interval  = flag.Duration("interval", 2*time.Second, "polling interval")
	phase     = flag.Int("phase", 1, "AC phase to request (1-4)")
	setState  = flag.String("set-state", "", "command the remote switch: chargeronly, inverteronly, on, off")
	current   = flag.Float64("current-limit", 0, "current limit in amps for -set-state (0 = device minimum)")
	verbose   = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *serialDev == "" {
		return errors.New("specify a -device")
	}
	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	cfg := victron.DefaultConfig()
	cfg.Logger = entry
	open := victron.Open(*serialDev)

	if *probe {
		result := victron.Probe(open, cfg)
		fmt.Println(result)
		if result != victron.ProbeOK {
			os.Exit(1)
		}
		return nil
	}

	state, hasState, err := parseSwitchState(*setState)
	if err != nil {
		return err
	}

	s := victron.NewSession(open, cfg)
	h := &pollHandler{log: entry}
	s.Start(h)
	defer s.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Reset(os.Interrupt, syscall.SIGTERM)

	if hasState {
		limit := *current
		resp, ok := s.RequestState(state, &limit)
		if !ok {
			return errors.New("device did not acknowledge the state request")
		}
		entry.WithField("response", resp).Info("state acknowledged")
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			poll(s, entry, *phase)
		}
	}
}

func parseSwitchState(s string) (victron.SwitchState, bool, error) {
	switch s {
	case "":
		return 0, false, nil
	case "chargeronly":
		return victron.SwitchChargerOnly, true, nil
	case "inverteronly":
		return victron.SwitchInverterOnly, true, nil
	case "on":
		return victron.SwitchOn, true, nil
	case "off":
		return victron.SwitchOff, true, nil
	default:
		return 0, false, fmt.Errorf("unknown -set-state %q", s)
	}
}

func poll(s *victron.Session, log *logrus.Entry, phase int) {
	if v, ok := s.RequestVersion(); ok {
		log.WithField("version", fmt.Sprintf("%#x", v.Version)).Info("version")
	}
	if dc, ok := s.RequestDC(); ok {
		log.WithFields(logrus.Fields{
			"dc_voltage":     dc.DCVoltage,
			"to_inverter":    dc.DCCurrentToInverter,
			"from_charger":   dc.DCCurrentFromCharger,
			"inverter_freq":  dc.ACInverterFrequency,
		}).Info("dc")
	}
	if ac, ok := s.RequestAC(phase); ok {
		log.WithFields(logrus.Fields{
			"phase":        ac.ACPhase,
			"num_phases":   ac.ACNumPhases,
			"device_state": ac.DeviceState,
			"mains_v":      ac.ACMainsVoltage,
			"mains_a":      ac.ACMainsCurrent,
			"inverter_v":   ac.ACInverterVoltage,
			"inverter_a":   ac.ACInverterCurrent,
		}).Info("ac")
	}
	if cfg, ok := s.RequestConfig(); ok {
		log.WithFields(logrus.Fields{
			"actual_limit":  cfg.ActualCurrentLimit,
			"minimum_limit": cfg.MinimumCurrentLimit,
			"maximum_limit": cfg.MaximumCurrentLimit,
		}).Info("config")
	}
}

// pollHandler logs idle and fault events and ignores responses (the
// poll loop logs the ones it requests); it does not itself drive any
// requests (the poll loop in run does that).
type pollHandler struct {
	log *logrus.Entry
}

func (h *pollHandler) OnResponse(victron.Response) {}

func (h *pollHandler) OnIdle() {
	h.log.Debug("idle")
}

func (h *pollHandler) OnFault(f victron.Fault) {
	h.log.WithField("fault", f).Error("session terminated")
	os.Exit(1)
}
