package victron

import "fmt"

// SwitchState is the remote switch position commandable through the
// 'S' frame.
type SwitchState byte

const (
	SwitchChargerOnly SwitchState = 1
	SwitchInverterOnly SwitchState = 2
	SwitchOn          SwitchState = 3
	SwitchOff         SwitchState = 4
)

func (s SwitchState) String() string {
	switch s {
	case SwitchChargerOnly:
		return "ChargerOnly"
	case SwitchInverterOnly:
		return "InverterOnly"
	case SwitchOn:
		return "On"
	case SwitchOff:
		return "Off"
	default:
		return fmt.Sprintf("SwitchState(%d)", byte(s))
	}
}

// DeviceState is the VE.Bus device's reported operating state, carried
// in AC info frames.
type DeviceState byte

const (
	DeviceDown        DeviceState = 0
	DeviceStartup     DeviceState = 1
	DeviceOff         DeviceState = 2
	DeviceSlave       DeviceState = 3
	DeviceInvertFull  DeviceState = 4
	DeviceInvertHalf  DeviceState = 5
	DeviceInvertAES   DeviceState = 6
	DevicePowerAssist DeviceState = 7
	DeviceBypass      DeviceState = 8
	DeviceStateCharge DeviceState = 9
)

func (d DeviceState) String() string {
	switch d {
	case DeviceDown:
		return "Down"
	case DeviceStartup:
		return "Startup"
	case DeviceOff:
		return "Off"
	case DeviceSlave:
		return "Slave"
	case DeviceInvertFull:
		return "InvertFull"
	case DeviceInvertHalf:
		return "InvertHalf"
	case DeviceInvertAES:
		return "InvertAES"
	case DevicePowerAssist:
		return "PowerAssist"
	case DeviceBypass:
		return "Bypass"
	case DeviceStateCharge:
		return "StateCharge"
	default:
		return fmt.Sprintf("DeviceState(%d)", byte(d))
	}
}

// LEDState is a bitmask of the front-panel LEDs.
type LEDState byte

const (
	LEDMains       LEDState = 0x01
	LEDAbsorption  LEDState = 0x02
	LEDBulk        LEDState = 0x04
	LEDFloat       LEDState = 0x08
	LEDInverter    LEDState = 0x10
	LEDOverload    LEDState = 0x20
	LEDLowBattery  LEDState = 0x40
	LEDTemperature LEDState = 0x80
)

// SwitchRegister is a bitmask reporting the resolved switch state as
// seen by the device, including front-panel and direct-remote inputs.
type SwitchRegister byte

const (
	SwitchRegDirectRemoteCharge SwitchRegister = 0x01
	SwitchRegDirectRemoteInvert SwitchRegister = 0x02
	SwitchRegFrontSwitchUp      SwitchRegister = 0x04
	SwitchRegFrontSwitchDown    SwitchRegister = 0x08
	SwitchRegSwitchCharge       SwitchRegister = 0x10
	SwitchRegSwitchInvert       SwitchRegister = 0x20
	SwitchRegOnboardRemoteInvert SwitchRegister = 0x40
	SwitchRegRemoteGeneratorSelected SwitchRegister = 0x80
)

// InterfaceFlags is a bitmask of MK3 GPIO-backed interface flags
// exposed over the 'H' command.
type InterfaceFlags byte

const (
	InterfacePanelDetect InterfaceFlags = 0x01
	InterfaceStandby     InterfaceFlags = 0x02
	// InterfaceUndocumented04 is observed on real hardware but its
	// function is not documented; it is included in the power-up
	// default mask for fidelity with observed behavior.
	InterfaceUndocumented04 InterfaceFlags = 0x04
)

// DefaultInterfaceFlags is the mask reported by the interface on
// power-up.
const DefaultInterfaceFlags = InterfacePanelDetect | InterfaceUndocumented04

// Fault describes why a Session terminated.
type Fault int

const (
	// FaultInaccessible means the transport could not be opened.
	FaultInaccessible Fault = iota + 1
	// FaultIOError means a transport read or write failed after a
	// successful open.
	FaultIOError
	// FaultException means an unexpected failure occurred in the
	// driver loop.
	FaultException
)

func (f Fault) String() string {
	switch f {
	case FaultInaccessible:
		return "inaccessible"
	case FaultIOError:
		return "io error"
	case FaultException:
		return "exception"
	default:
		return fmt.Sprintf("Fault(%d)", int(f))
	}
}

// ProbeResult is the outcome of a one-shot Probe.
type ProbeResult int

const (
	ProbeOK ProbeResult = iota
	ProbeInaccessible
	ProbeIOError
	ProbeUnresponsive
	ProbeException
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeOK:
		return "ok"
	case ProbeInaccessible:
		return "inaccessible"
	case ProbeIOError:
		return "io error"
	case ProbeUnresponsive:
		return "unresponsive"
	case ProbeException:
		return "exception"
	default:
		return fmt.Sprintf("ProbeResult(%d)", int(r))
	}
}

var faultToProbeResult = map[Fault]ProbeResult{
	FaultInaccessible: ProbeInaccessible,
	FaultIOError:      ProbeIOError,
	FaultException:    ProbeException,
}

// Response is the tagged-union of decoded frame kinds. Each concrete
// type below implements it; handlers dispatch by type switch.
type Response interface {
	isResponse()
}

// VersionResponse carries the device's firmware version, reported in
// reply to a 'V' request.
type VersionResponse struct {
	Version uint32
}

func (VersionResponse) isResponse() {}

// LEDResponse reports the front-panel LED state, reported in reply to
// an 'L' request.
type LEDResponse struct {
	On    LEDState
	Blink LEDState
}

func (LEDResponse) isResponse() {}

// InterfaceResponse reports the MK3 interface GPIO flags, reported in
// reply to an 'H' request.
type InterfaceResponse struct {
	Flags InterfaceFlags
}

func (InterfaceResponse) isResponse() {}

// StateResponse is the acknowledgement sentinel for an 'S' request.
type StateResponse struct{}

func (StateResponse) isResponse() {}

// DCResponse carries DC-side and shared telemetry, decoded from an
// Info frame with subtype 0x0C.
type DCResponse struct {
	DCVoltage             float64
	DCCurrentToInverter   float64
	DCCurrentFromCharger  float64
	ACInverterFrequency   float64
}

func (DCResponse) isResponse() {}

// ACResponse carries per-phase AC telemetry, decoded from an Info
// frame with subtype in 0x05..0x0B.
type ACResponse struct {
	ACPhase           int
	ACNumPhases       int
	DeviceState       DeviceState
	ACMainsVoltage    float64
	ACMainsCurrent    float64
	ACInverterVoltage float64
	ACInverterCurrent float64
	ACMainsFrequency  float64
}

func (ACResponse) isResponse() {}

// ConfigResponse carries the device's configuration, decoded from a
// Config frame.
type ConfigResponse struct {
	LastActiveACInput              int
	CurrentLimitOverriddenByPanel  bool
	DigitalMultiControlDedicated   bool
	NumACInputs                    int
	RemotePanelDetected            bool
	MinimumCurrentLimit            float64
	MaximumCurrentLimit            float64
	ActualCurrentLimit             float64
	SwitchRegister                 SwitchRegister
}

func (ConfigResponse) isResponse() {}
