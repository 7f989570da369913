package victron

import "math"

// periodToFrequency converts a period in units of 100ms (as returned
// by VariableInfo.parse for variables 7/8) to Hz, per spec §4.4.
func periodToFrequency(period float64) float64 {
	if period == 0 {
		return 0
	}
	freq := 10 / period
	return math.Round(freq*100) / 100
}

// decodeResult is everything the frame decoder can produce for one
// validated inbound frame: at most one Response, and/or a W-family
// reply to route to the nonce slot, and/or a signal that bootstrap
// should be pumped again.
type decodeResult struct {
	response    Response
	wLetter     byte
	hasWReply   bool
	needsBootstrap bool
}

// decodeFrame maps a validated inbound frame payload (the L bytes
// named msg[0..L-1] in spec §4.1) to typed responses, consulting vars
// for telemetry scaling. It never mutates vars.
func decodeFrame(msg []byte, vars *variableRegistry) decodeResult {
	switch {
	case len(msg) >= 2 && msg[0] == 0xFF:
		return decodeCommandFrame(msg)
	case len(msg) >= 15 && msg[0] == 0x20:
		return decodeInfoFrame(msg, vars)
	case len(msg) >= 13 && msg[0] == 0x41:
		return decodeResult{response: decodeConfigFrame(msg)}
	default:
		return decodeResult{}
	}
}

func decodeCommandFrame(msg []byte) decodeResult {
	switch msg[1] {
	case 'V':
		if len(msg) < 6 {
			return decodeResult{}
		}
		version := uint32(msg[2]) | uint32(msg[3])<<8 | uint32(msg[4])<<16 | uint32(msg[5])<<24
		return decodeResult{response: VersionResponse{Version: version}}
	case 'L':
		if len(msg) < 4 {
			return decodeResult{}
		}
		return decodeResult{response: LEDResponse{On: LEDState(msg[2]), Blink: LEDState(msg[3])}}
	case 'H':
		if len(msg) < 3 {
			return decodeResult{}
		}
		return decodeResult{response: InterfaceResponse{Flags: InterfaceFlags(msg[2])}}
	case 'S':
		return decodeResult{response: StateResponse{}}
	case 'W', 'X', 'Y', 'Z':
		return decodeResult{wLetter: msg[1], hasWReply: true}
	default:
		return decodeResult{}
	}
}

func decodeInfoFrame(msg []byte, vars *variableRegistry) decodeResult {
	if !vars.ready() {
		return decodeResult{needsBootstrap: true}
	}
	switch {
	case msg[5] == 0x0C:
		return decodeResult{response: DCResponse{
			DCVoltage:            vars.get(4).parse(msg[6:8]),
			DCCurrentToInverter:  vars.get(5).parse(msg[8:11]),
			DCCurrentFromCharger: vars.get(5).parse(msg[11:14]),
			ACInverterFrequency:  periodToFrequency(vars.get(7).parse(msg[14:15])),
		}}
	case msg[5] >= 0x05 && msg[5] <= 0x0B:
		phase := int(msg[5])
		ac := ACResponse{
			ACPhase:           max(9-phase, 1),
			ACNumPhases:       max(phase-7, 0),
			DeviceState:       DeviceState(msg[4]),
			ACMainsVoltage:    vars.get(0).parse(msg[6:8]),
			ACMainsCurrent:    vars.get(1).parse(msg[8:10]) * float64(int8(msg[1])),
			ACInverterVoltage: vars.get(2).parse(msg[10:12]),
			ACInverterCurrent: vars.get(3).parse(msg[12:14]) * float64(int8(msg[2])),
			ACMainsFrequency:  periodToFrequency(vars.get(8).parse(msg[14:15])),
		}
		return decodeResult{response: ac}
	default:
		return decodeResult{}
	}
}

func decodeConfigFrame(msg []byte) ConfigResponse {
	return ConfigResponse{
		LastActiveACInput:             int(msg[5] & 0x03),
		CurrentLimitOverriddenByPanel: msg[5]&0x04 != 0,
		DigitalMultiControlDedicated:  msg[5]&0x08 != 0,
		NumACInputs:                   int(msg[5]&0x70) >> 4,
		RemotePanelDetected:           msg[5]&0x80 != 0,
		MinimumCurrentLimit:           float64(int(msg[6])|int(msg[7])<<8) / 10,
		MaximumCurrentLimit:           float64(int(msg[8])|int(msg[9])<<8) / 10,
		ActualCurrentLimit:            float64(int(msg[10])|int(msg[11])<<8) / 10,
		SwitchRegister:                SwitchRegister(msg[12]),
	}
}
