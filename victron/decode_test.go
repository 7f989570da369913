package victron

import "testing"

func readyRegistry(infos map[int]VariableInfo) *variableRegistry {
	r := newVariableRegistry()
	r.pending = nil
	r.info = infos
	return r
}

func TestPeriodToFrequency(t *testing.T) {
	cases := []struct {
		period float64
		want   float64
	}{
		{0, 0},
		{0.2, 50.0},
		{1.0 / 6.0, 60.0},
	}
	for _, c := range cases {
		if got := periodToFrequency(c.period); got != c.want {
			t.Fatalf("periodToFrequency(%v) = %v, want %v", c.period, got, c.want)
		}
	}
}

func TestGatedInfoDecoding(t *testing.T) {
	r := newVariableRegistry() // not ready: pending ids remain
	msg := make([]byte, 15)
	msg[0] = 0x20
	msg[5] = 0x0C // DC subtype

	result := decodeFrame(msg, r)
	if result.response != nil {
		t.Fatalf("decodeFrame delivered a response before bootstrap completed: %+v", result.response)
	}
	if !result.needsBootstrap {
		t.Fatal("decodeFrame did not signal that bootstrap needs pumping")
	}
}

func TestDCFrameDecode(t *testing.T) {
	r := readyRegistry(map[int]VariableInfo{
		4: {Signed: false, Scale: 0.01, Offset: 0},
		5: {Signed: true, Scale: 0.1, Offset: 0},
		7: {Signed: false, Scale: 1, Offset: 0},
	})
	msg := make([]byte, 15)
	msg[0] = 0x20
	msg[5] = 0x0C
	// dc_voltage: 2500 * 0.01 = 25.00
	msg[6], msg[7] = 0xC4, 0x09 // 2500
	// dc_current_to_inverter: 3-byte field at 8..11
	msg[8], msg[9], msg[10] = 100, 0, 0
	// dc_current_from_charger: 3-byte field at 11..14
	msg[11], msg[12], msg[13] = 50, 0, 0
	msg[14] = 5 // period -> 10/5 = 2.0 Hz

	result := decodeFrame(msg, r)
	dc, ok := result.response.(DCResponse)
	if !ok {
		t.Fatalf("decodeFrame did not return a DCResponse: %+v", result)
	}
	if dc.DCVoltage != 25.0 {
		t.Errorf("DCVoltage = %v, want 25.0", dc.DCVoltage)
	}
	if dc.DCCurrentToInverter != 10.0 {
		t.Errorf("DCCurrentToInverter = %v, want 10.0", dc.DCCurrentToInverter)
	}
	if dc.DCCurrentFromCharger != 5.0 {
		t.Errorf("DCCurrentFromCharger = %v, want 5.0", dc.DCCurrentFromCharger)
	}
	if dc.ACInverterFrequency != 2.0 {
		t.Errorf("ACInverterFrequency = %v, want 2.0", dc.ACInverterFrequency)
	}
}

func TestACFrameDecode(t *testing.T) {
	r := readyRegistry(map[int]VariableInfo{
		0: {Signed: false, Scale: 0.01, Offset: 0},
		1: {Signed: true, Scale: 0.1, Offset: 0},
		2: {Signed: false, Scale: 0.01, Offset: 0},
		3: {Signed: true, Scale: 0.1, Offset: 0},
		8: {Signed: false, Scale: 1, Offset: 0},
	})
	msg := make([]byte, 15)
	msg[0] = 0x20
	msg[1] = 1 // mains current direction
	msg[2] = 1 // inverter current direction
	msg[4] = byte(DeviceInvertFull)
	msg[5] = 0x08
	// mains voltage raw 23000 -> *0.01 = 230.0
	msg[6], msg[7] = byte(23000), byte(23000>>8)

	result := decodeFrame(msg, r)
	ac, ok := result.response.(ACResponse)
	if !ok {
		t.Fatalf("decodeFrame did not return an ACResponse: %+v", result)
	}
	if ac.ACPhase != 1 {
		t.Errorf("ACPhase = %d, want 1", ac.ACPhase)
	}
	if ac.ACNumPhases != 1 {
		t.Errorf("ACNumPhases = %d, want 1", ac.ACNumPhases)
	}
	if ac.ACMainsVoltage != 230.0 {
		t.Errorf("ACMainsVoltage = %v, want 230.0", ac.ACMainsVoltage)
	}
	if ac.DeviceState != DeviceInvertFull {
		t.Errorf("DeviceState = %v, want %v", ac.DeviceState, DeviceInvertFull)
	}
}

func TestConfigFrameDecode(t *testing.T) {
	msg := []byte{0x41, 0x00, 0x00, 0x00, 0x00, 0x0C, 0x64, 0x00, 0xC8, 0x00, 0x96, 0x00, 0x11}
	result := decodeFrame(msg, newVariableRegistry())
	cfg, ok := result.response.(ConfigResponse)
	if !ok {
		t.Fatalf("decodeFrame did not return a ConfigResponse: %+v", result)
	}
	if cfg.LastActiveACInput != 0 {
		t.Errorf("LastActiveACInput = %d, want 0", cfg.LastActiveACInput)
	}
	if !cfg.CurrentLimitOverriddenByPanel {
		t.Error("CurrentLimitOverriddenByPanel = false, want true")
	}
	if !cfg.DigitalMultiControlDedicated {
		t.Error("DigitalMultiControlDedicated = false, want true")
	}
	if cfg.NumACInputs != 0 {
		t.Errorf("NumACInputs = %d, want 0", cfg.NumACInputs)
	}
	if cfg.RemotePanelDetected {
		t.Error("RemotePanelDetected = true, want false")
	}
	if cfg.MinimumCurrentLimit != 10.0 || cfg.MaximumCurrentLimit != 20.0 || cfg.ActualCurrentLimit != 15.0 {
		t.Errorf("limits = %v/%v/%v, want 10.0/20.0/15.0", cfg.MinimumCurrentLimit, cfg.MaximumCurrentLimit, cfg.ActualCurrentLimit)
	}
	want := SwitchRegDirectRemoteCharge | SwitchRegSwitchCharge
	if cfg.SwitchRegister != want {
		t.Errorf("SwitchRegister = %#x, want %#x", cfg.SwitchRegister, want)
	}
}

func TestVersionAndLEDAndInterfaceDecode(t *testing.T) {
	msg := []byte{0xFF, 'V', 1, 2, 3, 4}
	result := decodeFrame(msg, newVariableRegistry())
	v, ok := result.response.(VersionResponse)
	if !ok || v.Version != 0x04030201 {
		t.Fatalf("version decode = %+v, ok=%v", result.response, ok)
	}

	msg = []byte{0xFF, 'L', byte(LEDMains), byte(LEDFloat)}
	result = decodeFrame(msg, newVariableRegistry())
	led, ok := result.response.(LEDResponse)
	if !ok || led.On != LEDMains || led.Blink != LEDFloat {
		t.Fatalf("led decode = %+v, ok=%v", result.response, ok)
	}

	msg = []byte{0xFF, 'H', byte(DefaultInterfaceFlags)}
	result = decodeFrame(msg, newVariableRegistry())
	iface, ok := result.response.(InterfaceResponse)
	if !ok || iface.Flags != DefaultInterfaceFlags {
		t.Fatalf("interface decode = %+v, ok=%v", result.response, ok)
	}

	msg = []byte{0xFF, 'S'}
	result = decodeFrame(msg, newVariableRegistry())
	if _, ok := result.response.(StateResponse); !ok {
		t.Fatalf("state decode = %+v, ok=%v", result.response, ok)
	}
}
