package victron

import "sync"

// probeHandler records whichever of OnResponse/OnIdle/OnFault fires
// first and signals done; later callbacks are ignored.
type probeHandler struct {
	once   sync.Once
	done   chan struct{}
	result ProbeResult
}

func newProbeHandler() *probeHandler {
	return &probeHandler{done: make(chan struct{})}
}

func (h *probeHandler) OnResponse(Response) {
	h.once.Do(func() {
		h.result = ProbeOK
		close(h.done)
	})
}

func (h *probeHandler) OnIdle() {
	h.once.Do(func() {
		h.result = ProbeUnresponsive
		close(h.done)
	})
}

func (h *probeHandler) OnFault(f Fault) {
	h.once.Do(func() {
		if mapped, ok := faultToProbeResult[f]; ok {
			h.result = mapped
		} else {
			h.result = ProbeException
		}
		close(h.done)
	})
}

// Probe attempts to connect to a Victron MK2/MK3 interface via open,
// then disconnects and reports what happened: OK if a response was
// decoded, Unresponsive if the interface stayed idle, or a fault
// mapping otherwise.
func Probe(open Opener, cfg Config) ProbeResult {
	h := newProbeHandler()
	s := NewSession(open, cfg)
	s.Start(h)
	<-h.done
	s.Stop()
	return h.result
}
