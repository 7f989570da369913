package victron

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler is the application's callback surface. All three methods
// are invoked from the driver loop and must not block; the Session
// does not retain any reference to a Response after OnResponse
// returns.
type Handler interface {
	// OnResponse is called for every decoded response, whether or not
	// a pending request claimed it.
	OnResponse(Response)
	// OnIdle is called when the interface has not produced a frame for
	// Config.IdleTimeout. It does not indicate a fault: the device may
	// simply be quiescent.
	OnIdle()
	// OnFault is called once, when the session terminates abnormally.
	OnFault(Fault)
}

// Opener opens the byte stream the Session will speak the MK2/MK3
// protocol over. Opening the concrete transport (serial port, pty,
// etc.) is outside the core's scope; Open in this package provides
// one implementation backed by a real serial port.
type Opener func() (io.ReadWriteCloser, error)

// Config holds the Session's tunable timeouts. The zero value is not
// directly usable; NewSession fills zero fields with the defaults
// from spec §4.6/§4.7.
type Config struct {
	// IdleTimeout is how long the read loop waits for a frame before
	// calling Handler.OnIdle. Spec recommends 5s, accepts 2s.
	IdleTimeout time.Duration

	VersionTimeout   time.Duration
	InterfaceTimeout time.Duration
	LEDTimeout       time.Duration
	DCTimeout        time.Duration
	ACTimeout        time.Duration
	StateTimeout     time.Duration
	ConfigTimeout    time.Duration

	// Logger receives debug-level frame traces and info-level
	// lifecycle events. A nil Logger discards all output.
	Logger *logrus.Entry
}

// DefaultConfig returns the Config used by NewSession when fields are
// left at their zero value.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      5 * time.Second,
		VersionTimeout:   500 * time.Millisecond,
		InterfaceTimeout: 500 * time.Millisecond,
		LEDTimeout:       500 * time.Millisecond,
		DCTimeout:        500 * time.Millisecond,
		ACTimeout:        500 * time.Millisecond,
		StateTimeout:     500 * time.Millisecond,
		ConfigTimeout:    time.Second,
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.VersionTimeout == 0 {
		cfg.VersionTimeout = def.VersionTimeout
	}
	if cfg.InterfaceTimeout == 0 {
		cfg.InterfaceTimeout = def.InterfaceTimeout
	}
	if cfg.LEDTimeout == 0 {
		cfg.LEDTimeout = def.LEDTimeout
	}
	if cfg.DCTimeout == 0 {
		cfg.DCTimeout = def.DCTimeout
	}
	if cfg.ACTimeout == 0 {
		cfg.ACTimeout = def.ACTimeout
	}
	if cfg.StateTimeout == 0 {
		cfg.StateTimeout = def.StateTimeout
	}
	if cfg.ConfigTimeout == 0 {
		cfg.ConfigTimeout = def.ConfigTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger
	}
	return cfg
}

// Session owns one connection to a Victron MK2/MK3 interface: the
// transport, the variable registry, the nonce slot, and the waiter
// table. It is created by NewSession and destroyed by Stop; a stopped
// Session must not be reused (construct a new one instead).
type Session struct {
	open Opener
	cfg  Config
	log  *logrus.Entry

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	vars    *variableRegistry
	nonce   nonceSlot
	waiters waiterTable

	terminated bool
	stopped    chan struct{}
	stopOnce   sync.Once
	loopDone   chan struct{}
}

// NewSession constructs a Session that will open its transport with
// open. The Session does nothing until Start is called.
func NewSession(open Opener, cfg Config) *Session {
	cfg = normalizeConfig(cfg)
	return &Session{
		open:     open,
		cfg:      cfg,
		log:      cfg.Logger,
		vars:     newVariableRegistry(),
		stopped:  make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start opens the transport and begins the driver loop, delivering
// events to handler. It returns once the open attempt has completed,
// whether it succeeded or failed; a failed open is reported to
// handler.OnFault shortly after Start returns, matching spec §4.7's
// Opening state.
func (s *Session) Start(handler Handler) {
	ready := make(chan struct{})
	go s.run(handler, ready)
	<-ready
}

// Stop terminates the driver loop and closes the transport. After
// Stop returns, request methods are no-ops that return no response.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.terminated = true
		conn := s.conn
		s.mu.Unlock()
		close(s.stopped)
		if conn != nil {
			conn.Close()
		}
	})
	<-s.loopDone
}

func (s *Session) run(handler Handler, ready chan<- struct{}) {
	defer close(s.loopDone)

	conn, err := s.open()
	if err != nil {
		close(ready)
		s.log.WithError(err).Info("victron: failed to open transport")
		handler.OnFault(FaultInaccessible)
		return
	}
	s.mu.Lock()
	if s.terminated {
		// Stop raced us before the open completed.
		s.mu.Unlock()
		close(ready)
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	close(ready)
	s.log.Info("victron: session started")

	defer func() {
		s.mu.Lock()
		s.terminated = true
		s.mu.Unlock()
		conn.Close()
	}()

	fr := newFrameReader(conn)
	s.mu.Lock()
	s.sendFrameLocked('V', nil)
	s.pumpVariablesLocked(time.Now())
	s.mu.Unlock()

	type frameResult struct {
		payload []byte
		ok      bool
		err     error
	}
	frames := make(chan frameResult)
	go func() {
		for {
			payload, ok, err := fr.readFrame()
			select {
			case frames <- frameResult{payload, ok, err}:
			case <-s.stopped:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-s.stopped:
			s.log.Info("victron: session stopped")
			return
		case res := <-frames:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(s.cfg.IdleTimeout)
			if res.err != nil {
				select {
				case <-s.stopped:
					return
				default:
				}
				s.log.WithError(res.err).Info("victron: transport read failed")
				handler.OnFault(FaultIOError)
				return
			}
			if !res.ok {
				s.log.Debug("victron: dropped frame with bad checksum")
				continue
			}
			s.log.WithField("frame", fmt.Sprintf("%x", res.payload)).Debug("victron: received frame")
			s.handleFrame(res.payload, handler)
		case <-idle.C:
			idle.Reset(s.cfg.IdleTimeout)
			handler.OnIdle()
		}
	}
}

func (s *Session) handleFrame(msg []byte, handler Handler) {
	s.mu.Lock()
	result := decodeFrame(msg, s.vars)
	if result.hasWReply {
		s.nonce.handleReply(result.wLetter, msg)
	}
	if result.needsBootstrap {
		s.pumpVariablesLocked(time.Now())
	}
	var resp Response
	if result.response != nil {
		resp = result.response
		s.waiters.deliver(resp)
	}
	s.mu.Unlock()
	if resp != nil {
		handler.OnResponse(resp)
	}
}

// pumpVariablesLocked sends the next bootstrap request if one is due.
// Callers must hold s.mu.
func (s *Session) pumpVariablesLocked(now time.Time) {
	s.vars.pump(now, s.sendFrameLocked, func(data []byte, completion func([]byte)) {
		letter := s.nonce.next(func(msg []byte) {
			completion(msg)
			s.pumpVariablesLocked(time.Now())
		})
		s.sendFrameLocked(letter, data)
	})
}

// sendFrameLocked encodes and writes a frame, swallowing any write
// error: the read half is the sole authority on session health and
// will surface the same failure as a Fault (spec §4.7, §5). Callers
// must hold s.mu.
func (s *Session) sendFrameLocked(cmd byte, data []byte) {
	if s.conn == nil {
		return
	}
	msg := encodeFrame(cmd, data)
	s.log.WithField("frame", fmt.Sprintf("%x", msg)).Debug("victron: sending frame")
	_, _ = s.conn.Write(msg)
}

// request registers a waiter matching match, sends the frame built by
// send, and waits up to timeout for a response. It returns nil if the
// session is terminated, times out, or stops while waiting: spec §4.6
// treats all of these as "no response", not an error.
func (s *Session) request(timeout time.Duration, match func(Response) bool, send func()) Response {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil
	}
	w := s.waiters.add(match)
	send()
	s.mu.Unlock()

	select {
	case resp := <-w.result:
		return resp
	case <-time.After(timeout):
		s.mu.Lock()
		s.waiters.remove(w)
		s.mu.Unlock()
		return nil
	case <-s.stopped:
		return nil
	}
}

// send is the fire-and-forget counterpart to request: it writes the
// frame and returns immediately without waiting for or claiming any
// reply, for callers that only care about Handler.OnResponse.
func (s *Session) send(build func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	build()
}

// SendVersionRequest requests a VersionResponse without waiting for
// it.
func (s *Session) SendVersionRequest() {
	s.send(func() { s.sendFrameLocked('V', nil) })
}

// RequestVersion requests a VersionResponse and waits for it.
func (s *Session) RequestVersion() (VersionResponse, bool) {
	resp := s.request(s.cfg.VersionTimeout, matchKind[VersionResponse](nil), func() {
		s.sendFrameLocked('V', nil)
	})
	v, ok := resp.(VersionResponse)
	return v, ok
}

// SendLEDRequest requests a LEDResponse without waiting for it.
func (s *Session) SendLEDRequest() {
	s.send(func() { s.sendFrameLocked('L', nil) })
}

// RequestLED requests a LEDResponse and waits for it.
func (s *Session) RequestLED() (LEDResponse, bool) {
	resp := s.request(s.cfg.LEDTimeout, matchKind[LEDResponse](nil), func() {
		s.sendFrameLocked('L', nil)
	})
	v, ok := resp.(LEDResponse)
	return v, ok
}

// SendDCRequest requests a DCResponse without waiting for it.
func (s *Session) SendDCRequest() {
	s.send(func() { s.sendFrameLocked('F', []byte{0}) })
}

// RequestDC requests a DCResponse and waits for it.
func (s *Session) RequestDC() (DCResponse, bool) {
	resp := s.request(s.cfg.DCTimeout, matchKind[DCResponse](nil), func() {
		s.sendFrameLocked('F', []byte{0})
	})
	v, ok := resp.(DCResponse)
	return v, ok
}

// SendACRequest requests an ACResponse for phase without waiting.
func (s *Session) SendACRequest(phase int) {
	s.send(func() { s.sendFrameLocked('F', []byte{byte(phase)}) })
}

// RequestAC requests an ACResponse for phase (1..=4) and waits for
// it. Because AC frames stream continuously for every phase, the
// waiter only matches a response for the requested phase.
func (s *Session) RequestAC(phase int) (ACResponse, bool) {
	resp := s.request(s.cfg.ACTimeout, matchKind(func(r ACResponse) bool {
		return r.ACPhase == phase
	}), func() {
		s.sendFrameLocked('F', []byte{byte(phase)})
	})
	v, ok := resp.(ACResponse)
	return v, ok
}

// SendConfigRequest requests a ConfigResponse without waiting.
func (s *Session) SendConfigRequest() {
	s.send(func() { s.sendFrameLocked('F', []byte{5}) })
}

// RequestConfig requests a ConfigResponse and waits for it.
func (s *Session) RequestConfig() (ConfigResponse, bool) {
	resp := s.request(s.cfg.ConfigTimeout, matchKind[ConfigResponse](nil), func() {
		s.sendFrameLocked('F', []byte{5})
	})
	v, ok := resp.(ConfigResponse)
	return v, ok
}

// SendInterfaceRequest requests an InterfaceResponse without waiting.
func (s *Session) SendInterfaceRequest() {
	s.send(func() { s.sendFrameLocked('H', nil) })
}

// RequestInterface requests an InterfaceResponse and waits for it.
func (s *Session) RequestInterface() (InterfaceResponse, bool) {
	resp := s.request(s.cfg.InterfaceTimeout, matchKind[InterfaceResponse](nil), func() {
		s.sendFrameLocked('H', nil)
	})
	v, ok := resp.(InterfaceResponse)
	return v, ok
}

// SetInterfaceFlags sets the MK3 interface GPIO flags and waits for
// the device's acknowledging InterfaceResponse.
func (s *Session) SetInterfaceFlags(flags InterfaceFlags) (InterfaceResponse, bool) {
	resp := s.request(s.cfg.InterfaceTimeout, matchKind[InterfaceResponse](nil), func() {
		s.sendFrameLocked('H', []byte{byte(flags) & 0xFF})
	})
	v, ok := resp.(InterfaceResponse)
	return v, ok
}

// encodeStateValue computes the current-limit field of an 'S' request
// per spec §4.5: absent means maximum, non-positive means minimum,
// otherwise the limit in deci-amps clamped to the protocol's range.
func encodeStateValue(currentLimit *float64) int {
	switch {
	case currentLimit == nil:
		return 0x8000
	case *currentLimit <= 0:
		return 0
	default:
		v := int(*currentLimit * 10)
		if v > 0x7FFF {
			v = 0x7FFF
		}
		return v
	}
}

func stateRequestPayload(state SwitchState, currentLimit *float64) []byte {
	value := encodeStateValue(currentLimit)
	return []byte{byte(state), byte(value & 0xFF), byte(value >> 8), 0x01, 0x80}
}

// SendStateRequest commands the remote switch state and current limit
// (in amps) without waiting for the acknowledgement. A nil
// currentLimit requests the maximum limit.
func (s *Session) SendStateRequest(state SwitchState, currentLimit *float64) {
	s.send(func() { s.sendFrameLocked('S', stateRequestPayload(state, currentLimit)) })
}

// RequestState commands the remote switch state and current limit and
// waits for the acknowledging StateResponse.
func (s *Session) RequestState(state SwitchState, currentLimit *float64) (StateResponse, bool) {
	resp := s.request(s.cfg.StateTimeout, matchKind[StateResponse](nil), func() {
		s.sendFrameLocked('S', stateRequestPayload(state, currentLimit))
	})
	v, ok := resp.(StateResponse)
	return v, ok
}
