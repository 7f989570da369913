package victron

// wLetters are the four command letters that multiplex the single
// "W-family" subcommand slot; the device echoes back whichever letter
// the request used.
var wLetters = [4]byte{'W', 'X', 'Y', 'Z'}

// nonceSlot holds the single outstanding W-family request. At most one
// such request is ever in flight: a new request simply advances the
// nonce and replaces any still-pending completion, matching the
// original driver's behavior (it does not wait for the previous
// completion before issuing the next).
type nonceSlot struct {
	n          int
	completion func([]byte)
	hasPending bool
}

// next advances the nonce and records completion as the handler for
// the reply, returning the command letter to send the request with.
func (s *nonceSlot) next(completion func([]byte)) byte {
	s.n = (s.n + 1) % len(wLetters)
	s.completion = completion
	s.hasPending = true
	return wLetters[s.n]
}

// handleReply delivers msg to the pending completion if letter matches
// the current nonce and a completion is outstanding; otherwise the
// reply is silently dropped, per spec §4.3.
func (s *nonceSlot) handleReply(letter byte, msg []byte) {
	if !s.hasPending || wLetters[s.n] != letter {
		return
	}
	completion := s.completion
	s.completion = nil
	s.hasPending = false
	completion(msg)
}
