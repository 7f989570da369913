package victron

import "testing"

func TestNonceCorrelation(t *testing.T) {
	var slot nonceSlot
	var got []byte
	letter := slot.next(func(msg []byte) { got = msg })
	if letter != 'X' { // nonce advances 0 -> 1 on first call
		t.Fatalf("next() = %q, want 'X'", letter)
	}

	for _, other := range wLetters {
		if other == letter {
			continue
		}
		slot.handleReply(other, []byte{1})
	}
	if got != nil {
		t.Fatalf("a non-matching letter fired the pending completion: %v", got)
	}

	slot.handleReply(letter, []byte{0xAB})
	if len(got) != 1 || got[0] != 0xAB {
		t.Fatalf("matching letter did not fire completion, got %v", got)
	}

	// A second reply with the same letter must be ignored: the
	// completion was already consumed.
	got = nil
	slot.handleReply(letter, []byte{0xCD})
	if got != nil {
		t.Fatalf("reply delivered after completion was already consumed: %v", got)
	}
}

func TestNonceNoOutstandingRequest(t *testing.T) {
	var slot nonceSlot
	// No next() call yet: hasPending is false, so handleReply must not
	// touch s.completion (nil) and must not panic.
	slot.handleReply('W', []byte{1})

	var called bool
	letter := slot.next(func(msg []byte) { called = true })

	// A reply that matches neither the current letter is dropped and
	// the pending completion must still be callable afterward.
	for _, other := range wLetters {
		if other == letter {
			continue
		}
		slot.handleReply(other, []byte{1})
	}
	if called {
		t.Fatal("handleReply fired the pending completion for a non-matching letter")
	}

	slot.handleReply(letter, []byte{1})
	if !called {
		t.Fatal("handleReply did not fire the pending completion for the matching letter")
	}
}
