package victron

// waiter is one entry in the waiter table: it is fulfilled by the
// first still-unfilled response that matches kind and, if set,
// predicate (spec §4.6). result receives the matching response; on
// timeout the waiter is removed from the table and result receives
// nothing.
type waiter struct {
	match  func(Response) bool
	result chan Response
}

// waiterTable is the ordered set of in-flight request/response
// correlations. It is guarded by the Session's mutex; only the driver
// loop scans and fulfills it, while request methods append to and
// remove from it.
type waiterTable struct {
	entries []*waiter
}

func (t *waiterTable) add(match func(Response) bool) *waiter {
	w := &waiter{match: match, result: make(chan Response, 1)}
	t.entries = append(t.entries, w)
	return w
}

// remove drops w from the table, e.g. after its timeout fires. It is
// a no-op if w was already fulfilled and removed.
func (t *waiterTable) remove(w *waiter) {
	for i, e := range t.entries {
		if e == w {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// deliver offers resp to every waiter in insertion order, fulfilling
// and removing the first match. It returns whether any waiter claimed
// the response; an unclaimed response is still reported to the
// application handler.
func (t *waiterTable) deliver(resp Response) bool {
	for i, e := range t.entries {
		if e.match(resp) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			e.result <- resp
			return true
		}
	}
	return false
}

func matchKind[T Response](phase func(T) bool) func(Response) bool {
	return func(r Response) bool {
		t, ok := r.(T)
		if !ok {
			return false
		}
		if phase == nil {
			return true
		}
		return phase(t)
	}
}
