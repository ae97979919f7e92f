package dag

// Verdict is the memoized outcome of validating a transaction.
type Verdict uint8

const (
	// Unknown means the transaction has not been evaluated yet.
	Unknown Verdict = iota
	// Valid transactions may be committed.
	Valid
	// Invalid transactions have a missing, revoked or badly signed ancestor,
	// or a bad signature of their own.
	Invalid
	// Cyclic transactions have an ancestry that loops back on itself.
	Cyclic
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Valid:
		return "Valid"
	case Invalid:
		return "Invalid"
	case Cyclic:
		return "Cyclic"
	default:
		return "Unknown"
	}
}

// ValidationCache memoizes verdicts by transaction id, along with the reason
// and cause of each failure. A cache is meant for one validation pass against
// one state of the graph and is not safe for concurrent use.
type ValidationCache struct {
	entries map[string]cacheEntry
}

type cacheEntry struct {
	verdict Verdict
	reason  Reason
	cause   string
}

// NewValidationCache returns an empty cache.
func NewValidationCache() *ValidationCache {
	return &ValidationCache{entries: make(map[string]cacheEntry)}
}

// Verdict returns the memoized verdict of id, or Unknown.
func (c *ValidationCache) Verdict(id string) Verdict {
	return c.entries[id].verdict
}

func (c *ValidationCache) set(id string, v Verdict, reason Reason, cause string) {
	c.entries[id] = cacheEntry{verdict: v, reason: reason, cause: cause}
}

// failure rebuilds the error of a memoized failure.
func (c *ValidationCache) failure(id string) (Verdict, error) {
	e := c.entries[id]
	return e.verdict, &ValidationError{TxID: id, Reason: e.reason, Cause: e.cause}
}

// Validate reports whether tx could be admitted to the graph: every ancestor
// exists, is not revoked and is correctly signed, and so is tx itself.
func (g *Graph) Validate(tx *Transaction, cache *ValidationCache) bool {
	v, _ := g.Check(tx, cache)
	return v == Valid
}

// Check is like Validate but returns the verdict along with a
// *ValidationError describing the first problem encountered. A verdict served
// from the cache carries the reason it was first recorded with.
func (g *Graph) Check(tx *Transaction, cache *ValidationCache) (Verdict, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.check(tx, cache)
}

type frame struct {
	tx   *Transaction
	next int
}

// check walks the ancestry of tx depth first with an explicit stack. The
// stack always holds a path from tx towards its ancestors, so when a node
// fails every frame on the stack fails with it: the top frame for the direct
// reason, the ones below it for an invalid ancestor. Callers hold the lock.
func (g *Graph) check(tx *Transaction, cache *ValidationCache) (Verdict, error) {
	if cache == nil {
		cache = NewValidationCache()
	}

	switch cache.Verdict(tx.ID) {
	case Valid:
		return Valid, nil
	case Invalid, Cyclic:
		return cache.failure(tx.ID)
	}

	if !tx.VerifySignature() {
		cache.set(tx.ID, Invalid, BadSignature, tx.ID)
		return cache.failure(tx.ID)
	}

	stack := []*frame{{tx: tx}}
	visiting := map[string]bool{tx.ID: true}

	fail := func(v Verdict, direct Reason, cause string) (Verdict, error) {
		top := len(stack) - 1
		for i, f := range stack {
			reason := AncestorInvalid
			switch {
			case v == Cyclic:
				reason = CyclicAncestry
			case i == top:
				reason = direct
			}
			cache.set(f.tx.ID, v, reason, cause)
		}
		return cache.failure(tx.ID)
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]

		if f.next == len(f.tx.Parents) {
			cache.set(f.tx.ID, Valid, 0, "")
			delete(visiting, f.tx.ID)
			stack = stack[:len(stack)-1]
			continue
		}

		pid := f.tx.Parents[f.next]
		f.next++

		parent, ok := g.transactions[pid]
		if !ok {
			return fail(Invalid, MissingParent, pid)
		}

		if parent.Status != StatusValid {
			return fail(Invalid, AncestorInvalid, pid)
		}

		if visiting[pid] {
			return fail(Cyclic, CyclicAncestry, pid)
		}

		switch e := cache.entries[pid]; e.verdict {
		case Valid:
			continue
		case Invalid, Cyclic:
			cause := e.cause
			if cause == "" {
				cause = pid
			}
			return fail(e.verdict, AncestorInvalid, cause)
		}

		if !parent.VerifySignature() {
			cache.set(pid, Invalid, BadSignature, pid)
			return fail(Invalid, AncestorInvalid, pid)
		}

		visiting[pid] = true
		stack = append(stack, &frame{tx: parent})
	}

	return Valid, nil
}
