//go:build native

package session

// TruncateKV rewinds n_past to p0, discarding any positions beyond it. The
// underlying KV tensor storage for those positions is left in place — it is
// simply overwritten the next time evaluate() writes to those slots — so
// this is O(1) and does not touch the arena. This is the prompt-caching
// trick from the teacher's Context.TruncateKV, adapted to this package's
// single-owner-at-a-time session (no new session is created; only the
// position up to which the existing KV cache is reused changes).
func (s *Session) TruncateKV(p0 int32) {
	if p0 < 0 {
		p0 = 0
	}
	if p0 > s.NPast {
		p0 = s.NPast
	}
	s.NPast = p0
}

// CommonPrefixLen returns the length of the shared prefix between the
// session's previously fed token sequence and a new one, so a caller can
// call TruncateKV and re-feed only the suffix. Grounded on the teacher's
// Adapter.Stream prompt-caching heuristic (commonPrefixLen against the
// previous request's tokens).
func CommonPrefixLen(prev, next []int32) int32 {
	n := len(prev)
	if len(next) < n {
		n = len(next)
	}
	var i int
	for i = 0; i < n; i++ {
		if prev[i] != next[i] {
			break
		}
	}
	return int32(i)
}
