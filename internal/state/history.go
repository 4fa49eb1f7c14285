package state

// historyWindow is the "last 10" ring used by loop detection and the read
// cache (spec §4.4).
const historyWindow = 10

// RecordCall appends a call to the loop-detection history ring, evicting
// the oldest entry once historyWindow is exceeded.
func (s *Store) RecordCall(name, canonicalArgs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopHistory = append(s.loopHistory, CallRecord{Name: name, Args: canonicalArgs})
	if len(s.loopHistory) > historyWindow {
		s.loopHistory = s.loopHistory[len(s.loopHistory)-historyWindow:]
	}
}

// CountInHistory returns how many times (name, canonicalArgs) appears in
// the history window.
func (s *Store) CountInHistory(name, canonicalArgs string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.loopHistory {
		if r.Name == name && r.Args == canonicalArgs {
			n++
		}
	}
	return n
}

// ResetHistory clears the loop-detection ring, e.g. on session change
// (spec §5: "session-id change is itself a form of soft cancellation — it
// resets loop history and approved-roots").
func (s *Store) ResetHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopHistory = nil
}

// ReadCacheEntry is a cached read_file/read_file_range result.
type ReadCacheEntry struct {
	Name   string
	Args   string
	Result string
}

// CacheLookup returns the cached result for (name, canonicalArgs), if a
// recent identical successful read_file/read_file_range call exists
// (spec §4.4 step 2).
func (s *Store) CacheLookup(name, canonicalArgs string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.readCache {
		if e.Name == name && e.Args == canonicalArgs {
			return e.Result, true
		}
	}
	return "", false
}

// CacheStore records a successful read result, evicting the oldest entry
// once historyWindow is exceeded.
func (s *Store) CacheStore(name, canonicalArgs, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readCache = append(s.readCache, ReadCacheEntry{Name: name, Args: canonicalArgs, Result: result})
	if len(s.readCache) > historyWindow {
		s.readCache = s.readCache[len(s.readCache)-historyWindow:]
	}
}
