// Package store implements the shared keyspace: a single mapping from keys
// to polymorphic Entries, guarded by one mutex paired with one condition
// variable. It also implements the blocking-pop wait coordinator, since the
// condition variable it waits on is private state of the Store.
package store

import (
	"path"
	"sync"
	"time"

	"github.com/mshaverdo/kvd/log"
)

// ErrWrongType is returned whenever an operation targets a key whose Entry
// holds a value of an incompatible kind. The text is fixed by the wire
// protocol and carried verbatim into the reply, without the usual "ERR "
// prefix other command errors get.
const ErrWrongType = wrongTypeError("WRONGTYPE Operation against a key holding the wrong kind of value")

type wrongTypeError string

func (e wrongTypeError) Error() string { return string(e) }

// Store is the process-wide, in-memory keyspace. The zero value is not
// usable; construct with New.
type Store struct {
	mu   sync.Mutex
	cond *sync.Cond
	data map[string]*Entry
}

// New constructs an empty Store.
func New() *Store {
	s := &Store{data: make(map[string]*Entry)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// lookup returns the live Entry for key, applying lazy expiration (I2).
// Caller must hold s.mu.
func (s *Store) lookup(key string) (*Entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// Set unconditionally writes key to a String Entry, overwriting any prior
// Entry regardless of kind, then wakes every BLPop waiter (N1): a fresh
// value can't itself satisfy a list wait, but the wake is cheap. Waiters
// re-check: one waiting on this key now gets ErrWrongType, the rest go
// back to sleep.
func (s *Store) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = NewStringEntry(value, expiresAt)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Get returns the String value at key. ok is false if the key is absent or
// its TTL has lapsed (in which case the Entry is removed before returning).
func (s *Store) Get(key string) (value string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		return "", false, nil
	}
	if e.Kind() != String {
		return "", false, ErrWrongType
	}
	return e.Str(), true, nil
}

// RPush appends values to the tail of the list at key, in argument order,
// creating the list if absent (I4).
func (s *Store) RPush(key string, values []string) (newLen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		e = NewListEntry(nil)
		s.data[key] = e
	} else if e.Kind() != List {
		return 0, ErrWrongType
	}

	e.list = append(e.list, values...)
	s.cond.Broadcast()
	return len(e.list), nil
}

// LPush prepends values to the list at key: given arguments v1..vn (client
// order), the result is vn, ..., v1, <existing list...> (I4).
func (s *Store) LPush(key string, values []string) (newLen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		e = NewListEntry(nil)
		s.data[key] = e
	} else if e.Kind() != List {
		return 0, ErrWrongType
	}

	// vn..v1 (reverse of argument order) followed by the untouched tail.
	reversedArgs := make([]string, len(values))
	for i, v := range values {
		reversedArgs[len(values)-1-i] = v
	}
	e.list = append(reversedArgs, e.list...)

	s.cond.Broadcast()
	return len(e.list), nil
}

// LRange returns list[start..=stop] after normalizing negative and
// out-of-range indices against the current length.
func (s *Store) LRange(key string, start, stop int) (result []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		return []string{}, nil
	}
	if e.Kind() != List {
		return nil, ErrWrongType
	}

	n := len(e.list)
	start, stop, ok := normalizeRange(start, stop, n)
	if !ok {
		return []string{}, nil
	}

	out := make([]string, stop-start+1)
	copy(out, e.list[start:stop+1])
	return out, nil
}

func normalizeRange(start, stop, n int) (nStart, nStop int, ok bool) {
	if start < 0 {
		start = n + start
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	if start >= n || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}

// LLen returns the length of the list at key, or 0 if absent. It never
// materializes an Entry on a miss (N2).
func (s *Store) LLen(key string) (length int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		return 0, nil
	}
	if e.Kind() != List {
		return 0, ErrWrongType
	}
	return len(e.list), nil
}

// LPop removes up to count elements from the head of the list at key.
// hasCount distinguishes "no count argument" (single-element semantics,
// result has at most one element) from "count 0" (empty result, list
// untouched). The list's Entry is deleted once it becomes empty (I3).
func (s *Store) LPop(key string, count int, hasCount bool) (result []string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		return nil, false, nil
	}
	if e.Kind() != List {
		return nil, false, ErrWrongType
	}
	if len(e.list) == 0 {
		return nil, false, nil
	}

	n := 1
	if hasCount {
		n = count
	}
	if n > len(e.list) {
		n = len(e.list)
	}
	if n <= 0 {
		return []string{}, true, nil
	}

	popped := append([]string{}, e.list[:n]...)
	e.list = e.list[n:]
	if len(e.list) == 0 {
		delete(s.data, key)
	}
	return popped, true, nil
}

// BLPop implements the blocking left-pop described in spec.md §4.2: it parks
// until key holds a non-empty list, key holds an incompatible value, or
// timeout elapses. timeout == 0 means wait forever. Spurious wakeups are
// tolerated by looping and re-checking the predicate under the re-acquired
// mutex.
func (s *Store) BLPop(key string, timeout time.Duration) (value string, ok bool, err error) {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if e, present := s.lookup(key); present {
			if e.Kind() == String {
				return "", false, ErrWrongType
			}
			if len(e.list) > 0 {
				v := e.list[0]
				e.list = e.list[1:]
				if len(e.list) == 0 {
					delete(s.data, key)
				}
				return v, true, nil
			}
		}

		if !hasDeadline {
			s.cond.Wait()
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		s.waitWithTimeout(remaining)
	}
}

// waitWithTimeout releases s.mu, sleeps on s.cond up to d (or until
// broadcast), and re-acquires s.mu before returning. sync.Cond has no native
// timed wait, so a timer goroutine broadcasts once d elapses to wake this
// waiter for deadline re-evaluation; the goroutine is harmless if it fires
// after the waiter already woke for another reason.
func (s *Store) waitWithTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()
	s.cond.Wait()
}

// Type reports the kind of the value at key: "string", "list", or "none".
func (s *Store) Type(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		return "none"
	}
	if e.Kind() == String {
		return "string"
	}
	return "list"
}

// Del removes the named keys regardless of kind and returns how many were
// actually present.
func (s *Store) Del(keys []string) (count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, present := s.lookup(key); present {
			count++
			delete(s.data, key)
		}
	}
	return count
}

// Exists returns how many of the named keys are currently present, applying
// lazy expiration along the way but otherwise never mutating the Store.
func (s *Store) Exists(keys []string) (count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, present := s.lookup(key); present {
			count++
		}
	}
	return count
}

// Keys returns all live keys matching the glob pattern (path.Match syntax).
// It never materializes Entries for missing keys (N2's lesson generalized).
func (s *Store) Keys(pattern string) (matched []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
			continue
		}
		ok, matchErr := path.Match(pattern, key)
		if matchErr != nil {
			return nil, matchErr
		}
		if ok {
			matched = append(matched, key)
		}
	}
	if matched == nil {
		matched = []string{}
	}
	return matched, nil
}

// TTL reports the remaining lifetime of key in whole seconds, rounded up:
// -2 if key is absent, -1 if present without expiration, else the seconds
// remaining until expiry.
func (s *Store) TTL(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, present := s.lookup(key)
	if !present {
		return -2
	}
	if !e.hasExpiry() {
		return -1
	}

	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		// Shouldn't happen: lookup already lazily expires. Guard anyway.
		log.Debugf("store: TTL observed a non-expired lookup with non-positive remaining for %q", key)
		return -2
	}
	seconds := remaining / time.Second
	if remaining%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
