package meeting

import "sync"

// lockSet hands out one mutex per meeting. Entries are dropped when the last
// holder or waiter releases.
type lockSet struct {
	mu    sync.Mutex
	locks map[int64]*meetingLock
}

type meetingLock struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[int64]*meetingLock)}
}

// Lock blocks until the meeting is free and returns its unlock func.
func (s *lockSet) Lock(meetingID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[meetingID]
	if !ok {
		l = &meetingLock{}
		s.locks[meetingID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, meetingID)
		}
		s.mu.Unlock()
	}
}
