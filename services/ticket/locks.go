package ticket

import "sync"

// memberLocks hands out one mutex per member ID. Entries are dropped once
// nobody holds or waits on them.
type memberLocks struct {
	mu    sync.Mutex
	locks map[string]*memberLock
}

type memberLock struct {
	sync.Mutex
	refs int
}

func (m *memberLocks) lock(memberID string) (unlock func()) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*memberLock)
	}
	l, ok := m.locks[memberID]
	if !ok {
		l = &memberLock{}
		m.locks[memberID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, memberID)
		}
		m.mu.Unlock()
	}
}
