package service

import (
	"hash/fnv"
	"strconv"
	"sync"
)

const defaultLockStripes = 256

// stripedLock serializes work per product ID using a fixed set of mutexes
// selected by hashing the ID. Different IDs usually map to different stripes
// and proceed in parallel.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		n = defaultLockStripes
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for id and returns its unlock function.
func (l *stripedLock) Lock(id int64) func() {
	m := &l.stripes[l.index(id)]
	m.Lock()
	return m.Unlock
}

func (l *stripedLock) index(id int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(id, 10)))
	return int(h.Sum32() % uint32(len(l.stripes)))
}
