package cache

import "sync"

// Epochs tracks a generation counter per area. Bumping an area's epoch makes
// every entry keyed with the old value unreachable.
type Epochs struct {
	mu     sync.RWMutex
	global uint64
	area   map[int64]uint64
}

func NewEpochs() *Epochs {
	return &Epochs{area: make(map[int64]uint64)}
}

// Epoch returns the current generation of areaID. It changes when either the
// area or the whole set is bumped.
func (e *Epochs) Epoch(areaID int64) uint64 {
	e.mu.RLock()
	v := e.global + e.area[areaID]
	e.mu.RUnlock()
	return v
}

func (e *Epochs) Bump(areaID int64) {
	e.mu.Lock()
	e.area[areaID]++
	e.mu.Unlock()
}

func (e *Epochs) BumpAll() {
	e.mu.Lock()
	e.global++
	e.mu.Unlock()
}
