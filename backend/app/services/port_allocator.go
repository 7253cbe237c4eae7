package services

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Default data port range, upper bound exclusive.
const (
	DefaultPortStart = 50000
	DefaultPortEnd   = 51000
)

var ErrPortsExhausted = errors.New("no free data port")

// PortAllocator hands out data ports from [start, end). A port is never
// handed out twice until it has been released.
type PortAllocator struct {
	start int
	end   int

	mu    sync.Mutex
	inUse map[int]struct{}
}

func NewPortAllocator(start, end int) (*PortAllocator, error) {
	if start <= 0 || end > 65536 || start >= end {
		return nil, fmt.Errorf("invalid port range [%d, %d)", start, end)
	}
	return &PortAllocator{start: start, end: end, inUse: make(map[int]struct{})}, nil
}

// Allocate draws uniformly until it hits a free port.
func (a *PortAllocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	size := a.end - a.start
	if len(a.inUse) >= size {
		return 0, ErrPortsExhausted
	}
	for {
		p := a.start + rand.Intn(size)
		if _, taken := a.inUse[p]; taken {
			continue
		}
		a.inUse[p] = struct{}{}
		return p, nil
	}
}

// Release frees p. Releasing a free or foreign port is a no-op.
func (a *PortAllocator) Release(p int) {
	a.mu.Lock()
	delete(a.inUse, p)
	a.mu.Unlock()
}

func (a *PortAllocator) InUse(p int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inUse[p]
	return ok
}

// Len is the number of ports currently held.
func (a *PortAllocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

func (a *PortAllocator) Range() (int, int) { return a.start, a.end }
