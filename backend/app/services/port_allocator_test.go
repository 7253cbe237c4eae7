package services

import (
	"errors"
	"sync"
	"testing"
)

func TestPortAllocatorRange(t *testing.T) {
	a, err := NewPortAllocator(DefaultPortStart, DefaultPortEnd)
	if err != nil {
		t.Fatalf("NewPortAllocator: %v", err)
	}
	for i := 0; i < 200; i++ {
		p, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if p < DefaultPortStart || p >= DefaultPortEnd {
			t.Fatalf("port %d outside range", p)
		}
	}
	if a.Len() != 200 {
		t.Errorf("expected 200 held ports, got %d", a.Len())
	}
}

func TestPortAllocatorExhaustion(t *testing.T) {
	a, err := NewPortAllocator(40000, 40004)
	if err != nil {
		t.Fatalf("NewPortAllocator: %v", err)
	}
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		p, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		if seen[p] {
			t.Fatalf("port %d handed out twice", p)
		}
		seen[p] = true
	}
	if _, err := a.Allocate(); !errors.Is(err, ErrPortsExhausted) {
		t.Fatalf("expected ErrPortsExhausted, got %v", err)
	}

	a.Release(40002)
	p, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate after release: %v", err)
	}
	if p != 40002 {
		t.Errorf("expected released port 40002 to be reused, got %d", p)
	}
}

func TestPortAllocatorReleaseIdempotent(t *testing.T) {
	a, _ := NewPortAllocator(40000, 40010)
	p, _ := a.Allocate()
	a.Release(p)
	a.Release(p)
	a.Release(12345)
	if a.InUse(p) {
		t.Errorf("port %d still marked in use", p)
	}
	if a.Len() != 0 {
		t.Errorf("expected no held ports, got %d", a.Len())
	}
}

func TestPortAllocatorConcurrent(t *testing.T) {
	a, _ := NewPortAllocator(40000, 40100)

	var (
		mu   sync.Mutex
		held = map[int]bool{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p, err := a.Allocate()
				if err != nil {
					continue
				}
				mu.Lock()
				if held[p] {
					mu.Unlock()
					t.Errorf("port %d held by two owners", p)
					return
				}
				held[p] = true
				mu.Unlock()

				mu.Lock()
				delete(held, p)
				mu.Unlock()
				a.Release(p)
			}
		}()
	}
	wg.Wait()
	if a.Len() != 0 {
		t.Errorf("expected all ports released, got %d held", a.Len())
	}
}

func TestNewPortAllocatorInvalid(t *testing.T) {
	for _, r := range [][2]int{{0, 10}, {100, 100}, {200, 100}, {60000, 70000}} {
		if _, err := NewPortAllocator(r[0], r[1]); err == nil {
			t.Errorf("expected error for range %v", r)
		}
	}
}
