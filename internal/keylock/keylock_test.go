package keylock

import (
	"sync"
	"testing"
)

func TestDoSerializesSameKey(t *testing.T) {
	kl := New()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = kl.Do("account:1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("expected %d increments, got %d", workers, counter)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	kl := New()
	kl.Lock("a")
	defer kl.Unlock("a")

	done := make(chan struct{})
	go func() {
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()

	<-done
}

func TestEntriesAreReleased(t *testing.T) {
	kl := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("shared")
			kl.Unlock("shared")
		}()
	}
	wg.Wait()

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if len(kl.entries) != 0 {
		t.Fatalf("expected empty entry map, got %d entries", len(kl.entries))
	}
}

func TestUnlockWithoutLockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New().Unlock("missing")
}
