package guard

import (
	"sync"
	"testing"
	"time"
)

func TestSenderLocksSerializeOneSender(t *testing.T) {
	var locks senderLocks
	unlock := locks.lock(alice)

	acquired := make(chan struct{})
	go func() {
		// Surrounding whitespace must not give the sender a second lock.
		u := locks.lock("  " + alice + " ")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock for the same sender acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func TestSenderLocksConcurrentSenders(t *testing.T) {
	var locks senderLocks
	var wg sync.WaitGroup
	for _, sender := range []string{alice, bob, carol} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				locks.lock(sender)()
			}
		}(sender)
	}
	wg.Wait()
}
