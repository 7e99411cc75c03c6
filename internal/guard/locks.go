package guard

import (
	"hash/fnv"
	"strings"
	"sync"
)

// senderLocks stripes a fixed set of mutexes over sender addresses.
// Two senders may share a stripe; one sender always maps to the same one.
type senderLocks [64]sync.Mutex

func (l *senderLocks) lock(sender string) func() {
	h := fnv.New32a()
	h.Write([]byte(strings.TrimSpace(sender)))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}
