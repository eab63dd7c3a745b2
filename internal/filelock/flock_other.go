//go:build !unix

package filelock

import (
	"errors"
	"os"
	"sync"
)

var errWouldBlock = errors.New("lock would block")

// Platforms without flock(2) get in-process locking keyed by lock path.
var (
	mu     sync.Mutex
	cond   = sync.NewCond(&mu)
	holder = map[string]bool{}
)

func flock(f *os.File, _ bool, block bool) error {
	mu.Lock()
	defer mu.Unlock()
	for holder[f.Name()] {
		if !block {
			return errWouldBlock
		}
		cond.Wait()
	}
	holder[f.Name()] = true
	return nil
}

func funlock(f *os.File) error {
	mu.Lock()
	defer mu.Unlock()
	delete(holder, f.Name())
	cond.Broadcast()
	return nil
}
