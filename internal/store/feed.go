package store

import "sync"

// Feed signals that a collection changed. Signals coalesce: a reader that falls behind
// sees one pending signal, not one per write. When the feed ends, Done is closed and
// Err reports the cause (nil for a normal stop).
type Feed struct {
	c    chan struct{}
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func NewFeed() *Feed {
	return &Feed{
		c:    make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (f *Feed) C() <-chan struct{} {
	return f.c
}

func (f *Feed) Done() <-chan struct{} {
	return f.done
}

func (f *Feed) Notify() {
	select {
	case f.c <- struct{}{}:
	default:
	}
}

// Stop ends the feed with err; only the first call has an effect.
func (f *Feed) Stop(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
