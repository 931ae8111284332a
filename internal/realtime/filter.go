package realtime

import (
	"sync"

	"fishmarket/internal/domain"
)

type filtered struct {
	inner Subscription
	out   chan *domain.Message
	done  chan struct{}
	once  sync.Once
}

// Filter narrows sub to the messages keep accepts. Closing the result closes sub.
func Filter(sub Subscription, keep func(*domain.Message) bool) Subscription {
	f := &filtered{
		inner: sub,
		out:   make(chan *domain.Message),
		done:  make(chan struct{}),
	}
	go f.forward(keep)
	return f
}

func (f *filtered) forward(keep func(*domain.Message) bool) {
	defer close(f.out)
	in := f.inner.Messages()
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			if !keep(msg) {
				continue
			}
			select {
			case f.out <- msg:
			case <-f.done:
				return
			}
		case <-f.done:
			return
		}
	}
}

func (f *filtered) Messages() <-chan *domain.Message {
	return f.out
}

func (f *filtered) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.inner.Close()
	})
	return err
}
