package engine

// coroutine runs a body on its own goroutine but hands control back and
// forth with the resumer so that exactly one side runs at a time. The
// channel operations give the happens-before edges; no other
// synchronization is needed for state touched on both sides between
// hand-offs.
type coroutine struct {
	resumeCh chan struct{}
	yieldCh  chan struct{}
	done     bool
}

// newCoroutine prepares body without running it. The first Resume starts
// it.
func newCoroutine(body func(co *coroutine)) *coroutine {
	co := &coroutine{
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan struct{}),
	}
	go func() {
		<-co.resumeCh
		defer func() {
			co.done = true
			co.yieldCh <- struct{}{}
		}()
		body(co)
	}()
	return co
}

// Resume runs the body until it yields or returns. Resuming a finished
// coroutine does nothing.
func (co *coroutine) Resume() {
	if co.done {
		return
	}
	co.resumeCh <- struct{}{}
	<-co.yieldCh
}

// Yield hands control back to the resumer and blocks until resumed. Only
// the body may call it.
func (co *coroutine) Yield() {
	co.yieldCh <- struct{}{}
	<-co.resumeCh
}

// Done reports whether the body has returned.
func (co *coroutine) Done() bool {
	return co.done
}
