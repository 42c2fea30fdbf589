package testkit

import (
	"errors"
	"io"
)

var ErrInjectedFault = errors.New("injected fault")

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

// FailAfter returns a reader yielding the first n bytes of r and then err,
// or ErrInjectedFault when err is nil.
func FailAfter(r io.Reader, n int64, err error) io.Reader {
	if err == nil {
		err = ErrInjectedFault
	}
	return io.MultiReader(io.LimitReader(r, n), failingReader{err})
}

// Gate is a reader whose first Read parks until Open is called. Stalled is
// closed once a reader is parked.
type Gate struct {
	r       io.Reader
	stalled chan struct{}
	open    chan struct{}
	entered bool
}

func NewGate(r io.Reader) *Gate {
	return &Gate{
		r:       r,
		stalled: make(chan struct{}),
		open:    make(chan struct{}),
	}
}

func (g *Gate) Stalled() <-chan struct{} { return g.stalled }

// Open releases the parked reader. It must be called once.
func (g *Gate) Open() { close(g.open) }

func (g *Gate) Read(p []byte) (int, error) {
	if !g.entered {
		g.entered = true
		close(g.stalled)
		<-g.open
	}
	return g.r.Read(p)
}
