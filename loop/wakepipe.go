// File: loop/wakepipe.go
// Author: momentics <momentics@gmail.com>
//
// wakePipe is the self-pipe used to interrupt a blocked Poller.Wait
// when Stop() or a cross-thread Async/Post/Sync needs the loop's
// attention before its current timeout elapses (spec.md §4.4 Shutdown).

package loop

import (
	"os"
	"sync/atomic"
)

type wakePipe struct {
	r, w    *os.File
	pending atomic.Bool
}

func newWakePipe() (*wakePipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &wakePipe{r: r, w: w}, nil
}

func (p *wakePipe) readFd() uintptr {
	return p.r.Fd()
}

// signal wakes a blocked Wait call at most once per drain cycle; the
// pending flag collapses bursts of posts into a single byte write.
func (p *wakePipe) signal() {
	if p.pending.CompareAndSwap(false, true) {
		_, _ = p.w.Write([]byte{0})
	}
}

// drain reads every pending wake byte so the fd goes non-ready again.
func (p *wakePipe) drain() {
	p.pending.Store(false)
	buf := make([]byte, 64)
	for {
		n, err := p.r.Read(buf)
		if n < len(buf) || err != nil {
			return
		}
	}
}

func (p *wakePipe) close() error {
	errR := p.r.Close()
	errW := p.w.Close()
	if errR != nil {
		return errR
	}
	return errW
}
