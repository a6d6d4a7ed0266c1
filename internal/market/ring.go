package market

// ring is a fixed-capacity FIFO of ticks. Appending past capacity overwrites the oldest.
type ring struct {
	buf   []PriceTick
	head  int // index of the oldest tick
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]PriceTick, capacity)}
}

func (r *ring) push(t PriceTick) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = t
		r.count++
		return
	}
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) len() int { return r.count }

func (r *ring) last() (PriceTick, bool) {
	if r.count == 0 {
		return PriceTick{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// tail copies up to n of the newest ticks in chronological order; n<=0 means all.
func (r *ring) tail(n int) []PriceTick {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]PriceTick, n)
	start := r.head + r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
