package risk

// Window is a fixed-capacity ring buffer of recent prices. The volatility
// calculator only ever needs the last N samples, so old values are dropped
// rather than accumulated.
type Window struct {
	buf  []float64
	head int
	n    int
}

func NewWindow(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]float64, capacity)}
}

func (w *Window) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

func (w *Window) Len() int   { return w.n }
func (w *Window) Full() bool { return w.n == len(w.buf) }

// Values returns the buffered prices, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.n)
	start := w.head - w.n
	for i := 0; i < w.n; i++ {
		out = append(out, w.buf[(start+i+len(w.buf))%len(w.buf)])
	}
	return out
}

func (w *Window) Reset() {
	w.head = 0
	w.n = 0
}
