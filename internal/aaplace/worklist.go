package aaplace

import "shade/internal/valtrack"

// worklist is a FIFO of definitions whose symbols changed. A definition is
// queued at most once at a time.
type worklist struct {
	items  []valtrack.DefID
	head   int
	queued map[valtrack.DefID]bool
}

func newWorklist() worklist {
	return worklist{queued: make(map[valtrack.DefID]bool)}
}

func (w *worklist) push(d valtrack.DefID) {
	if w.queued[d] {
		return
	}
	w.queued[d] = true
	w.items = append(w.items, d)
}

func (w *worklist) pop() (valtrack.DefID, bool) {
	if w.head >= len(w.items) {
		w.items = w.items[:0]
		w.head = 0
		return 0, false
	}
	d := w.items[w.head]
	w.head++
	delete(w.queued, d)
	return d, true
}
