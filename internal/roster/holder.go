package roster

import "sync/atomic"

// Holder publishes the roster once its asynchronous load resolves. Until
// then it serves an empty index, so queries are no-ops.
type Holder struct {
	idx atomic.Pointer[Index]
}

func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	if idx != nil {
		h.Set(idx)
	}
	return h
}

func (h *Holder) Set(idx *Index) { h.idx.Store(idx) }

func (h *Holder) Current() *Index {
	if idx := h.idx.Load(); idx != nil {
		return idx
	}
	return Empty()
}

func (h *Holder) Loaded() bool { return h.idx.Load() != nil }

func (h *Holder) Operators(query string) []Operator { return h.Current().Operators(query) }

func (h *Holder) Lookup(name string) (Operator, bool) { return h.Current().Lookup(name) }
