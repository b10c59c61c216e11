package memory

import "sync"

// Reclaimer is the only requirement for reclamation.
// It is intentionally type-erased.
type Reclaimer interface {
	PutAny(any)
}

// ReclaimFunc adapts a plain function to Reclaimer.
type ReclaimFunc func(any)

func (f ReclaimFunc) PutAny(v any) { f(v) }

// Pool is a typed object pool.
// It is type-safe for normal use, but can also participate
// in epoch-based reclamation via PutAny.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

// WithReset installs a hook run on every object handed back to the pool.
// It must be called before the pool is shared.
func (p *Pool[T]) WithReset(fn func(*T)) *Pool[T] {
	p.reset = fn
	return p
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// PutAny allows Pool[T] to satisfy Reclaimer.
// This is an explicit, safe adapter between typed and erased worlds.
func (p *Pool[T]) PutAny(v any) {
	obj, ok := v.(*T)
	if !ok {
		panic("memory.Pool: PutAny received wrong type")
	}
	p.Put(obj)
}
