// Package mempool keeps size-classed pools of scratch slices for the raster
// hot paths (separable blurs, tensor preprocessing).
package mempool

import "sync"

const classStep = 1024

// slicePool hands out slices from per-size-class sync.Pools.
type slicePool[T any] struct {
	pools sync.Map // size class -> *sync.Pool
}

func (sp *slicePool[T]) pool(cls int) *sync.Pool {
	if p, ok := sp.pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		s := make([]T, cls)
		return &s
	}})
	return p.(*sync.Pool)
}

func (sp *slicePool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	sPtr := sp.pool(cls).Get().(*[]T)
	s := *sPtr
	if cap(s) < cls {
		s = make([]T, cls)
	}
	return s[:n]
}

func (sp *slicePool[T]) put(s []T) {
	if cap(s) < classStep {
		return
	}
	// only full classes go back, so a later get never sees a short slice
	cls := (cap(s) / classStep) * classStep
	s = s[:cap(s)]
	sp.pool(cls).Put(&s)
}

// sizeClass rounds n up to the next multiple of 1024 (minimum 1024).
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return ((n + classStep - 1) / classStep) * classStep
}

var (
	float32s slicePool[float32]
	uint8s   slicePool[uint8]
)

// GetFloat32 returns a []float32 of length n. Contents are not zeroed.
// Return it with PutFloat32 when done.
func GetFloat32(n int) []float32 { return float32s.get(n) }

// PutFloat32 returns a buffer obtained from GetFloat32. Nil is ignored.
func PutFloat32(buf []float32) { float32s.put(buf) }

// GetUint8 returns a zeroed []uint8 of length n.
func GetUint8(n int) []uint8 {
	buf := uint8s.get(n)
	clear(buf)
	return buf
}

// PutUint8 returns a buffer obtained from GetUint8. Nil is ignored.
func PutUint8(buf []uint8) { uint8s.put(buf) }
