package layer

import (
	"math/bits"
	"sync"
)

// Pool hands out query buffers bucketed by power-of-two capacity, so handlers
// answering repeated requests do not allocate per call and the number of
// buckets stays bounded whatever sizes clients ask for.
type Pool struct {
	mu      sync.Mutex
	classes map[int]*sync.Pool
}

func NewPool() *Pool {
	return &Pool{classes: map[int]*sync.Pool{}}
}

func sizeClass(n int) int {
	return 1 << bits.Len(uint(n-1))
}

func (p *Pool) pool(class int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.classes[class]
	if !ok {
		sp = &sync.Pool{New: func() any {
			b := make([]BiomeID, class)
			return &b
		}}
		p.classes[class] = sp
	}
	return sp
}

// Get returns a buffer of exactly n cells. Contents are unspecified.
func (p *Pool) Get(n int) []BiomeID {
	if n <= 0 {
		return nil
	}
	return (*p.pool(sizeClass(n)).Get().(*[]BiomeID))[:n]
}

// Put returns a buffer obtained from Get. The caller must not use buf after.
// Buffers not shaped by Get are dropped.
func (p *Pool) Put(buf []BiomeID) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	buf = buf[:c]
	p.pool(c).Put(&buf)
}
