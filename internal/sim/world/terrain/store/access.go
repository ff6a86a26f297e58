package store

import (
	"sort"
	"sync"
	"sync/atomic"

	"biomemap.ai/internal/sim/world/logic/mathx"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

// ChunkStore caches chunks fetched from a layer.Source. When more than
// maxChunks are loaded the oldest is evicted.
type ChunkStore struct {
	src       layer.Source
	maxChunks int

	mu     sync.RWMutex
	chunks map[ChunkKey]*Chunk
	order  []ChunkKey

	hits   atomic.Uint64
	misses atomic.Uint64
}

type Stats struct {
	Loaded int    `json:"loaded"`
	Max    int    `json:"max"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

func NewChunkStore(src layer.Source, maxChunks int) *ChunkStore {
	if maxChunks <= 0 {
		maxChunks = 1
	}
	return &ChunkStore{
		src:       src,
		maxChunks: maxChunks,
		chunks:    map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	s.mu.RLock()
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) BiomeAt(x, z int) layer.BiomeID {
	cx := mathx.FloorDiv(x, ChunkSize)
	cz := mathx.FloorDiv(z, ChunkSize)
	return s.GetOrGenChunk(cx, cz).Get(mathx.Mod(x, ChunkSize), mathx.Mod(z, ChunkSize))
}

// GetOrGenChunk returns the cached chunk or queries the source for it. The
// query runs without the lock held; a concurrent loser discards its copy.
// cx and cz must satisfy ValidChunkCoord.
func (s *ChunkStore) GetOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	s.mu.RLock()
	ch, ok := s.chunks[k]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
		return ch
	}
	s.misses.Add(1)

	biomes := s.src.Query(make([]layer.BiomeID, ChunkSize*ChunkSize), cx*ChunkSize, cz*ChunkSize, ChunkSize, ChunkSize)
	ch = newChunk(cx, cz, biomes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.chunks[k]; ok {
		return existing
	}
	s.chunks[k] = ch
	s.order = append(s.order, k)
	for len(s.order) > s.maxChunks {
		delete(s.chunks, s.order[0])
		s.order = s.order[1:]
	}
	return ch
}

func (s *ChunkStore) Stats() Stats {
	s.mu.RLock()
	n := len(s.chunks)
	s.mu.RUnlock()
	return Stats{Loaded: n, Max: s.maxChunks, Hits: s.hits.Load(), Misses: s.misses.Load()}
}
