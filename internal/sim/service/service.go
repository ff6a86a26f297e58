// Package service answers biome queries against a built image layer. It is
// shared by the HTTP and WebSocket transports.
package service

import (
	"fmt"
	"sync/atomic"

	"biomemap.ai/internal/protocol"
	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/encoding"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
	"biomemap.ai/internal/sim/world/terrain/layer"
	"biomemap.ai/internal/sim/world/terrain/store"
)

type Config struct {
	Layer        *imagemap.Layer
	Orientation  imagemap.Orientation
	Catalogs     *catalogs.Catalogs
	TuningDigest string
	MaxCells     int
	MaxChunks    int
}

type Service struct {
	layer    *imagemap.Layer
	chunks   *store.ChunkStore
	cats     *catalogs.Catalogs
	params   protocol.LayerParams
	digests  protocol.CatalogDigests
	maxCells int
	pool     *layer.Pool

	queries  atomic.Uint64
	cells    atomic.Uint64
	rejected atomic.Uint64
}

type Stats struct {
	Queries  uint64      `json:"queries"`
	Cells    uint64      `json:"cells"`
	Rejected uint64      `json:"rejected"`
	Chunks   store.Stats `json:"chunks"`
}

func New(cfg Config) *Service {
	info := cfg.Layer.Info()
	b := &cfg.Catalogs.Biomes
	return &Service{
		layer:  cfg.Layer,
		chunks: store.NewChunkStore(cfg.Layer, cfg.MaxChunks),
		cats:   cfg.Catalogs,
		params: protocol.LayerParams{
			Width:       info.Width,
			Height:      info.Height,
			Mode:        info.Mode,
			Orientation: cfg.Orientation.String(),
			XOffset:     info.XOffset,
			ZOffset:     info.ZOffset,
			Fill:        uint16(info.Fill),
			HasFallback: info.HasChild,
		},
		digests: protocol.CatalogDigests{
			Biomes:        protocol.DigestRef{Digest: b.DefsDigest, Count: len(b.Index)},
			PaletteDigest: b.PaletteDigest,
			TuningDigest:  cfg.TuningDigest,
		},
		maxCells: cfg.MaxCells,
		pool:     layer.NewPool(),
	}
}

func (s *Service) MaxCells() int { return s.maxCells }

func (s *Service) Biomes() *catalogs.BiomeCatalog { return &s.cats.Biomes }

func (s *Service) Welcome(sessionID string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Layer:           s.params,
		Catalogs:        s.digests,
		Limits:          protocol.Limits{MaxCells: s.maxCells},
	}
}

// Query answers one rectangle. On rejection the returned ErrorMsg is non-nil.
func (s *Service) Query(q protocol.QueryMsg) (protocol.BiomesMsg, *protocol.ErrorMsg) {
	q.Normalize()
	if code, err := q.Validate(s.maxCells); err != nil {
		s.rejected.Add(1)
		e := protocol.NewError(q.ReqID, code, err.Error())
		return protocol.BiomesMsg{}, &e
	}
	n := q.SizeX * q.SizeZ
	buf := s.pool.Get(n)
	ids := s.layer.Query(buf, q.X, q.Z, q.SizeX, q.SizeZ)

	out := protocol.BiomesMsg{
		Type:            protocol.TypeBiomes,
		ProtocolVersion: protocol.Version,
		ReqID:           q.ReqID,
		X:               q.X,
		Z:               q.Z,
		SizeX:           q.SizeX,
		SizeZ:           q.SizeZ,
		Encoding:        q.Encoding,
	}
	switch q.Encoding {
	case protocol.EncodingRaw:
		out.Biomes = make([]uint16, len(ids))
		for i, id := range ids {
			out.Biomes[i] = uint16(id)
		}
	default:
		out.Data = encoding.EncodeRLE(ids)
	}
	s.pool.Put(buf)

	s.queries.Add(1)
	s.cells.Add(uint64(n))
	return out, nil
}

// LoadedChunks lists cached chunk keys in sorted order.
func (s *Service) LoadedChunks() []store.ChunkKey { return s.chunks.LoadedChunkKeys() }

func (s *Service) Chunk(cx, cz int) *store.Chunk {
	return s.chunks.GetOrGenChunk(cx, cz)
}

// BiomeAt returns the id and catalog name at one world coordinate.
func (s *Service) BiomeAt(x, z int) (layer.BiomeID, string) {
	id := s.layer.At(x, z)
	return id, s.cats.Biomes.Name(id)
}

func (s *Service) Stats() Stats {
	return Stats{
		Queries:  s.queries.Load(),
		Cells:    s.cells.Load(),
		Rejected: s.rejected.Load(),
		Chunks:   s.chunks.Stats(),
	}
}

func (s *Service) String() string {
	p := s.params
	return fmt.Sprintf("%dx%d %s/%s offset=(%d,%d) fill=%d", p.Width, p.Height, p.Mode, p.Orientation, p.XOffset, p.ZOffset, p.Fill)
}
