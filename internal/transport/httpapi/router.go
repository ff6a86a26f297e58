// Package httpapi serves biome queries over plain HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"biomemap.ai/internal/protocol"
	"biomemap.ai/internal/sim/encoding"
	"biomemap.ai/internal/sim/service"
	"biomemap.ai/internal/sim/world/terrain/store"
)

type Config struct {
	Service *service.Service
	Logger  *log.Logger
	// WS is mounted at /v1/ws when set.
	WS http.Handler
	// Metrics are appended to /metrics after the built-in series.
	Metrics []func(w io.Writer)
}

type api struct {
	svc     *service.Service
	log     *log.Logger
	metrics []func(w io.Writer)
}

func NewRouter(cfg Config) http.Handler {
	a := &api{svc: cfg.Service, log: cfg.Logger, metrics: cfg.Metrics}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: cfg.Logger, NoColor: true}))
	}

	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Get("/metrics", a.getMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/layer", a.getLayer)
		r.Get("/biomes", a.getBiomes)
		r.Get("/biome", a.getBiome)
		r.Get("/chunks/{cx}/{cz}", a.getChunk)
		if cfg.WS != nil {
			r.Handle("/ws", cfg.WS)
		}
	})
	return r
}

func (a *api) respondJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil && a.log != nil {
		a.log.Printf("encode response: %v", err)
	}
}

func (a *api) respondError(rw http.ResponseWriter, status int, code, msg string) {
	a.respondJSON(rw, status, protocol.NewError("", code, msg))
}

type biomeRef struct {
	ID      uint16 `json:"id"`
	Name    string `json:"name"`
	Preview string `json:"preview_color"`
}

type layerResponse struct {
	Layer  protocol.LayerParams    `json:"layer"`
	Biomes []biomeRef              `json:"biomes"`
	Digest protocol.CatalogDigests `json:"catalogs"`
	Limits protocol.Limits         `json:"limits"`
}

func (a *api) getLayer(rw http.ResponseWriter, r *http.Request) {
	w := a.svc.Welcome("")
	cat := a.svc.Biomes()
	refs := make([]biomeRef, 0, len(cat.Index))
	for id, name := range cat.Names {
		if name == "" {
			continue
		}
		refs = append(refs, biomeRef{ID: uint16(id), Name: name, Preview: fmt.Sprintf("#%06x", cat.Preview[id])})
	}
	a.respondJSON(rw, http.StatusOK, layerResponse{Layer: w.Layer, Biomes: refs, Digest: w.Catalogs, Limits: w.Limits})
}

// intParams parses required integer query parameters.
func intParams(r *http.Request, names ...string) ([]int, error) {
	out := make([]int, len(names))
	q := r.URL.Query()
	for i, n := range names {
		s := q.Get(n)
		if s == "" {
			return nil, fmt.Errorf("missing %s", n)
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("bad %s: %v", n, err)
		}
		out[i] = v
	}
	return out, nil
}

func (a *api) getBiomes(rw http.ResponseWriter, r *http.Request) {
	p, err := intParams(r, "x", "z", "sx", "sz")
	if err != nil {
		a.respondError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	resp, errMsg := a.svc.Query(protocol.QueryMsg{
		Type:            protocol.TypeQuery,
		ProtocolVersion: protocol.Version,
		X:               p[0],
		Z:               p[1],
		SizeX:           p[2],
		SizeZ:           p[3],
		Encoding:        r.URL.Query().Get("encoding"),
	})
	if errMsg != nil {
		a.respondJSON(rw, http.StatusBadRequest, errMsg)
		return
	}
	a.respondJSON(rw, http.StatusOK, resp)
}

func (a *api) getBiome(rw http.ResponseWriter, r *http.Request) {
	p, err := intParams(r, "x", "z")
	if err != nil {
		a.respondError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	id, name := a.svc.BiomeAt(p[0], p[1])
	a.respondJSON(rw, http.StatusOK, map[string]any{"x": p[0], "z": p[1], "id": id, "name": name})
}

type chunkResponse struct {
	CX     int    `json:"cx"`
	CZ     int    `json:"cz"`
	Digest string `json:"digest"`
	Data   string `json:"data"`
}

func (a *api) getChunk(rw http.ResponseWriter, r *http.Request) {
	cx, err1 := strconv.Atoi(chi.URLParam(r, "cx"))
	cz, err2 := strconv.Atoi(chi.URLParam(r, "cz"))
	if err1 != nil || err2 != nil {
		a.respondError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid chunk coordinate")
		return
	}
	if !store.ValidChunkCoord(cx, cz) {
		a.respondError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "chunk coordinate out of range")
		return
	}
	ch := a.svc.Chunk(cx, cz)
	etag := `"` + ch.DigestHex() + `"`
	rw.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		rw.WriteHeader(http.StatusNotModified)
		return
	}
	a.respondJSON(rw, http.StatusOK, chunkResponse{
		CX:     cx,
		CZ:     cz,
		Digest: ch.DigestHex(),
		Data:   encoding.EncodeRLE(ch.Biomes),
	})
}

func (a *api) getMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	st := a.svc.Stats()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP biomemap_queries_total Answered rectangle queries.\n")
	fmt.Fprintf(rw, "# TYPE biomemap_queries_total counter\n")
	fmt.Fprintf(rw, "biomemap_queries_total %d\n", st.Queries)

	fmt.Fprintf(rw, "# HELP biomemap_query_cells_total Cells returned by rectangle queries.\n")
	fmt.Fprintf(rw, "# TYPE biomemap_query_cells_total counter\n")
	fmt.Fprintf(rw, "biomemap_query_cells_total %d\n", st.Cells)

	fmt.Fprintf(rw, "# HELP biomemap_queries_rejected_total Queries rejected by validation.\n")
	fmt.Fprintf(rw, "# TYPE biomemap_queries_rejected_total counter\n")
	fmt.Fprintf(rw, "biomemap_queries_rejected_total %d\n", st.Rejected)

	fmt.Fprintf(rw, "# HELP biomemap_loaded_chunks Cached chunk count.\n")
	fmt.Fprintf(rw, "# TYPE biomemap_loaded_chunks gauge\n")
	fmt.Fprintf(rw, "biomemap_loaded_chunks %d\n", st.Chunks.Loaded)

	fmt.Fprintf(rw, "# HELP biomemap_chunk_cache_total Chunk cache lookups.\n")
	fmt.Fprintf(rw, "# TYPE biomemap_chunk_cache_total counter\n")
	fmt.Fprintf(rw, "biomemap_chunk_cache_total{result=%q} %d\n", "hit", st.Chunks.Hits)
	fmt.Fprintf(rw, "biomemap_chunk_cache_total{result=%q} %d\n", "miss", st.Chunks.Misses)

	for _, m := range a.metrics {
		m(rw)
	}
}
