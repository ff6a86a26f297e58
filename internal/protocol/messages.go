package protocol

import (
	"fmt"
	"strings"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Layer           LayerParams    `json:"layer"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Limits          Limits         `json:"limits"`
}

type LayerParams struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Mode        string `json:"mode"`
	Orientation string `json:"orientation"`
	XOffset     int    `json:"x_offset"`
	ZOffset     int    `json:"z_offset"`
	Fill        uint16 `json:"fill"`
	HasFallback bool   `json:"has_fallback"`
}

type CatalogDigests struct {
	Biomes        DigestRef `json:"biomes"`
	PaletteDigest string    `json:"palette_digest"`
	TuningDigest  string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type Limits struct {
	MaxCells int `json:"max_cells"`
}

// QUERY (client -> server)
type QueryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	X               int    `json:"x"`
	Z               int    `json:"z"`
	SizeX           int    `json:"size_x"`
	SizeZ           int    `json:"size_z"`
	Encoding        string `json:"encoding,omitempty"`
}

// BIOMES (server -> client). Data is base64 RLE for EncodingRLE; Biomes is set
// for EncodingRaw.
type BiomesMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id,omitempty"`
	X               int      `json:"x"`
	Z               int      `json:"z"`
	SizeX           int      `json:"size_x"`
	SizeZ           int      `json:"size_z"`
	Encoding        string   `json:"encoding"`
	Data            string   `json:"data,omitempty"`
	Biomes          []uint16 `json:"biomes,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(reqID, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ReqID: reqID, Code: code, Message: msg}
}

// Normalize fills the default encoding.
func (q *QueryMsg) Normalize() {
	q.Encoding = strings.ToUpper(strings.TrimSpace(q.Encoding))
	if q.Encoding == "" {
		q.Encoding = EncodingRLE
	}
}

// Validate checks a normalized query against the cell cap. It returns the
// error code to send on failure.
func (q QueryMsg) Validate(maxCells int) (string, error) {
	if q.SizeX <= 0 || q.SizeZ <= 0 {
		return ErrBadRequest, fmt.Errorf("size must be positive: %dx%d", q.SizeX, q.SizeZ)
	}
	if maxCells > 0 && (q.SizeX > maxCells || q.SizeZ > maxCells/q.SizeX) {
		return ErrBadRequest, fmt.Errorf("query %dx%d exceeds max_cells %d", q.SizeX, q.SizeZ, maxCells)
	}
	switch q.Encoding {
	case EncodingRLE, EncodingRaw:
	default:
		return ErrBadRequest, fmt.Errorf("unknown encoding %q", q.Encoding)
	}
	return "", nil
}
