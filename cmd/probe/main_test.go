package main

import (
	"encoding/json"
	"testing"
	"time"

	"biomemap.ai/internal/protocol"
	"biomemap.ai/internal/sim/encoding"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

func TestSummarize(t *testing.T) {
	var lat []time.Duration
	for i := 100; i >= 1; i-- {
		lat = append(lat, time.Duration(i)*time.Millisecond)
	}
	s := summarize(lat)
	if s.P50 != 50*time.Millisecond || s.P95 != 95*time.Millisecond || s.Max != 100*time.Millisecond {
		t.Fatalf("summary=%+v", s)
	}
	if (summarize(nil) != latencySummary{}) {
		t.Fatalf("empty summary should be zero")
	}
}

func TestCheckReply(t *testing.T) {
	q := protocol.QueryMsg{ReqID: "Q1", SizeX: 2, SizeZ: 2}
	mk := func(v any) []byte {
		b, _ := json.Marshal(v)
		return b
	}
	ok := protocol.BiomesMsg{Type: protocol.TypeBiomes, ReqID: "Q1", SizeX: 2, SizeZ: 2, Encoding: protocol.EncodingRLE,
		Data: encoding.EncodeRLE([]layer.BiomeID{3, 3, 3, 4})}
	if err := checkReply(mk(ok), q); err != nil {
		t.Fatalf("valid reply: %v", err)
	}
	raw := protocol.BiomesMsg{Type: protocol.TypeBiomes, ReqID: "Q1", Encoding: protocol.EncodingRaw, Biomes: []uint16{1, 2, 3}}
	if err := checkReply(mk(raw), q); err == nil {
		t.Fatalf("short raw reply should fail")
	}
	wrongID := ok
	wrongID.ReqID = "Q2"
	if err := checkReply(mk(wrongID), q); err == nil {
		t.Fatalf("mismatched req_id should fail")
	}
	if err := checkReply(mk(protocol.NewError("Q1", protocol.ErrBadRequest, "too big")), q); err == nil {
		t.Fatalf("ERROR reply should fail")
	}
}
