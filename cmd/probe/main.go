package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"biomemap.ai/internal/protocol"
	"biomemap.ai/internal/sim/encoding"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "probe", "client name")
		n        = flag.Int("n", 100, "number of queries")
		size     = flag.Int("size", 64, "query edge length in cells")
		span     = flag.Int("span", 4096, "query origins are drawn from [-span, span)")
		enc      = flag.String("encoding", protocol.EncodingRLE, "RLE or RAW")
		interval = flag.Duration("interval", 0, "pause between queries")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil || w.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME: type=%q err=%v", w.Type, err)
	}
	logger.Printf("WELCOME session=%s layer=%dx%d %s/%s max_cells=%d", w.SessionID, w.Layer.Width, w.Layer.Height, w.Layer.Mode, w.Layer.Orientation, w.Limits.MaxCells)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	r := rand.New(rand.NewSource(*seed))
	var lat []time.Duration
	errs := 0
	for i := 0; i < *n; i++ {
		select {
		case <-stop:
			i = *n
			continue
		default:
		}
		q := protocol.QueryMsg{
			Type:            protocol.TypeQuery,
			ProtocolVersion: protocol.Version,
			ReqID:           fmt.Sprintf("Q%d", i),
			X:               r.Intn(2**span) - *span,
			Z:               r.Intn(2**span) - *span,
			SizeX:           *size,
			SizeZ:           *size,
			Encoding:        *enc,
		}
		start := time.Now()
		if err := conn.WriteJSON(q); err != nil {
			logger.Fatalf("send QUERY: %v", err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		d := time.Since(start)
		if err := checkReply(msg, q); err != nil {
			errs++
			logger.Printf("%s: %v", q.ReqID, err)
		} else {
			lat = append(lat, d)
		}
		if *interval > 0 {
			time.Sleep(*interval)
		}
	}
	s := summarize(lat)
	logger.Printf("ok=%d errors=%d p50=%s p95=%s max=%s", len(lat), errs, s.P50, s.P95, s.Max)
}

// checkReply verifies a BIOMES reply matches q and carries size_x*size_z cells.
func checkReply(msg []byte, q protocol.QueryMsg) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return err
	}
	if base.Type == protocol.TypeError {
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		if !protocol.IsKnownCode(e.Code) {
			return fmt.Errorf("undocumented error code %q: %s", e.Code, e.Message)
		}
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	if base.Type != protocol.TypeBiomes {
		return fmt.Errorf("unexpected %s", base.Type)
	}
	var b protocol.BiomesMsg
	if err := json.Unmarshal(msg, &b); err != nil {
		return err
	}
	if b.ReqID != q.ReqID {
		return fmt.Errorf("req_id %q, want %q", b.ReqID, q.ReqID)
	}
	want := q.SizeX * q.SizeZ
	got := len(b.Biomes)
	if b.Encoding == protocol.EncodingRLE {
		ids, err := encoding.DecodeRLE(b.Data, want)
		if err != nil {
			return err
		}
		got = len(ids)
	}
	if got != want {
		return fmt.Errorf("cells=%d want %d", got, want)
	}
	return nil
}

type latencySummary struct {
	P50, P95, Max time.Duration
}

func summarize(lat []time.Duration) latencySummary {
	if len(lat) == 0 {
		return latencySummary{}
	}
	s := append([]time.Duration(nil), lat...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	at := func(p int) time.Duration { return s[(len(s)-1)*p/100] }
	return latencySummary{P50: at(50), P95: at(95), Max: s[len(s)-1]}
}
