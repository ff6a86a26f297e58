package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"biomemap.ai/internal/protocol"
	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/encoding"
	"biomemap.ai/internal/sim/service"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var cats catalogs.Catalogs
	if err := catalogs.ParseBiomes([]byte(`[{"name":"A","colors":["#000001"]},{"name":"B","colors":["#000002"]}]`), &cats.Biomes); err != nil {
		t.Fatalf("ParseBiomes: %v", err)
	}
	l, err := imagemap.NewLayer(2, 1, []layer.BiomeID{0, 1}, imagemap.LayerConfig{Mode: imagemap.FillEmpty, Fill: 0})
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	svc := service.New(service.Config{Layer: l, Catalogs: &cats, MaxCells: 16, MaxChunks: 4})
	srv := NewServer(svc, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readType(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base.Type, b
}

func TestServer_HelloQuery(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	typ, b := readType(t, conn)
	if typ != protocol.TypeWelcome {
		t.Fatalf("got %s want WELCOME", typ)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(b, &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if w.Layer.Width != 2 || w.Layer.Mode != "FillEmpty" || w.SessionID == "" {
		t.Fatalf("welcome=%+v", w)
	}

	send(t, conn, protocol.QueryMsg{Type: protocol.TypeQuery, ProtocolVersion: protocol.Version, ReqID: "q1", X: -1, Z: 0, SizeX: 4, SizeZ: 1})
	typ, b = readType(t, conn)
	if typ != protocol.TypeBiomes {
		t.Fatalf("got %s want BIOMES: %s", typ, b)
	}
	var bm protocol.BiomesMsg
	if err := json.Unmarshal(b, &bm); err != nil {
		t.Fatalf("biomes: %v", err)
	}
	ids, err := encoding.DecodeRLE(bm.Data, 4)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	want := []layer.BiomeID{0, 0, 1, 0}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids=%v want %v", ids, want)
		}
	}
	if bm.ReqID != "q1" {
		t.Fatalf("req_id=%q", bm.ReqID)
	}
}

func TestServer_QueryErrors(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	readType(t, conn)

	send(t, conn, protocol.QueryMsg{Type: protocol.TypeQuery, ProtocolVersion: protocol.Version, ReqID: "big", SizeX: 5, SizeZ: 5})
	typ, b := readType(t, conn)
	var e protocol.ErrorMsg
	_ = json.Unmarshal(b, &e)
	if typ != protocol.TypeError || e.Code != protocol.ErrBadRequest || e.ReqID != "big" {
		t.Fatalf("oversize: %s", b)
	}

	send(t, conn, map[string]string{"type": "NOPE", "protocol_version": protocol.Version})
	typ, b = readType(t, conn)
	_ = json.Unmarshal(b, &e)
	if typ != protocol.TypeError || e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown type: %s", b)
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts)
	send(t, conn, protocol.QueryMsg{Type: protocol.TypeQuery, ProtocolVersion: protocol.Version, SizeX: 1, SizeZ: 1})
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestServer_OversizedFrameEndsSession(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	readType(t, conn)

	send(t, conn, map[string]any{
		"type":             protocol.TypeQuery,
		"protocol_version": protocol.Version,
		"req_id":           "pad",
		"size_x":           1,
		"size_z":           1,
		"pad":              strings.Repeat("x", 2*maxMessageBytes),
	})
	_, b, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected session to end, got %s", b)
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseMessageTooBig {
		t.Fatalf("close code=%d want %d", ce.Code, websocket.CloseMessageTooBig)
	}
}
