package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.4:80":    false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestOpenIndex_Backends(t *testing.T) {
	dir := t.TempDir()
	if idx, err := openIndex(dir, true); err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}
	t.Setenv("BM_INDEX_BACKEND", "none")
	if idx, err := openIndex(dir, false); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}
	t.Setenv("BM_INDEX_BACKEND", "d1")
	if _, err := openIndex(dir, false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	t.Setenv("BM_INDEX_BACKEND", "")
	idx, err := openIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()
}

func TestBuildMirrorRuntime_Env(t *testing.T) {
	m, err := buildMirrorRuntime(t.TempDir(), nil)
	if err != nil || m != nil {
		t.Fatalf("disabled mirror: m=%v err=%v", m, err)
	}
	t.Setenv("BM_MIRROR", "true")
	if _, err := buildMirrorRuntime(t.TempDir(), nil); err == nil {
		t.Fatalf("expected missing endpoint error")
	}

	var buf bytes.Buffer
	writeMirrorMetrics(&buf, nil)
	writeIndexMetrics(&buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("nil backends wrote metrics: %q", buf.String())
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("BM_X", "7")
	if got := envInt("BM_X", 2); got != 7 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("BM_X", "-1")
	if got := envInt("BM_X", 2); got != 2 {
		t.Fatalf("got %d", got)
	}
	if !strings.HasSuffix(indexPath("/d"), "index/biomemap.sqlite") {
		t.Fatalf("indexPath=%s", indexPath("/d"))
	}
}
