package catalogs

import "testing"

func TestLoad_ConfigBiomes(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b := c.Biomes
	if id, ok := b.ID("Ocean"); !ok || id != 0 {
		t.Fatalf("Ocean id=%d ok=%v want 0", id, ok)
	}
	if got := b.Name(127); got != "Void" {
		t.Fatalf("Name(127)=%q want Void", got)
	}
	if got := b.Name(9); got != "" {
		t.Fatalf("Name(9)=%q want empty for an unregistered id", got)
	}
	if id, ok := b.Palette.Lookup(0x2a2ad8); !ok || id != 0 {
		t.Fatalf("secondary Ocean color: id=%d ok=%v", id, ok)
	}
	if b.Preview[127] == 0 {
		t.Fatalf("Void should get a generated preview color")
	}
	if len(b.PaletteDigest) != 64 || len(b.DefsDigest) != 64 {
		t.Fatalf("digests should be sha256 hex")
	}
}

func TestParseBiomes_SortedIDs(t *testing.T) {
	var b BiomeCatalog
	raw := []byte(`[
	  {"name":"Plains","colors":["#00ff00"]},
	  {"name":"Desert","colors":["ffff00"],"preview_color":"#010203"},
	  {"name":"Ocean","colors":["0x0000ff"]}
	]`)
	if err := ParseBiomes(raw, &b); err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"Desert", "Ocean", "Plains"}
	for i, n := range want {
		if b.Names[i] != n {
			t.Fatalf("Names[%d]=%q want %q", i, b.Names[i], n)
		}
	}
	if b.Preview[0] != 0x010203 {
		t.Fatalf("Desert preview=%06x want 010203", b.Preview[0])
	}
	if b.Preview[2] != 0x00ff00 {
		t.Fatalf("Plains preview=%06x want first palette color", b.Preview[2])
	}
	ids, err := b.IDs([]string{"Ocean", "Plains"})
	if err != nil || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("IDs=%v err=%v", ids, err)
	}
	if _, err := b.IDs([]string{"Nope"}); err == nil {
		t.Fatalf("expected unknown biome error")
	}
}

func TestParseBiomes_DigestStableAcrossOrder(t *testing.T) {
	var a, b BiomeCatalog
	if err := ParseBiomes([]byte(`[{"name":"A","colors":["#000001"]},{"name":"B","colors":["#000002"]}]`), &a); err != nil {
		t.Fatalf("parse a: %v", err)
	}
	if err := ParseBiomes([]byte(`[{"name":"B","colors":["#000002"]},{"name":"A","colors":["#000001"]}]`), &b); err != nil {
		t.Fatalf("parse b: %v", err)
	}
	if a.PaletteDigest != b.PaletteDigest {
		t.Fatalf("palette digest depends on file order")
	}
	if a.DefsDigest == b.DefsDigest {
		t.Fatalf("defs digest should track raw bytes")
	}
}

func TestParseBiomes_Rejects(t *testing.T) {
	cases := map[string]string{
		"schema":        `[{"name":"A","colors":["red"]}]`,
		"empty":         `[]`,
		"extra field":   `[{"name":"A","colors":[],"temp":1}]`,
		"duplicate":     `[{"name":"A","colors":[]},{"name":"A","colors":[]}]`,
		"shared color":  `[{"name":"A","colors":["#000001"]},{"name":"B","colors":["#000001"]}]`,
		"mixed ids":     `[{"name":"A","numeric_id":1,"colors":[]},{"name":"B","colors":[]}]`,
		"duplicate ids": `[{"name":"A","numeric_id":1,"colors":[]},{"name":"B","numeric_id":1,"colors":[]}]`,
	}
	for name, raw := range cases {
		var b BiomeCatalog
		if err := ParseBiomes([]byte(raw), &b); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseBiomes_GeneratesPreview(t *testing.T) {
	var b BiomeCatalog
	if err := ParseBiomes([]byte(`[{"name":"A","colors":[]},{"name":"B","colors":[]}]`), &b); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b.Preview[0] == b.Preview[1] {
		t.Fatalf("generated previews should differ: %06x", b.Preview[0])
	}
	if b.Preview[0] == 0 && b.Preview[1] == 0 {
		t.Fatalf("previews not generated")
	}
}
