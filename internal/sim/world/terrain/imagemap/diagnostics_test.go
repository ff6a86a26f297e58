package imagemap

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestLogSink_ZeroValueUsesDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	var s LogSink
	s.UnknownColors("map.png", []UnknownColor{{Color: 0x123456, Count: 3, X: 1, Y: 2}})
	s.DecodeFailed("map.png", errors.New("corrupt"))
	s.EncodeFailed("map.fixed.png", errors.New("disk full"))

	out := buf.String()
	for _, want := range []string{"3 occurrences", "corrupt", "disk full"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}
