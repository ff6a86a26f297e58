package imagemap

import "log"

// Sink receives construction-time diagnostics.
type Sink interface {
	// UnknownColors gets every distinct unmapped color, ascending by count.
	UnknownColors(path string, report []UnknownColor)
	DecodeFailed(path string, err error)
	EncodeFailed(path string, err error)
}

// LogSink writes diagnostics as plain log lines.
type LogSink struct {
	Logger *log.Logger // log.Default() when nil
}

func (s LogSink) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s LogSink) UnknownColors(path string, report []UnknownColor) {
	for _, u := range report {
		s.logger().Printf("%s: %s", path, u)
	}
}

func (s LogSink) DecodeFailed(path string, err error) {
	s.logger().Printf("FATAL: cannot load biome image %s: %v", path, err)
}

func (s LogSink) EncodeFailed(path string, err error) {
	s.logger().Printf("cannot write repaired image %s: %v", path, err)
}

// MultiSink fans diagnostics out to several sinks. Nil entries are skipped.
type MultiSink []Sink

func (m MultiSink) UnknownColors(path string, report []UnknownColor) {
	for _, s := range m {
		if s != nil {
			s.UnknownColors(path, report)
		}
	}
}

func (m MultiSink) DecodeFailed(path string, err error) {
	for _, s := range m {
		if s != nil {
			s.DecodeFailed(path, err)
		}
	}
}

func (m MultiSink) EncodeFailed(path string, err error) {
	for _, s := range m {
		if s != nil {
			s.EncodeFailed(path, err)
		}
	}
}

type nopSink struct{}

func (nopSink) UnknownColors(string, []UnknownColor) {}
func (nopSink) DecodeFailed(string, error)           {}
func (nopSink) EncodeFailed(string, error)           {}
