package logging

import "time"

// Config tunes the event router for one server process. Which sinks run is
// decided by the caller when it builds the NamedSink list; the config only
// carries their shared tuning.
type Config struct {
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	Console          ConsoleConfig
	JSON             JSONConfig
	DropWarnInterval time.Duration
}

// JSONConfig tunes the newline-delimited JSON sink.
type JSONConfig struct {
	FlushInterval time.Duration
}

// ConsoleConfig tunes the human-readable console sink.
type ConsoleConfig struct {
	UseColor bool
}

// DefaultConfig suits a single-shooter session server: info severity and a
// queue sized for a 15 Hz tick's worth of behaviour events.
func DefaultConfig() Config {
	return Config{
		BufferSize:       256,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
