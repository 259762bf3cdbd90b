package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_WritesServiceAndComponent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Level: "debug", Output: &buf, Service: "product-catalog"})

	log := Component("catalog")
	log.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "product-catalog" {
		t.Errorf("service: got %v", entry["service"])
	}
	if entry["component"] != "catalog" {
		t.Errorf("component: got %v", entry["component"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message: got %v", entry["message"])
	}
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Output: &first})
	Init(Options{Output: &second})

	log := Get()
	log.Info().Msg("x")
	if first.Len() == 0 || second.Len() != 0 {
		t.Error("expected the first Init to win")
	}
}

func TestGet_PanicsBeforeInit(t *testing.T) {
	Reset()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Get()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
		"fatal":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
