package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type entrypointTestConfig struct {
	Addr string `env:"BREATHE_ENTRYPOINT_TEST_ADDR" envDefault:"localhost:9"`
}

func TestParseConfigNil(t *testing.T) {
	if err := ParseConfig[entrypointTestConfig](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestParseConfigFromArgs(t *testing.T) {
	t.Setenv("BREATHE_ENTRYPOINT_TEST_ADDR", "env:1234")

	var cfg entrypointTestConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	if err := ParseArgs(fs, []string{"-addr", "flag:5678"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Addr != "flag:5678" {
		t.Fatalf("addr = %q, want flag override", cfg.Addr)
	}
}

func TestParseArgsNilFlagSet(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected error for nil flag set")
	}
}

func TestRunWithTelemetryRequiresService(t *testing.T) {
	err := RunWithTelemetry(context.Background(), "  ", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestRunWithTelemetryRequiresRun(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), ServiceBreathing, nil); err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestRunWithTelemetryPropagatesRunError(t *testing.T) {
	wantErr := errors.New("run failed")
	err := RunWithTelemetry(context.Background(), ServiceBreathing, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
