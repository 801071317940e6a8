package cmd

import (
	"context"
	"flag"
	"testing"
)

type testConfig struct {
	Endpoint string `env:"CMD_TEST_ENDPOINT" envDefault:"http://127.0.0.1:8080"`
	Workers  int    `env:"CMD_TEST_WORKERS" envDefault:"4"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ENDPOINT", "http://env:9000")
	t.Setenv("CMD_TEST_WORKERS", "7")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Endpoint, "endpoint", cfgRef.Endpoint, "endpoint")
	fs.IntVar(&cfgRef.Workers, "workers", cfgRef.Workers, "workers")

	if err := ParseArgs(fs, []string{"-endpoint", "http://flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Endpoint != "http://flag:9001" {
		t.Fatalf("expected flag value for endpoint, got %q", cfgRef.Endpoint)
	}
	if cfgRef.Workers != 7 {
		t.Fatalf("expected env workers, got %d", cfgRef.Workers)
	}
}

func TestParseConfigFromArgsReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ENDPOINT", "http://configarg:9000")

	cfgRef := testConfig{}
	fs := flag.NewFlagSet("configargs", flag.ContinueOnError)
	fs.StringVar(&cfgRef.Endpoint, "endpoint", "", "endpoint")
	if err := ParseConfigFromArgs(&cfgRef, fs, []string{"-endpoint", "http://flag:9002"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfgRef.Endpoint != "http://flag:9002" {
		t.Fatalf("expected parsed flag endpoint, got %q", cfgRef.Endpoint)
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(nil, "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(nil, ServiceUploader, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}
