package main

import (
	"context"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestServeCmdDeclaresAddrFlag(t *testing.T) {
	cmd := serveCmd()
	if cmd.Name != "serve" {
		t.Fatalf("serveCmd().Name = %q, want %q", cmd.Name, "serve")
	}

	var found bool
	for _, f := range cmd.Flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "addr" {
			found = true
			if sf.Value != "127.0.0.1:8080" {
				t.Fatalf("addr default = %q, want %q", sf.Value, "127.0.0.1:8080")
			}
		}
	}
	if !found {
		t.Fatalf("serveCmd() flags missing --addr")
	}
}

func TestApplyServeConfigFillsAddrWhenUnset(t *testing.T) {
	addr := ""
	cfg := Config{ServerAddress: "0.0.0.0:9090"}

	cmd := &cli.Command{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Destination: &addr},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, cfg, &addr)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), []string{"test"}); err != nil {
		t.Fatalf("cmd.Run: %v", err)
	}

	if addr != "0.0.0.0:9090" {
		t.Fatalf("addr = %q, want config value %q since --addr was not set", addr, "0.0.0.0:9090")
	}
}
