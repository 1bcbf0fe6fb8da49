// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package xconfig

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestLoadFileOverlaysDefaults(t *testing.T) {
	cfg, err := LoadFile("entigraph.yaml", []byte("writer_id: 9\nmetrics_addr: \":1234\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WriterID != 9 {
		t.Fatalf("expected writer_id to be overridden to 9, got: %v", cfg.WriterID)
	}
	if cfg.MetricsAddr != ":1234" {
		t.Fatalf("expected metrics_addr to be overridden, got: %v", cfg.MetricsAddr)
	}
	if cfg.RingCapacity != Default().RingCapacity {
		t.Fatalf("expected ring_capacity to keep its default, got: %v", cfg.RingCapacity)
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	if _, err := LoadFile("bad.yaml", []byte("writer_id: [unterminated\n")); err == nil {
		t.Fatalf("expected malformed YAML to produce an error")
	}
}

func TestApplyEnvironmentOverlaysUnsetFlags(t *testing.T) {
	t.Setenv("ENTIGRAPH_SERVE_WRITER_ID", "42")

	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().Uint32("writer-id", 1, "")

	if err := ApplyEnvironment(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := cmd.Flags().GetUint32("writer-id")
	if err != nil {
		t.Fatalf("unexpected error reading flag: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected writer-id to be overlaid from environment to 42, got: %v", got)
	}
}

func TestApplyEnvironmentLeavesExplicitlySetFlagsAlone(t *testing.T) {
	t.Setenv("ENTIGRAPH_SERVE_WRITER_ID", "42")

	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().Uint32("writer-id", 1, "")
	if err := cmd.Flags().Set("writer-id", "7"); err != nil {
		t.Fatalf("unexpected error setting flag: %v", err)
	}

	if err := ApplyEnvironment(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := cmd.Flags().GetUint32("writer-id")
	if got != 7 {
		t.Fatalf("expected explicitly set flag to be left alone, got: %v", got)
	}
}
