// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package command wires entigraphd's cobra command tree, grounded on
// the teacher's cmd.Command (cmd/commands.go): one root command built
// once at package init time, with each subcommand registering itself
// via its own initXxx function.
package command

import (
	"github.com/spf13/cobra"
)

// RootCommand is the base CLI command every subcommand attaches to.
var RootCommand = &cobra.Command{
	Use:   "entigraphd",
	Short: "Run and query an entity graph engine",
	Long:  "entigraphd runs an event-sourced entity graph engine: write versioned entities, materialize path-based views over them, and serve both over a local dispatcher.",
}

func init() {
	initServe(RootCommand)
	initWrite(RootCommand)
	initQuery(RootCommand)
}
