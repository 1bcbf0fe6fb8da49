// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arborian/entigraph/internal/xconfig"
	"github.com/arborian/entigraph/logging"
	"github.com/arborian/entigraph/pkg/engine"
	"github.com/arborian/entigraph/pkg/eventlog"
	"github.com/arborian/entigraph/pkg/model"
)

func initWrite(root *cobra.Command) {
	var (
		dataDir    string
		writerID   uint32
		entityType uint64
		entityID   uint64
		fields     []string
		refs       []string
	)

	writeCommand := &cobra.Command{
		Use:   "write",
		Short: "Write one entity's fields to the event log and apply them",
		Long: `Write one entity's fields to the event log and apply them.

Use --field name=value for primitive fields (value is parsed as uint64,
then float64, then bool, falling back to string), and --ref
name=id:type for fields that reference another entity by descriptor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := xconfig.ApplyEnvironment(cmd); err != nil {
				return err
			}
			node, err := parseFields(fields, refs)
			if err != nil {
				return err
			}
			return runWrite(cmd.Context(), dataDir, writerID, model.EntityDescriptor{ID: entityID, Type: entityType}, node)
		},
	}

	writeCommand.Flags().StringVar(&dataDir, "data-dir", xconfig.Default().DataDir, "directory holding the durable event log")
	writeCommand.Flags().Uint32Var(&writerID, "writer-id", xconfig.Default().WriterID, "writer id assigned to this process's snowflake generator")
	writeCommand.Flags().Uint64Var(&entityType, "type", 0, "entity type id")
	writeCommand.Flags().Uint64Var(&entityID, "id", 0, "entity id; 0 assigns a fresh id from the written event")
	writeCommand.Flags().StringArrayVar(&fields, "field", nil, "name=value primitive field, repeatable")
	writeCommand.Flags().StringArrayVar(&refs, "ref", nil, "name=id:type reference field, repeatable")

	root.AddCommand(writeCommand)
}

func parseFields(fields, refs []string) (model.ValueNode, error) {
	node := model.ValueNode{}
	for _, f := range fields {
		name, raw, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("entigraphd write: malformed --field %q, expected name=value", f)
		}
		node[name] = parsePrimitive(raw)
	}
	for _, r := range refs {
		name, raw, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("entigraphd write: malformed --ref %q, expected name=id:type", r)
		}
		idStr, typeStr, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("entigraphd write: malformed --ref %q, expected name=id:type", r)
		}
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entigraphd write: malformed --ref %q: %w", r, err)
		}
		typeID, err := strconv.ParseUint(typeStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entigraphd write: malformed --ref %q: %w", r, err)
		}
		node[name] = model.NewDescriptorValue(model.EntityDescriptor{ID: id, Type: typeID})
	}
	return node, nil
}

func parsePrimitive(raw string) model.PrimitiveFieldValue {
	if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return model.NewUint64Value(u)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.NewFloat64Value(f)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return model.NewBoolValue(b)
	}
	return model.NewStringValue(raw)
}

func runWrite(ctx context.Context, dataDir string, writerID uint32, descriptor model.EntityDescriptor, node model.ValueNode) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.New()
	log, err := eventlog.OpenBadgerLog(dataDir)
	if err != nil {
		return fmt.Errorf("entigraphd write: opening event log: %w", err)
	}
	defer log.Close()

	sys, err := engine.New(engine.Config{WriterID: writerID, Logger: logger})
	if err != nil {
		return fmt.Errorf("entigraphd write: constructing engine: %w", err)
	}
	defer sys.Close()

	if err := sys.Rebuild(ctx, log); err != nil {
		return fmt.Errorf("entigraphd write: rebuilding from event log: %w", err)
	}

	writer := engine.NewLoggingWriter(sys.Writer, log)
	id, err := writer.Write(ctx, model.EventEntity{Descriptor: descriptor, Node: node})
	if err != nil {
		return fmt.Errorf("entigraphd write: %w", err)
	}

	fmt.Printf("wrote event %d\n", id)
	return nil
}
