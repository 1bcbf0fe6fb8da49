// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/arborian/entigraph/internal/xconfig"
	"github.com/arborian/entigraph/logging"
	"github.com/arborian/entigraph/pkg/engine"
	"github.com/arborian/entigraph/pkg/eventlog"
	"github.com/arborian/entigraph/pkg/model"
)

func initQuery(root *cobra.Command) {
	var (
		dataDir      string
		writerID     uint32
		maxPathDepth int
		rootID       uint64
		rootType     uint64
		paths        []string
	)

	queryCommand := &cobra.Command{
		Use:   "query",
		Short: "Materialize a view over an entity and print it as a table",
		Long: `Materialize a view over an entity and print it as a table.

Each --path is a dot-separated chain of step names. A step of the form
"name>type" is a forward reference through field name to an entity of
type; "name<type" is a reverse reference; a bare "name" is a value
step and must be the last element of the path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := xconfig.ApplyEnvironment(cmd); err != nil {
				return err
			}
			viewPaths := make([]model.ViewPath, 0, len(paths))
			for _, p := range paths {
				path, err := parseViewPath(p)
				if err != nil {
					return err
				}
				viewPaths = append(viewPaths, path)
			}
			return runQuery(cmd.Context(), dataDir, writerID, maxPathDepth,
				model.EntityDescriptor{ID: rootID, Type: rootType}, viewPaths)
		},
	}

	queryCommand.Flags().StringVar(&dataDir, "data-dir", xconfig.Default().DataDir, "directory holding the durable event log")
	queryCommand.Flags().Uint32Var(&writerID, "writer-id", xconfig.Default().WriterID, "writer id assigned to this process's snowflake generator")
	queryCommand.Flags().IntVar(&maxPathDepth, "max-path-depth", xconfig.Default().MaxPathDepth, "maximum view path depth before a walk is abandoned")
	queryCommand.Flags().Uint64Var(&rootID, "id", 0, "root entity id")
	queryCommand.Flags().Uint64Var(&rootType, "type", 0, "root entity type id")
	queryCommand.Flags().StringArrayVar(&paths, "path", nil, "view path, repeatable (see --help)")

	root.AddCommand(queryCommand)
}

// parseViewPath parses "manager_id>23.name" into a forward-ref step
// through field manager_id to type 23, followed by a value step on
// name, and similarly for "<" as a reverse-reference step.
func parseViewPath(raw string) (model.ViewPath, error) {
	segments := strings.Split(raw, ".")
	path := make(model.ViewPath, 0, len(segments))
	for _, seg := range segments {
		switch {
		case strings.Contains(seg, ">"):
			name, typeStr, _ := strings.Cut(seg, ">")
			typeID, err := parseUint(typeStr)
			if err != nil {
				return nil, fmt.Errorf("entigraphd query: malformed path segment %q: %w", seg, err)
			}
			path = append(path, model.PathElement{Name: name, Type: typeID, Forward: true})
		case strings.Contains(seg, "<"):
			name, typeStr, _ := strings.Cut(seg, "<")
			typeID, err := parseUint(typeStr)
			if err != nil {
				return nil, fmt.Errorf("entigraphd query: malformed path segment %q: %w", seg, err)
			}
			path = append(path, model.PathElement{Name: name, Type: typeID, Forward: false})
		default:
			path = append(path, model.PathElement{Name: seg})
		}
	}
	return path, nil
}

func parseUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func runQuery(ctx context.Context, dataDir string, writerID uint32, maxPathDepth int, root model.EntityDescriptor, paths []model.ViewPath) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.New()
	log, err := eventlog.OpenBadgerLog(dataDir)
	if err != nil {
		return fmt.Errorf("entigraphd query: opening event log: %w", err)
	}
	defer log.Close()

	sys, err := engine.New(engine.Config{WriterID: writerID, MaxPathDepth: maxPathDepth, Logger: logger})
	if err != nil {
		return fmt.Errorf("entigraphd query: constructing engine: %w", err)
	}
	defer sys.Close()

	if err := sys.Rebuild(ctx, log); err != nil {
		return fmt.Errorf("entigraphd query: rebuilding from event log: %w", err)
	}

	view, found, err := sys.Reader.Read(ctx, model.ViewDescriptor{Root: root, Paths: paths})
	if err != nil {
		return fmt.Errorf("entigraphd query: %w", err)
	}
	if !found {
		fmt.Println("entity not found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Value"})
	for _, path := range paths {
		for _, val := range view.GetAll(path) {
			table.Append([]string{path.String(), formatValue(val)})
		}
	}
	table.Render()
	return nil
}

func formatValue(v model.PrimitiveFieldValue) string {
	switch v.Kind() {
	case model.KindUint64:
		u, _ := v.AsUint64()
		return fmt.Sprintf("%d", u)
	case model.KindFloat64:
		f, _ := v.AsFloat64()
		return fmt.Sprintf("%v", f)
	case model.KindString:
		s, _ := v.AsString()
		return s
	case model.KindBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("%v", b)
	case model.KindDescriptor:
		d, _ := v.AsDescriptor()
		return fmt.Sprintf("%d:%d", d.ID, d.Type)
	default:
		return ""
	}
}
