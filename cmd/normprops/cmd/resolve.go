package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/solatis/normprops/internal/core/api"
	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/schema"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a filter onto stored properties and print it as JSON",
	Example: `  normprops resolve --schema schema.yaml --model Person --where full_name=Ada
  normprops resolve --model Item --where association.content=x --server localhost:50051`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, (*api.QueryService).Resolve, (*api.QueryClient).Resolve)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the IDs of stored instances matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, (*api.QueryService).Query, (*api.QueryClient).Query)
	},
}

func init() {
	for _, c := range []*cobra.Command{resolveCmd, queryCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("schema", "./schema.yaml", "schema file declaring models and properties")
		c.Flags().String("model", "", "model the filter is expressed against")
		c.Flags().StringArray("where", nil, "path=value condition, repeatable (true/false test presence, null matches nil)")
		c.Flags().String("server", "", "send the request to a running query service instead of evaluating locally")
		c.MarkFlagRequired("model")
	}
}

type (
	localCall  func(*api.QueryService, context.Context, *structpb.Struct) (*structpb.Struct, error)
	remoteCall func(*api.QueryClient, context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)
)

// runRequest builds the request from flags and runs it against a local
// service or, with --server, a remote one.
func runRequest(cmd *cobra.Command, local localCall, remote remoteCall) error {
	cfg, logger, err := setup(cmd, map[string]string{"schema": "server.schema_file"})
	if err != nil {
		return err
	}

	model, _ := cmd.Flags().GetString("model")
	wheres, _ := cmd.Flags().GetStringArray("where")
	f, err := whereFilter(wheres)
	if err != nil {
		return err
	}
	encoded, err := filter.ToValue(f)
	if err != nil {
		return err
	}
	req := api.Request(model, encoded)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	var resp *structpb.Struct
	if addr, _ := cmd.Flags().GetString("server"); addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		defer conn.Close()
		resp, err = remote(api.NewQueryClient(conn), ctx, req)
		if err != nil {
			return err
		}
	} else {
		catalog, err := schema.Load(cfg.SchemaFile)
		if err != nil {
			return fmt.Errorf("failed to load schema: %w", err)
		}
		var store api.Querier
		if cfg.HasDatabase() {
			database, s, err := openStore(ctx, cfg, catalog, logger)
			if err != nil {
				return err
			}
			defer database.Close()
			store = s
		}
		service, err := api.NewQueryService(catalog, store, logger)
		if err != nil {
			return err
		}
		if resp, err = local(service, ctx, req); err != nil {
			return err
		}
	}

	return printJSON(cmd.OutOrStdout(), resp)
}

// whereFilter conjoins path=value assignments.
func whereFilter(wheres []string) (filter.Filter, error) {
	var f filter.Filter
	for _, w := range wheres {
		leaf, err := filter.ParseAssignment(w)
		if err != nil {
			return filter.Filter{}, fmt.Errorf("--where %q: %w", w, err)
		}
		f = f.And(leaf)
	}
	return f, nil
}

func printJSON(w io.Writer, msg *structpb.Struct) error {
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
