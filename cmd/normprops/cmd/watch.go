package cmd

import (
	"fmt"
	"log/slog"

	"github.com/solatis/normprops/internal/core/metrics"
	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/schema"
	"github.com/solatis/normprops/internal/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Subscribe to a property of a record and log its events as the data file changes",
	Example: `  normprops watch --schema schema.yaml --data records.yaml --root owner --property items`,
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("schema", "./schema.yaml", "schema file declaring models and properties")
	watchCmd.Flags().String("data", "", "record file to load and watch")
	watchCmd.Flags().String("root", "", "key of the record owning the property")
	watchCmd.Flags().String("property", "", "property to subscribe to")
	watchCmd.MarkFlagRequired("data")
	watchCmd.MarkFlagRequired("root")
	watchCmd.MarkFlagRequired("property")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, map[string]string{"schema": "server.schema_file"})
	if err != nil {
		return err
	}
	dataPath, _ := cmd.Flags().GetString("data")
	rootKey, _ := cmd.Flags().GetString("root")
	name, _ := cmd.Flags().GetString("property")

	ctx, stop := exitOnSignal()
	defer stop()

	// Every Manual property is backed by the data file. Its watcher only
	// runs while someone subscribes to the property or to a dependent of it.
	reloads := make(chan struct{}, 1)
	m := metrics.New()
	fileWatch := func(ref schema.PropertyRef, p props.Property) props.Watcher {
		var inst *watch.Instrumented
		file := watch.NewFile(dataPath, func() {
			inst.Notified()
			select {
			case reloads <- struct{}{}:
			default:
			}
		}, logger.With("property", p.String()), watch.WithErrorHandler(func(error) { m.WatchErrors.Inc() }))
		inst = watch.Instrument(file, ref.Model+"#"+ref.Property, m)
		return inst
	}

	catalog, err := schema.Load(cfg.SchemaFile, schema.WithWatch(fileWatch))
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	data, err := schema.LoadRecords(dataPath, catalog)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	root, ok := data.Record(rootKey)
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrUnknownRecord, rootKey)
	}
	prop, err := root.Property(name)
	if err != nil {
		return err
	}

	subs := subscribe(prop, data, logger)
	defer func() {
		for _, s := range subs {
			s.Cancel()
		}
	}()
	logger.Info("watching", "property", prop.String(), "file", dataPath, "engaged", prop.Watching())

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped")
			return nil
		case <-reloads:
			fresh, err := schema.LoadRecords(dataPath, catalog)
			if err != nil {
				// Editors may leave a partially written file; the next write reloads again.
				logger.Warn("reload failed", "error", err)
				continue
			}
			report, err := data.Sync(fresh)
			if err != nil {
				logger.Error("sync failed", "error", err)
				continue
			}
			if _, ok := data.Record(rootKey); !ok {
				return fmt.Errorf("record %s removed from %s", rootKey, dataPath)
			}
			logger.Info("reloaded",
				"added", report.Added,
				"removed", report.Removed,
				"modified", report.Modified)
		}
	}
}

// subscribe logs every change-class event of prop.
func subscribe(prop props.Property, data *schema.Dataset, logger *slog.Logger) []*props.Subscription {
	describe := func(v any) any {
		if r, ok := v.(*props.Record); ok {
			if key, ok := data.KeyOf(r.ID()); ok {
				return key
			}
			return r.ID()
		}
		return v
	}

	logEvent := func(event props.Event) props.Handler {
		return func(args ...any) {
			attrs := []any{"property", prop.String(), "event", string(event)}
			if len(args) > 0 {
				attrs = append(attrs, "value", describe(args[0]))
			}
			logger.Info("property event", attrs...)
		}
	}

	events := []props.Event{props.EventChanged}
	if _, ok := prop.(*props.Set); ok {
		events = append(events, props.EventAdded, props.EventRemoved)
	}

	subs := make([]*props.Subscription, 0, len(events))
	for _, e := range events {
		subs = append(subs, prop.On(e, logEvent(e)))
	}
	return subs
}
