// Package sessions implements the sessions command.
package sessions

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/datastore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// Command creates the sessions command and its subcommands
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded acquisition sessions",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, func(ctx context.Context, store datastore.Interface) error {
				list, err := store.List(ctx, limit)
				if err != nil {
					return err
				}
				return printTable(cmd, list)
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions, 0 for all")

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, func(ctx context.Context, store datastore.Interface) error {
				session, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(session)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, func(ctx context.Context, store datastore.Interface) error {
				if err := store.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}

// withStore opens the configured SQLite store for the duration of fn.
// The store is opened even when recording is disabled so old sessions
// stay readable.
func withStore(ctx context.Context, settings *conf.Settings, fn func(context.Context, datastore.Interface) error) (err error) {
	store := datastore.NewSQLiteStore(settings.Output.SQLite.Path,
		datastore.WithLogger(logger.Global().Module("datastore")))
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, store)
}

func printTable(cmd *cobra.Command, list []datastore.Session) error {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tDEVICE\tSTATE\tSHAPE\tSTARTED\tDURATION\tPRODUCED\tCONSUMED\tDROPPED")
	for i := range list {
		s := &list[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%s\t%s\t%d\t%d\t%d\n",
			s.SessionID, s.DeviceID, s.State, s.Channels, s.SamplesPerBlock,
			formatTime(s.StartedAt), duration(s), s.Produced, s.Consumed, s.Dropped)
	}
	return w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func duration(s *datastore.Session) string {
	if s.StartedAt == nil || s.StoppedAt == nil {
		return "-"
	}
	return s.StoppedAt.Sub(*s.StartedAt).Round(time.Millisecond).String()
}
