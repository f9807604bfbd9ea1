package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldsync/internal/mutation"
	"github.com/roach88/fieldsync/internal/queue"
)

// ListResult is the JSON payload of the list command.
type ListResult struct {
	Tenant string            `json:"tenant"`
	Count  int               `json:"count"`
	Items  []mutation.Record `json:"items"`
}

// CountResult is the JSON payload of the count command.
type CountResult struct {
	Tenant       string `json:"tenant"`
	PendingCount int    `json:"pending_count"`
}

// ItemResult is the JSON payload of the retry and discard commands.
type ItemResult struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending and failed mutations",
		Long: `List the active tenant's outstanding mutations, oldest first.

Outstanding means pending (waiting for the next pass) or failed (retries
exhausted, waiting for retry or discard).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listItems(rootOpts, cmd)
		},
	}
}

func listItems(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, err := a.tenant()
	if err != nil {
		return err
	}

	items, err := a.queue.PendingItems(commandContext(cmd), tenant)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list mutations", err)
	}
	if items == nil {
		items = []mutation.Record{}
	}

	result := ListResult{Tenant: tenant, Count: len(items), Items: items}
	return formatter.Render(result, func(w io.Writer) error {
		return writeItemTable(w, tenant, items)
	})
}

func writeItemTable(w io.Writer, tenant string, items []mutation.Record) error {
	if len(items) == 0 {
		_, err := fmt.Fprintf(w, "No outstanding mutations for tenant %s\n", tenant)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tOP\tRESOURCE\tRECORD\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, rec := range items {
		lastErr := "-"
		if rec.LastError != nil {
			lastErr = *rec.LastError
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			rec.ID, rec.Status, rec.Operation, rec.Resource, rec.RecordID,
			rec.Attempts, rec.CreatedAt.UTC().Format(time.RFC3339), lastErr)
	}
	return tw.Flush()
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count",
		Short:         "Print the number of outstanding mutations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return countItems(rootOpts, cmd)
		},
	}
}

func countItems(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, err := a.tenant()
	if err != nil {
		return err
	}

	n, err := a.queue.PendingCount(commandContext(cmd), tenant)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count mutations", err)
	}

	return formatter.Render(CountResult{Tenant: tenant, PendingCount: n}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%d outstanding\n", n)
		return err
	})
}

// NewRetryCommand creates the retry command.
func NewRetryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Return a failed mutation to the queue",
		Long: `Return a failed mutation to pending with a fresh retry budget.

Only failed mutations of the active tenant can be retried. The last error
is kept until the next attempt.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeItem(rootOpts, cmd, args[0], retryAction)
		},
	}
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <id>",
		Short: "Delete a failed mutation",
		Long: `Delete a failed mutation from the queue. It will never be sent.

Only failed mutations of the active tenant can be discarded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeItem(rootOpts, cmd, args[0], discardAction)
		},
	}
}

// itemAction is a change to one failed mutation.
type itemAction struct {
	verb  string
	done  string
	apply func(q *queue.Queue, ctx context.Context, tenantID string, id int64) error
}

var (
	retryAction   = itemAction{verb: "retry", done: "retried", apply: (*queue.Queue).RetryItem}
	discardAction = itemAction{verb: "discard", done: "discarded", apply: (*queue.Queue).DiscardItem}
)

func changeItem(opts *RootOptions, cmd *cobra.Command, arg string, action itemAction) error {
	formatter := newFormatter(opts, cmd)

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, err := a.tenant()
	if err != nil {
		return err
	}

	if err := action.apply(a.queue, commandContext(cmd), tenant, id); err != nil {
		return formatter.Fail(fmt.Sprintf("failed to %s mutation %d", action.verb, id), err)
	}

	return formatter.Render(ItemResult{ID: id, Action: action.done}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Mutation %d %s\n", id, action.done)
		return err
	})
}
