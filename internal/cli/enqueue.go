package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldsync/internal/mutation"
)

// EnqueueOptions holds flags for the enqueue command.
type EnqueueOptions struct {
	*RootOptions
	Resource  string
	Operation string
	RecordID  string
	Payload   string
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Record a mutation in the local queue",
		Long: `Record a mutation in the local queue for the active tenant.

The mutation is stored as pending and sent on the next sync pass. The
payload is opaque JSON and is forwarded to the backend unchanged.

Example:
  fieldsync enqueue --tenant farm-7 --resource plots --op update \
    --record plot-12 --payload '{"crop":"barley"}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueueMutation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Resource, "resource", "", "resource name, e.g. plots (required)")
	cmd.Flags().StringVar(&opts.Operation, "op", string(mutation.OpUpdate), "operation (create|update|delete)")
	cmd.Flags().StringVar(&opts.RecordID, "record", "", "record id within the resource (required)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "mutation payload as a JSON object")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func enqueueMutation(opts *EnqueueOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	op, err := mutation.ParseOperation(opts.Operation)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
		return reported(WrapExitError(ExitCommandError, "invalid --op", err))
	}

	payload, err := parsePayload(opts.Payload)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidInput, err.Error(), nil)
		return reported(WrapExitError(ExitCommandError, "invalid --payload", err))
	}

	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, err := a.tenant()
	if err != nil {
		return err
	}

	rec, err := a.queue.Enqueue(commandContext(cmd), mutation.Input{
		TenantID:  tenant,
		Resource:  opts.Resource,
		Operation: op,
		RecordID:  opts.RecordID,
		Payload:   payload,
	})
	if err != nil {
		return formatter.Fail("failed to enqueue mutation", err)
	}

	return formatter.Render(rec, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Queued %s %s/%s (id=%d)\n", rec.Operation, rec.Resource, rec.RecordID, rec.ID)
		return err
	})
}

// parsePayload decodes a JSON object. Numbers are kept as json.Number so
// large integers survive the round trip to the backend.
func parsePayload(s string) (mutation.Payload, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var payload mutation.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("payload must be a single JSON object")
	}
	return payload, nil
}
