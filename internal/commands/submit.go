package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/txnimport/internal/batch"
	"github.com/JonMunkholm/txnimport/internal/core"
)

// ErrPartialImport is returned when the endpoint rejected some rows.
var ErrPartialImport = errors.New("some rows were not imported")

type submitOptions struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
}

func newSubmitCommand(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Validate a file and send its rows to the batch endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(root.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runSubmit(cmd, args[0], cfg)
		},
	}

	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "batch endpoint base URL (env BATCH_ENDPOINT_URL)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key sent as X-API-Key (env BATCH_API_KEY)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "request timeout")

	return cmd
}

// apply layers flags, then environment, over the file config.
func (o *submitOptions) apply(cmd *cobra.Command, cfg *FileConfig) {
	switch {
	case cmd.Flags().Changed("endpoint"):
		cfg.Endpoint = o.endpoint
	case cfg.Endpoint == "":
		cfg.Endpoint = os.Getenv("BATCH_ENDPOINT_URL")
	}
	switch {
	case cmd.Flags().Changed("api-key"):
		cfg.APIKey = o.apiKey
	case cfg.APIKey == "":
		cfg.APIKey = os.Getenv("BATCH_API_KEY")
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
}

func runSubmit(cmd *cobra.Command, path string, cfg *FileConfig) error {
	if cfg.Endpoint == "" {
		return errors.New("no batch endpoint: set --endpoint, endpoint in the config file, or BATCH_ENDPOINT_URL")
	}
	client, err := batch.NewClient(nil, cfg.Endpoint, cfg.APIKey, cfg.Timeout)
	if err != nil {
		return err
	}

	sess, err := loadSession(cmd.Context(), path, cfg, client)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	v := sess.Snapshot()
	if printProblems(out, v) > 0 {
		fmt.Fprintf(out, "%d of %d rows invalid, nothing submitted\n", v.InvalidCount, len(v.Rows))
		return ErrInvalidRows
	}

	total := len(v.Rows)
	if _, err := sess.Submit(cmd.Context()); err != nil {
		return err
	}
	sess.Wait()

	v = sess.Snapshot()
	if err := sess.State().SubmitError; err != nil {
		return core.NewUserError(err)
	}

	fmt.Fprintf(out, "imported %d of %d rows\n", total-len(v.ImportErrors), total)
	if v.Phase != core.PhasePartialFailure {
		return nil
	}
	for _, rec := range v.ImportErrors {
		row, _ := v.Row(rec.RowID)
		fmt.Fprintf(out, "row %d (%s): %s\n", rec.Row, row.Description, rec.Message)
	}
	return ErrPartialImport
}
