package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/domain/crash"
	"faultline/internal/errs"
	"faultline/internal/usecase/intake"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Ingest crash events from a JSON file or stdin",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		batch, _ := cmd.Flags().GetBool("batch")

		payload, err := resolvePayload(cmd)
		if err != nil {
			return err
		}

		if batch {
			var inputs []crash.Input
			if err := json.Unmarshal(payload, &inputs); err != nil {
				return errs.Wrap(err, "parse batch payload")
			}

			results, err := svc.CaptureBatch(ctx, project, inputs)
			if err != nil {
				logging.Error(ctx, "capture batch failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "capture batch")
			}

			accepted := 0
			for _, slot := range results {
				if slot.Err != nil {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "slot %d rejected: %v\n", slot.Index, slot.Err); err != nil {
						return errs.Wrap(err, "write capture output")
					}
					continue
				}
				accepted++
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "slot %d accepted: event=%s issue=%s\n", slot.Index, slot.Result.EventID, slot.Result.ShortID); err != nil {
					return errs.Wrap(err, "write capture output")
				}
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "batch done: %d accepted, %d rejected\n", accepted, len(results)-accepted); err != nil {
				return errs.Wrap(err, "write capture output")
			}
			return nil
		}

		var input crash.Input
		if err := json.Unmarshal(payload, &input); err != nil {
			return errs.Wrap(err, "parse event payload")
		}

		result, err := svc.Capture(ctx, project, input)
		if err != nil {
			logging.Error(ctx, "capture event failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "capture event")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"accepted: event=%s issue=%s new_issue=%v regression=%v\n",
			result.EventID,
			result.ShortID,
			result.IsNewIssue,
			result.IsRegression,
		); err != nil {
			return errs.Wrap(err, "write capture output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().String("project", "", "Project the events belong to")
	captureCmd.Flags().String("file", "", "Path to the JSON payload (default: stdin)")
	captureCmd.Flags().Bool("batch", false, "Treat the payload as a JSON array of events")
	_ = captureCmd.MarkFlagRequired("project")
}

func resolvePayload(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("file")

	if strings.TrimSpace(path) == "" || path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errs.Wrap(err, "read stdin payload")
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, errors.New("payload is required (set --file or pipe JSON to stdin)")
		}
		return raw, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read payload file %q", path)
	}
	return raw, nil
}
