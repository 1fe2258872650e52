package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/usecase/intake"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Manage uploaded source maps and source files",
}

var artifactUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a debug file for a release",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		release, _ := cmd.Flags().GetString("release")
		name, _ := cmd.Flags().GetString("name")
		path, _ := cmd.Flags().GetString("file")

		content, err := os.ReadFile(path)
		if err != nil {
			return errs.Wrapf(err, "read artifact file %q", path)
		}
		if strings.TrimSpace(name) == "" {
			name = filepath.Base(path)
		}

		ref, err := svc.UploadArtifact(ctx, intake.UploadArtifactInput{
			ProjectID: project,
			Release:   release,
			Name:      name,
			Content:   content,
		})
		if err != nil {
			logging.Error(ctx, "upload artifact failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "upload artifact")
		}

		if ref.Deduplicated {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "artifact already stored: id=%d sha256=%s\n", ref.ArtifactID, ref.SHA256); err != nil {
				return errs.Wrap(err, "write upload output")
			}
			return nil
		}
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"uploaded artifact: id=%d name=%s type=%s size=%d sha256=%s\n",
			ref.ArtifactID,
			ref.Name,
			ref.Type,
			ref.Size,
			ref.SHA256,
		); err != nil {
			return errs.Wrap(err, "write upload output")
		}
		return nil
	}),
}

var artifactShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show artifact metadata",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		artifactID, err := artifactIDFlag(cmd)
		if err != nil {
			return err
		}

		artifact, err := svc.GetArtifact(ctx, project, artifactID)
		if err != nil {
			logging.Error(ctx, "show artifact failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show artifact")
		}

		lastAccessed := "never"
		if artifact.LastAccessedAt != nil {
			lastAccessed = *artifact.LastAccessedAt
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "ID: %d\n", artifact.ArtifactID); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Name: %s\n", artifact.Name); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Release: %s\n", artifact.Release); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Type: %s\n", artifact.Type); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Size: %d\n", artifact.Size); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "SHA256: %s\n", artifact.SHA256); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "SourcesContent: %v\n", artifact.HasSourcesContent); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "UploadedAt: %s\n", artifact.UploadedAt); err != nil {
			return errs.Wrap(err, "write show output")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "LastAccessedAt: %s\n", lastAccessed); err != nil {
			return errs.Wrap(err, "write show output")
		}
		return nil
	}),
}

var artifactDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an uploaded artifact",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service, _ *broadcast.Registry) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		project, _ := cmd.Flags().GetString("project")
		artifactID, err := artifactIDFlag(cmd)
		if err != nil {
			return err
		}

		if err := svc.DeleteArtifact(ctx, project, artifactID); err != nil {
			logging.Error(ctx, "delete artifact failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete artifact")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted artifact: %d\n", artifactID); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(artifactCmd)
	artifactCmd.AddCommand(artifactUploadCmd)
	artifactCmd.AddCommand(artifactShowCmd)
	artifactCmd.AddCommand(artifactDeleteCmd)

	artifactUploadCmd.Flags().String("project", "", "Project the artifact belongs to")
	artifactUploadCmd.Flags().String("release", "", "Release version the artifact maps")
	artifactUploadCmd.Flags().String("name", "", "Stored artifact name (default: file basename)")
	artifactUploadCmd.Flags().String("file", "", "Path to the artifact file")
	_ = artifactUploadCmd.MarkFlagRequired("project")
	_ = artifactUploadCmd.MarkFlagRequired("release")
	_ = artifactUploadCmd.MarkFlagRequired("file")

	for _, sub := range []*cobra.Command{artifactShowCmd, artifactDeleteCmd} {
		sub.Flags().String("project", "", "Project the artifact belongs to")
		sub.Flags().Uint64("id", 0, "Numeric artifact id")
		_ = sub.MarkFlagRequired("project")
		_ = sub.MarkFlagRequired("id")
	}
}

func artifactIDFlag(cmd *cobra.Command) (uint64, error) {
	artifactID, _ := cmd.Flags().GetUint64("id")
	if artifactID == 0 {
		return 0, errors.New("artifact id is required (set --id)")
	}
	return artifactID, nil
}
