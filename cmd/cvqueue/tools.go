package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/extract"
	"github.com/joseph-ayodele/cv-extractor/internal/reconcile"
	"github.com/joseph-ayodele/cv-extractor/internal/server"
)

func extractCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Run the three extraction phases on a CV text file without queueing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := extract.ReadTextFile(args[0])
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			p, err := s.Service.Extract(cmd.Context(), userID, text)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "user the extraction session belongs to")
	return cmd
}

func reconcileCmd(a *app) *cobra.Command {
	var section, profilePath, textPath string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Convert a profile section between structured and text form",
	}
	cmd.PersistentFlags().StringVar(&section, "section", string(constants.SectionExperience), "section to convert")
	cmd.PersistentFlags().StringVar(&profilePath, "profile", "", "profile JSON file")

	toText := &cobra.Command{
		Use:   "to-text",
		Short: "Render one section of a profile as editable text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p entity.ExtractedProfile
			if err := readJSONFile(profilePath, &p); err != nil {
				return err
			}
			text, err := offlineService(a).ReconcileStructuredToText(cmd.Context(), section, &p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	fromText := &cobra.Command{
		Use:   "from-text",
		Short: "Merge edited section text into a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var anchor *entity.ExtractedProfile
			if profilePath != "" {
				anchor = &entity.ExtractedProfile{}
				if err := readJSONFile(profilePath, anchor); err != nil {
					return err
				}
			}
			text, err := os.ReadFile(textPath)
			if err != nil {
				return err
			}
			p, rep, err := offlineService(a).ReconcileTextToStructured(cmd.Context(), section, string(text), anchor)
			if err != nil {
				return err
			}
			return printJSON(cmd, struct {
				Profile *entity.ExtractedProfile `json:"profile"`
				Report  reconcile.Report         `json:"report"`
			}{p, rep})
		},
	}
	fromText.Flags().StringVar(&textPath, "text", "", "edited section text file")
	_ = fromText.MarkFlagRequired("text")
	_ = toText.MarkFlagRequired("profile")

	cmd.AddCommand(toText, fromText)
	return cmd
}

// offlineService serves the conversions that need neither store nor model.
func offlineService(a *app) *server.Service {
	return server.NewService(server.Deps{}, a.logger)
}

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Write the result of a completed job as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".xlsx"
			}
			if err := writeJobXLSX(cmd.Context(), s, args[0], out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <job-id>.xlsx)")
	return cmd
}

func ingestCmd(a *app) *cobra.Command {
	var (
		userID     string
		skipHidden bool
		process    bool
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Store and queue every CV text file under a directory",
		Long: "Store and queue every CV text file under a directory. With --process the\n" +
			"queue is drained in this process and, with --out, every completed job is\n" +
			"exported to <out>/<job-id>.xlsx. Combine with --inmem for a one-shot batch.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errUserRequired
			}
			ctx := cmd.Context()
			s, err := a.open(ctx, process)
			if err != nil {
				return err
			}
			results, stats, err := s.Service.IngestDirectory(ctx, userID, args[0], skipHidden)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", r.SourcePath, r.Err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d matched=%d stored=%d deduplicated=%d queued=%d failed=%d\n",
				stats.Scanned, stats.Matched, stats.Succeeded, stats.Deduplicated, stats.Enqueued, stats.Failed)
			if !process {
				return nil
			}

			n, err := drainQueue(ctx, s)
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d job(s)\n", n)
			if err != nil || outDir == "" {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, r := range results {
				if r.JobID == "" {
					continue
				}
				path := filepath.Join(outDir, r.JobID+".xlsx")
				if err := writeJobXLSX(ctx, s, r.JobID, path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "export %s (%s): %v\n", r.JobID, r.SourcePath, err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the ingested CVs")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
	cmd.Flags().BoolVar(&process, "process", false, "run the queued jobs before exiting")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for XLSX exports of processed jobs")
	return cmd
}

func writeJobXLSX(ctx context.Context, s *server.Stack, jobID, path string) error {
	b, err := s.Service.ExportProfileXLSX(ctx, jobID)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// drainQueue runs queued jobs until none are left.
func drainQueue(ctx context.Context, s *server.Stack) (int, error) {
	n := 0
	for ctx.Err() == nil {
		ran, err := s.Queue.ProcessNext(ctx)
		if err != nil {
			return n, err
		}
		if !ran {
			break
		}
		n++
	}
	return n, ctx.Err()
}
