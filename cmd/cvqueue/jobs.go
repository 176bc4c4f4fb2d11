package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-extractor/internal/extract"
	"github.com/joseph-ayodele/cv-extractor/internal/server"
)

func enqueueCmd(a *app) *cobra.Command {
	var userID, file, ref string
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a CV for extraction, from a text file or a stored source ref",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errUserRequired
			}
			if (file == "") == (ref == "") {
				return fmt.Errorf("exactly one of --file or --ref is required")
			}
			req := server.EnqueueRequest{UserID: userID, SourceRef: ref}
			if file != "" {
				text, err := extract.ReadTextFile(file)
				if err != nil {
					return err
				}
				req.Text, req.Filename = text, filepath.Base(file)
			}
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			res, err := s.Service.Enqueue(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the job")
	cmd.Flags().StringVar(&file, "file", "", "path of a CV text file")
	cmd.Flags().StringVar(&ref, "ref", "", "ref of already stored text")
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job with its live queue position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			job, err := s.Service.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, job)
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			jobs, err := s.Service.ListJobs(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, jobs)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the jobs")
	return cmd
}

func cancelCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			ok, err := s.Service.Cancel(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("job %s was not cancelled: not queued or not owned by %q", args[0], userID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the job")
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts and average processing time for the stats window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			stats, err := s.Service.GetQueueStats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}

func workerCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued jobs one at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			s, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			if once {
				n, err := drainQueue(ctx, s)
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d job(s)\n", n)
				return err
			}
			if err := s.Queue.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "worker running, Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "process everything queued, then exit")
	return cmd
}
