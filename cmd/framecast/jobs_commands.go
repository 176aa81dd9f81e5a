package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/framecast/framecast-agent/internal/api"
)

func newJobsCommand(addrFlag, tokenFlag *string) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage export jobs on the agent",
	}

	jobsCmd.AddCommand(newJobsSubmitCommand(addrFlag, tokenFlag))
	jobsCmd.AddCommand(newJobsListCommand(addrFlag, tokenFlag))
	jobsCmd.AddCommand(newJobsShowCommand(addrFlag, tokenFlag))
	jobsCmd.AddCommand(newJobsCancelCommand(addrFlag, tokenFlag))

	return jobsCmd
}

func newJobsSubmitCommand(addrFlag, tokenFlag *string) *cobra.Command {
	var outputFlag string
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "submit <project.json>",
		Short: "Queue an export on the agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAgentClient(*addrFlag, *tokenFlag)
			if err != nil {
				return err
			}
			jobID, err := client.submit(api.CreateExportRequest{
				ProjectPath: args[0],
				OutputPath:  outputFlag,
				Format:      formatFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file path")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Override output format (mp4 or gif)")

	return cmd
}

func newJobsListCommand(addrFlag, tokenFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List export jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAgentClient(*addrFlag, *tokenFlag)
			if err != nil {
				return err
			}
			jobs, err := client.listJobs()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No export jobs")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tFORMAT\tPROJECT")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\n",
					j.ID, j.Status, j.Progress, j.Format, j.ProjectPath)
			}
			return w.Flush()
		},
	}
}

func newJobsShowCommand(addrFlag, tokenFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one export job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAgentClient(*addrFlag, *tokenFlag)
			if err != nil {
				return err
			}
			job, err := client.getJob(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", job.ID)
			fmt.Fprintf(out, "Status:   %s\n", job.Status)
			fmt.Fprintf(out, "Progress: %.1f%%\n", job.Progress)
			fmt.Fprintf(out, "Format:   %s\n", job.Format)
			fmt.Fprintf(out, "Project:  %s\n", job.ProjectPath)
			if job.OutputPath != "" {
				fmt.Fprintf(out, "Output:   %s\n", job.OutputPath)
			}
			if job.Phase != "" {
				fmt.Fprintf(out, "Phase:    %s\n", job.Phase)
			}
			if job.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", job.Error)
			}
			for _, w := range job.Warnings {
				fmt.Fprintf(out, "Warning:  %s\n", w)
			}
			return nil
		},
	}
}

func newJobsCancelCommand(addrFlag, tokenFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running export job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAgentClient(*addrFlag, *tokenFlag)
			if err != nil {
				return err
			}
			if err := client.cancelJob(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancel requested")
			return nil
		},
	}
}
