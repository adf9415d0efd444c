package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"utiligee/internal/ee"
	"utiligee/internal/jobs"
)

// jobsCmd groups the export job commands
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect, wait for and cancel export jobs",
	Long: `Export jobs run on Earth Engine after fetch returns. Each subcommand
	takes the job id printed by fetch, either the full operation name or the
	bare task id.`,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show the current state of an export job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor, err := newMonitor(cmd)
		if err != nil {
			return err
		}
		job, err := monitor.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJobs(cmd.OutOrStdout(), []ee.Job{job})
		return nil
	},
}

var jobsWaitCmd = &cobra.Command{
	Use:     "wait [job_id]",
	Short:   "Poll an export job until it finishes",
	Args:    cobra.ExactArgs(1),
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor, err := newMonitor(cmd)
		if err != nil {
			return err
		}
		job, err := monitor.Wait(cmd.Context(), args[0], logProgress)
		if job.ID != "" {
			printJobs(cmd.OutOrStdout(), []ee.Job{job})
		}
		return err
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Request cancellation of an export job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor, err := newMonitor(cmd)
		if err != nil {
			return err
		}
		if err := monitor.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", args[0])
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List export jobs of the project",
	Args:    cobra.NoArgs,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor, err := newMonitor(cmd)
		if err != nil {
			return err
		}
		list, err := monitor.List(cmd.Context(), viper.GetBool("active"))
		if err != nil {
			return err
		}
		printJobs(cmd.OutOrStdout(), list)
		return nil
	},
}

func newMonitor(cmd *cobra.Command) (*jobs.Monitor, error) {
	session, err := newSession(cmd.Context(), nil)
	if err != nil {
		return nil, err
	}
	return jobs.NewMonitor(session, viper.GetDuration("pollInterval")), nil
}

func printJobs(w io.Writer, list []ee.Job) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Description", "State", "Progress", "Updated", "Error"})
	table.SetAutoWrapText(false)
	for _, job := range list {
		updated := ""
		if !job.UpdateTime.IsZero() {
			updated = job.UpdateTime.Local().Format(time.RFC3339)
		}
		table.Append([]string{
			job.ID,
			job.Description,
			string(job.State),
			fmt.Sprintf("%.0f%%", job.Progress*100),
			updated,
			strings.TrimSpace(job.Error),
		})
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsStatusCmd, jobsWaitCmd, jobsCancelCmd, jobsListCmd)

	jobsWaitCmd.Flags().Duration("pollInterval", jobs.DefaultPollInterval, "Time between status polls")
	jobsListCmd.Flags().Bool("active", false, "Only list jobs that have not finished")
}
