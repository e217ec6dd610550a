package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/varopt/internal/server"
	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries a running "varopt serve" for job information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), base+"/api/v1/jobs")
	}
	jobID := args[0]
	return getJobStatus(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs/%s", base, jobID), jobID)
}

func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tBACKEND\tEVALS\tMERIT")
	for _, job := range jobs {
		name := job.Config.Name
		if name == "" {
			name = "job"
		}
		merit := "-"
		if job.Evaluations > 0 {
			merit = fmt.Sprintf("%g", job.BestMerit)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(job.ID), name, job.State, job.Backend, job.Evaluations, merit)
	}
	return w.Flush()
}

// jobStatus mirrors the status document served for a single job.
type jobStatus struct {
	server.Job
	Name    string  `json:"name"`
	Elapsed float64 `json:"elapsed"`
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobStatus
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "Name: %s\n", status.Name)
	fmt.Fprintf(out, "State: %s\n", status.State)
	if status.Backend != "" {
		fmt.Fprintf(out, "Backend: %s\n", status.Backend)
	}
	fmt.Fprintf(out, "Evaluations: %d\n", status.Evaluations)
	if status.Evaluations > 0 {
		fmt.Fprintf(out, "Merit: %g -> %g\n", status.InitialMerit, status.BestMerit)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.RunID != "" {
		fmt.Fprintf(out, "Run: %s\n", status.RunID)
	}

	if len(status.Values) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tKIND\tVALUE")
		for _, v := range status.Values {
			fmt.Fprintf(w, "%s\t%s\t%v\n", v.Path, v.Kind, v.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}
	return nil
}
