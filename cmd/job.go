package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/config"
	"github.com/nikogura/resume-forge/pkg/jobs"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	jobID         string
	jobTitle      string
	jobCompany    string
	jobLocation   string
	jobSalary     string
	jobApplicants string
)

//nolint:gochecknoglobals // Cobra boilerplate
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage stored job postings",
}

//nolint:gochecknoglobals // Cobra boilerplate
var jobAddCmd = &cobra.Command{
	Use:   "add <file-or-url>",
	Short: "Store a job posting",
	Long: `Store a job posting so it can be tailored against.

The posting can be a text or HTML file, or an http(s) URL. HTML is reduced to the
posting's main text.

Example:
  resume-forge job add jd.txt --id acme-sre --title "Staff SRE" --company "Acme"
  resume-forge job add https://example.com/jobs/123 --title "SRE" --company "Acme" --salary "$200k-$240k"`,
	Args: cobra.ExactArgs(1),
	RunE: runJobAdd,
}

//nolint:gochecknoglobals // Cobra boilerplate
var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Print a stored job posting",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobShow,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobAddCmd, jobShowCmd)

	jobAddCmd.Flags().StringVar(&jobID, "id", "", "Job id (generated when omitted)")
	jobAddCmd.Flags().StringVar(&jobTitle, "title", "", "Role title")
	jobAddCmd.Flags().StringVar(&jobCompany, "company", "", "Company name")
	jobAddCmd.Flags().StringVar(&jobLocation, "location", "", "Location")
	jobAddCmd.Flags().StringVar(&jobSalary, "salary", "", "Salary range")
	jobAddCmd.Flags().StringVar(&jobApplicants, "applicants", "", "Applicant competition signal, e.g. \"over 200 applicants\"")
	_ = jobAddCmd.MarkFlagRequired("title")
	_ = jobAddCmd.MarkFlagRequired("company")
}

func runJobAdd(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	var cfg config.Config
	cfg, err = config.Load(getConfigFile())
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return err
	}

	input := args[0]

	var description string
	description, err = jobs.Fetch(ctx, input)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(jobID)
	if id == "" {
		id = firstNonEmpty(jobs.Slug(jobCompany), "job") + "-" + uuid.NewString()[:8]
	}

	job := jobs.JobRecord{
		ID:              id,
		Title:           jobTitle,
		Company:         jobCompany,
		Location:        jobLocation,
		Description:     description,
		SalaryRange:     jobSalary,
		ApplicantSignal: jobApplicants,
		CompanySlug:     jobs.Slug(jobCompany),
		CreatedAt:       time.Now().UTC(),
	}

	parsedURL, urlErr := url.Parse(input)
	if urlErr == nil && (parsedURL.Scheme == "http" || parsedURL.Scheme == "https") {
		job.URL = input
	}

	err = jobs.NewFileRepository(cfg.DataDir).Put(job)
	if err != nil {
		return err
	}

	logger.Debug("stored job", zap.String("job_id", id), zap.Int("description_chars", len(description)))
	fmt.Printf("Stored job %s (%s at %s)\n", id, job.Title, job.Company)

	return err
}

func runJobShow(cmd *cobra.Command, args []string) (err error) {
	var cfg config.Config
	cfg, err = config.Load(getConfigFile())
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return err
	}

	var job jobs.JobRecord
	job, err = jobs.NewFileRepository(cfg.DataDir).Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", job.ID)
	fmt.Printf("Title:    %s\n", job.Title)
	fmt.Printf("Company:  %s\n", job.Company)
	if job.Location != "" {
		fmt.Printf("Location: %s\n", job.Location)
	}
	if job.SalaryRange != "" {
		fmt.Printf("Salary:   %s\n", job.SalaryRange)
	}
	if job.ApplicantSignal != "" {
		fmt.Printf("Signal:   %s\n", job.ApplicantSignal)
	}
	if job.URL != "" {
		fmt.Printf("URL:      %s\n", job.URL)
	}
	fmt.Printf("\n%s\n", job.Description)

	return err
}
