package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
)

// handleDiscoverEmails handles the discover_emails tool
func (s *Server) handleDiscoverEmails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := request.GetString("domain", "")
	if input == "" {
		return mcp.NewToolResultError("domain parameter is required"), nil
	}
	if _, err := parse.SeedURL(input); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid domain: %v", err)), nil
	}
	domain := parse.BareDomain(input)

	job, created := s.jobManager.CreateJob(domain)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A discovery is already in progress for this domain",
			"job_id":  job.ID,
			"domain":  domain,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runJob(job.ID, input)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Discovery started successfully",
		"job_id":  job.ID,
		"domain":  domain,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, errResult := s.lookupJob(request)
	if errResult != nil {
		return errResult, nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"domain":     job.Domain,
		"step":       job.Status.Step,
		"progress":   job.Status.Progress,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	if job.Status.Message != "" {
		result["message"] = job.Status.Message
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
		result["outcome"] = job.Outcome
		result["found_count"] = job.FoundCount
		result["generated_count"] = job.GeneratedCount
		result["record_count"] = len(job.Records)
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobResults handles the get_job_results tool
func (s *Server) handleGetJobResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, errResult := s.lookupJob(request)
	if errResult != nil {
		return errResult, nil
	}
	if job.Running() {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' is still running (step: %s, progress: %d%%)", job.ID, job.Status.Step, job.Status.Progress)), nil
	}

	minConfidence := request.GetInt("min_confidence", 0)
	validOnly := request.GetBool("valid_only", false)

	records := make([]models.Record, 0, len(job.Records))
	for _, r := range job.Records {
		if validOnly && !r.IsValid {
			continue
		}
		if r.Confidence < minConfidence {
			continue
		}
		records = append(records, r)
	}

	result := map[string]interface{}{
		"job_id":        job.ID,
		"domain":        job.Domain,
		"outcome":       job.Outcome,
		"urls":          job.URLs,
		"records":       records,
		"total_records": len(job.Records),
		"returned":      len(records),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStopJob handles the stop_job tool
func (s *Server) handleStopJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, errResult := s.lookupJob(request)
	if errResult != nil {
		return errResult, nil
	}

	status, message := "stopping", "Stop requested; results completed so far are kept"
	if !s.jobManager.StopJob(job.ID) {
		status, message = "not_running", "Job already finished"
	}
	result := map[string]interface{}{
		"job_id":  job.ID,
		"status":  status,
		"message": message,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.jobManager.ListJobs()
	summaries := make([]map[string]interface{}, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, map[string]interface{}{
			"job_id":     j.ID,
			"domain":     j.Domain,
			"step":       j.Status.Step,
			"progress":   j.Status.Progress,
			"started_at": j.StartedAt.Format(time.RFC3339),
		})
	}
	result := map[string]interface{}{
		"jobs":  summaries,
		"total": len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runJob runs a discovery job in the background
func (s *Server) runJob(jobID, domain string) {
	ctx, stop, ok := s.jobManager.runHandles(jobID)
	if !ok {
		return
	}
	observer := pipeline.ObserverFunc(func(e models.Event) { s.jobManager.ApplyEvent(jobID, e) })

	res := s.cfg.Runner.RunDomain(ctx, jobID, domain, stop, observer)
	s.jobManager.Finish(jobID, res.Report, res.Err)
	s.log.WithField("job_id", jobID).Infof("Job finished: %s", res.Report.Outcome)
}

func (s *Server) lookupJob(request mcp.CallToolRequest) (Job, *mcp.CallToolResult) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return Job{}, mcp.NewToolResultError("job_id parameter is required")
	}
	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return Job{}, mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID))
	}
	return job, nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
