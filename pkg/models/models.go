package models

import "time"

// CrawlTask is one site to crawl with its ordered candidate URLs.
type CrawlTask struct {
	SiteKey       string   `json:"site_key"`
	CandidateURLs []string `json:"candidate_urls"`
}

// VisitStatus is the terminal status of a visit.
type VisitStatus string

const (
	VisitSuccess VisitStatus = "success"
	VisitFailed  VisitStatus = "failed"
)

// Artifacts lists the files a visit wrote. Optional paths stay empty when
// the artifact was disabled or could not be exported.
type Artifacts struct {
	GraphPath      string `json:"graph_path"`
	TrafficPath    string `json:"traffic_path,omitempty"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// VisitResult is produced once per terminal (non-redirecting) navigation.
type VisitResult struct {
	Status      VisitStatus   `json:"status"`
	CapturedURL string        `json:"captured_url"`
	Artifacts   Artifacts     `json:"artifacts"`
	Redirects   []string      `json:"redirects,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// SiteOutcome is what the orchestrator reports for one site.
type SiteOutcome struct {
	SiteKey        string   `json:"site_key"`
	SuccessfulURLs []string `json:"successful_urls"`
	ValidationURLs []string `json:"validation_urls,omitempty"`
}

// WorkerState belongs to exactly one worker for its whole lifetime.
type WorkerState struct {
	Index       int
	ProxyPort   int
	CurrentTask *CrawlTask
}

// SiteResult is the per-site value of checkpoint and merged result files.
type SiteResult struct {
	SuccessfulURLs []string `json:"successful_urls"`
	ValidationURLs []string `json:"validation_urls,omitempty"`
	Error          string   `json:"error,omitempty"`
	Worker         int      `json:"worker"`
}

// ResultFile is the on-disk shape of checkpoints and merged results.
type ResultFile struct {
	RunID     string                `json:"run_id"`
	Country   string                `json:"country"`
	Category  string                `json:"category"`
	Worker    *int                  `json:"worker,omitempty"`
	Sequence  int                   `json:"sequence,omitempty"`
	WrittenAt time.Time             `json:"written_at"`
	Sites     map[string]SiteResult `json:"sites"`
}
