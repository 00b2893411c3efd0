package models

import (
	"time"
)

// TargetReport counts what happened to events pushed to one target
type TargetReport struct {
	Target   string   `json:"target"`
	Type     string   `json:"type"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Filtered int      `json:"filtered"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// SyncReport is the message published to NATS after each sync run
type SyncReport struct {
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	DryRun       bool            `json:"dry_run,omitempty"`
	Fetched      int             `json:"fetched"`
	Deduplicated int             `json:"deduplicated"`
	Targets      []*TargetReport `json:"targets"`
}

// Target returns the report entry for the named target, creating it if needed
func (r *SyncReport) Target(name, targetType string) *TargetReport {
	for _, t := range r.Targets {
		if t.Target == name {
			return t
		}
	}
	t := &TargetReport{Target: name, Type: targetType}
	r.Targets = append(r.Targets, t)
	return t
}

// Failed returns the total number of failed pushes across all targets
func (r *SyncReport) Failed() int {
	total := 0
	for _, t := range r.Targets {
		total += t.Failed
	}
	return total
}

// Duration returns how long the run took
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
