package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of periodic maintenance run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// validateJobs drops nil entries and rejects blank or repeated names, since
// names double as metric labels.
func validateJobs(jobs []Job) ([]Job, error) {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		name := strings.TrimSpace(job.Name())
		if name == "" {
			return nil, fmt.Errorf("job with empty name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("job %q registered twice", name)
		}
		seen[name] = struct{}{}
		out = append(out, job)
	}
	return out, nil
}
