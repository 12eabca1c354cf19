package messages

import (
	"fmt"
	"strings"

	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/store"
)

// FormatJobScheduled confirms a new job.
func FormatJobScheduled(job store.Job) string {
	return fmt.Sprintf(constants.MsgJobScheduled, job.ID, job.Task, job.Schedule)
}

// FormatJobs renders the job list, or a hint when there are none.
func FormatJobs(jobs []store.Job) string {
	if len(jobs) == 0 {
		return constants.MsgJobsEmpty
	}

	lines := []string{constants.MsgJobsHeader}
	for _, job := range jobs {
		lines = append(lines, fmt.Sprintf(constants.MsgJobsLine, job.ID, job.Task, job.Schedule))
	}
	return strings.Join(lines, "\n")
}

// FormatScheduled prefixes fire output for display.
func FormatScheduled(text string) string {
	return constants.MsgScheduledPrefix + text
}
