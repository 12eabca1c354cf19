package commands

import (
	"fmt"
	"strings"

	"github.com/pilobster/pilobster/internal/constants"
)

// maxStatusFires bounds the fire lines shown in status.
const maxStatusFires = 5

// FormatStatus renders a status view for chat.
func FormatStatus(st Status) string {
	var b strings.Builder
	b.WriteString(constants.MsgStatusHeader)
	fmt.Fprintf(&b, constants.MsgStatusModel, st.Model)
	if st.Host != "" {
		fmt.Fprintf(&b, constants.MsgStatusHost, st.Host)
	}
	if st.ContextLength > 0 {
		fmt.Fprintf(&b, constants.MsgStatusContext, st.ContextLength)
	}
	if st.ModelStatus != "" {
		fmt.Fprintf(&b, constants.MsgStatusOllama, st.ModelStatus)
	}
	fmt.Fprintf(&b, constants.MsgStatusUptime, st.Uptime)
	fmt.Fprintf(&b, constants.MsgStatusJobs, st.ActiveJobs)
	fmt.Fprintf(&b, constants.MsgStatusFiles, st.WorkspaceFiles)
	fmt.Fprintf(&b, constants.MsgStatusSessions, st.Sessions)
	if st.SchedulerState != "" {
		fmt.Fprintf(&b, constants.MsgStatusScheduler, st.SchedulerState)
	}

	if len(st.RecentFires) > 0 {
		b.WriteString(constants.MsgStatusRecentHead)
		for i, f := range st.RecentFires {
			if i == maxStatusFires {
				break
			}
			fmt.Fprintf(&b, constants.MsgStatusRecentLine, f.JobID, f.Status, f.Tick)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
