package messages

import (
	"fmt"
	"strings"

	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/workspace"
)

// FormatWorkspace lists workspace files with their size.
func FormatWorkspace(files []workspace.FileInfo) string {
	if len(files) == 0 {
		return constants.MsgWorkspaceEmpty
	}

	lines := []string{constants.MsgWorkspaceHeader}
	for _, f := range files {
		lines = append(lines, fmt.Sprintf(constants.MsgWorkspaceLine, f.Name, float64(f.Size)/1024))
	}
	return strings.Join(lines, "\n")
}

func FormatSaved(name string) string {
	return fmt.Sprintf(constants.MsgSaved, name)
}

// FormatNotes shows the notes file content.
func FormatNotes(notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return constants.MsgNotesEmpty
	}
	return constants.MsgNotesHeader + notes
}
