package constants

// Slash commands understood by both transports.
const (
	CommandStart     = "start"
	CommandHelp      = "help"
	CommandStatus    = "status"
	CommandJobs      = "jobs"
	CommandSchedule  = "schedule"
	CommandCancel    = "cancel"
	CommandWorkspace = "workspace"
	CommandSave      = "save"
	CommandMemory    = "memory"
	CommandForget    = "forget"
	CommandClear     = "clear"
)

// BotCommand is a command advertised in the Telegram menu.
type BotCommand struct {
	Name        string
	Description string
}

// BotCommands is the Telegram command menu, in display order.
var BotCommands = []BotCommand{
	{CommandStart, "Welcome message"},
	{CommandStatus, "System status"},
	{CommandJobs, "List scheduled tasks"},
	{CommandSchedule, "Create a scheduled task"},
	{CommandCancel, "Cancel a scheduled task"},
	{CommandWorkspace, "List generated files"},
	{CommandSave, "Save the last code block"},
	{CommandMemory, "Show remembered notes"},
	{CommandClear, "Clear chat history"},
	{CommandHelp, "Show commands"},
}
