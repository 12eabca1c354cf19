package constants

// Chat command replies
const (
	MsgStart = "🦞 *PiLobster is online!*\n\n" +
		"I'm your local AI assistant.\n\n" +
		"Just send me a message to chat, or use:\n" +
		"/status — System status\n" +
		"/jobs — List scheduled tasks\n" +
		"/workspace — List generated files\n" +
		"/clear — Clear conversation history\n" +
		"/help — Show all commands"

	MsgHelp = "🦞 *PiLobster Commands*\n\n" +
		"/start — Welcome message\n" +
		"/status — System status\n" +
		"/jobs — List scheduled tasks\n" +
		"/schedule <cron> <prompt> — Create a task\n" +
		"/cancel <id> — Cancel a task\n" +
		"/workspace — List generated files\n" +
		"/save <file> — Save the last code block\n" +
		"/memory — Show remembered notes\n" +
		"/forget — Clear remembered notes\n" +
		"/clear — Clear chat history\n" +
		"/help — This message\n\n" +
		"*Natural Language:*\n" +
		"• Ask me to write code — I'll save it to the workspace\n" +
		"• Ask me to schedule something — I'll create a cron job\n" +
		"• Or just chat!"

	MsgUnauthorized = "Sorry, you are not authorized to use this bot."
	MsgCleared      = "🧹 Conversation history cleared."
	MsgThinkingFail = "Sorry, I had trouble thinking about that. Error: %v"
	MsgErrorFormat  = "❌ Error: %v"
)

// Scheduling replies
const (
	MsgJobScheduled     = "✅ Scheduled job #%d: %s\nSchedule: `%s`"
	MsgCronErrorsHeader = "⚠️ Cron job errors:"
	MsgCronErrorLine    = "• %s"
	MsgInvalidSchedule  = "❌ Invalid cron expression: %v\n\nCron format: `minute hour day month weekday`\nExample: `*/3 * * * *` (every 3 minutes)"
	MsgScheduleUsage    = "*Usage:* `/schedule <cron> <prompt>`\n\n" +
		"The prompt will be sent to me when the job triggers.\n\n" +
		"*Cron format:* `minute hour day month weekday`\n\n" +
		"*Examples:*\n" +
		"• `/schedule */3 * * * * Tell me a joke`\n" +
		"• `/schedule 0 9 * * * Give me a motivational quote`\n" +
		"• `/schedule 30 14 * * 1-5 Remind me to stand up`"
	MsgScheduleEmptyPrompt = "❌ Prompt cannot be empty.\nUsage: `/schedule <cron> <prompt>`"
	MsgCancelUsage         = "Usage: /cancel <job_id>"
	MsgJobIDNotNumber      = "Job ID must be a number."
	MsgJobCancelled        = "✅ Cancelled job #%d"
	MsgJobNotFound         = "Job #%d not found."
	MsgJobsHeader          = "🕐 *Scheduled Jobs*\n"
	MsgJobsLine            = "#%d — %s\n  Schedule: `%s`"
	MsgJobsEmpty           = "No scheduled jobs. Ask me to schedule something!"
	MsgScheduledPrefix     = "⏰ "
)

// Workspace replies
const (
	MsgSaved           = "💾 Saved `%s` to workspace"
	MsgSaveUsage       = "*Usage:* `/save filename.py`\n\nThis will save the last code block from my response."
	MsgSaveNoCode      = "❌ No code blocks found in recent conversation. Ask me to write some code first!"
	MsgWorkspaceHeader = "📁 *Workspace Files*\n"
	MsgWorkspaceLine   = "`%s` (%.1f KB)"
	MsgWorkspaceEmpty  = "Workspace is empty. Ask me to write some code!"
	MsgNoted           = "🧠 Noted."
	MsgNotesHeader     = "🧠 *Notes*\n\n"
	MsgNotesEmpty      = "I haven't been asked to remember anything yet."
	MsgNotesCleared    = "🧠 Notes cleared."
)

// Status
const (
	MsgStatusHeader     = "🦞 *PiLobster Status*\n\n"
	MsgStatusModel      = "Model: `%s`\n"
	MsgStatusHost       = "Host: `%s`\n"
	MsgStatusContext    = "Context: `%d` tokens\n"
	MsgStatusUptime     = "Uptime: `%s`\n"
	MsgStatusJobs       = "Scheduled jobs: `%d`\n"
	MsgStatusFiles      = "Workspace files: `%d`\n"
	MsgStatusSessions   = "Sessions: `%d`\n"
	MsgStatusScheduler  = "Scheduler: `%s`\n"
	MsgStatusOllama     = "Ollama: `%s`\n"
	MsgStatusRecentHead = "\nRecent fires:\n"
	MsgStatusRecentLine = "#%d %s at %s\n"
)

// CLI messages
const (
	MsgConfigLoadError       = "❌ Failed to load configuration: %v\n"
	MsgConfigValidationError = "❌ Configuration validation failed:\n"
	MsgConfigValid           = "✅ Configuration loaded"
	MsgConfigValidatePrefix  = "  - %v\n"
	MsgConfigWritten         = "✅ Wrote default configuration to %s\n"

	MsgJobAdded        = "✅ Job added successfully\n"
	MsgJobID           = "   ID:       %d\n"
	MsgJobSchedule     = "   Schedule: %s\n"
	MsgJobTask         = "   Task:     %s\n"
	MsgJobActivateNote = "\nNote: start 'pilobster serve' to activate this job\n"
	MsgJobsTotal       = "Total: %d job(s)\n"
	MsgJobsNotFound    = "No scheduled jobs found."
)

// Telegram
const (
	MsgTelegramStartup = "📱 Initializing Telegram connector"
	MsgTelegramOnline  = "🦞 PiLobster is online and ready!"
)
