package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pilobster/pilobster/internal/agent"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/messages"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/registry"
	"github.com/pilobster/pilobster/internal/schedule"
	"github.com/pilobster/pilobster/internal/store"
	"github.com/pilobster/pilobster/internal/workspace"
)

// saveLookback is how many recent turns /save searches for code.
const saveLookback = 10

// Chatter answers interactive messages.
type Chatter interface {
	Chat(ctx context.Context, lineage, text string) (agent.Reply, error)
}

// Conversations is the part of memory.Memory the router uses.
type Conversations interface {
	Reset(ctx context.Context, key string) error
	History(ctx context.Context, key string, limit int) ([]memory.Turn, error)
}

// Request is one inbound user message.
type Request struct {
	Lineage string
	Kind    registry.Kind
	Text    string
}

// Router dispatches slash commands and sends everything else to chat.
type Router struct {
	svc       *Service
	chat      Chatter
	convs     Conversations
	workspace *workspace.Workspace
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRouter wires the router. m may be nil.
func NewRouter(svc *Service, chat Chatter, convs Conversations, ws *workspace.Workspace, log *logger.Logger, m *metrics.Metrics) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		svc:       svc,
		chat:      chat,
		convs:     convs,
		workspace: ws,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// Handle returns the replies for req, in display order. The error is only
// non-nil when nothing useful could be said at all.
func (r *Router) Handle(ctx context.Context, req Request) ([]string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, nil
	}

	if cmd, args, ok := parseCommand(text); ok {
		if replies, handled := r.command(ctx, req, cmd, args); handled {
			return replies, nil
		}
	}
	return r.converse(ctx, req, text), nil
}

// parseCommand splits "/cmd@bot a b" into ("cmd", ["a", "b"]).
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:], true
}

func (r *Router) command(ctx context.Context, req Request, cmd string, args []string) ([]string, bool) {
	var reply string
	switch cmd {
	case constants.CommandStart:
		reply = constants.MsgStart
	case constants.CommandHelp:
		reply = constants.MsgHelp
	case constants.CommandStatus:
		reply = r.status(ctx)
	case constants.CommandJobs:
		reply = r.jobs(ctx)
	case constants.CommandSchedule:
		reply = r.schedule(ctx, req, args)
	case constants.CommandCancel:
		reply = r.cancel(ctx, args)
	case constants.CommandWorkspace:
		reply = r.listWorkspace()
	case constants.CommandSave:
		reply = r.save(ctx, req, args)
	case constants.CommandMemory:
		reply = r.notes()
	case constants.CommandForget:
		reply = r.forget()
	case constants.CommandClear:
		reply = r.clear(ctx, req)
	default:
		return nil, false
	}

	r.logger.DebugCtx(ctx, "command handled",
		logger.Field{Key: "command", Value: cmd},
		logger.Field{Key: "lineage", Value: req.Lineage})
	return []string{reply}, true
}

func (r *Router) status(ctx context.Context) string {
	st, err := r.svc.Status(ctx)
	if err != nil {
		r.logger.ErrorCtx(ctx, "failed to get status", err)
		return messages.FormatError(err)
	}
	return FormatStatus(st)
}

func (r *Router) jobs(ctx context.Context) string {
	jobs, err := r.svc.ListJobs(ctx)
	if err != nil {
		r.logger.ErrorCtx(ctx, "failed to list jobs", err)
		return messages.FormatError(err)
	}
	return messages.FormatJobs(jobs)
}

func (r *Router) schedule(ctx context.Context, req Request, args []string) string {
	if len(args) < 5 {
		return constants.MsgScheduleUsage
	}
	prompt := strings.Join(args[5:], " ")
	if prompt == "" {
		return constants.MsgScheduleEmptyPrompt
	}

	job, err := r.svc.CreateSchedule(ctx, ScheduleRequest{
		Schedule: strings.Join(args[:5], " "),
		Message:  prompt,
		Creator:  req.Lineage,
	})
	if err != nil {
		var invalid *schedule.InvalidScheduleError
		if errors.As(err, &invalid) {
			return fmt.Sprintf(constants.MsgInvalidSchedule, err)
		}
		return messages.FormatError(err)
	}
	return messages.FormatJobScheduled(job)
}

func (r *Router) cancel(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return constants.MsgCancelUsage
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return constants.MsgJobIDNotNumber
	}

	if err := r.svc.CancelJob(ctx, id); err != nil {
		var notFound *store.JobNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Sprintf(constants.MsgJobNotFound, id)
		}
		r.logger.ErrorCtx(ctx, "failed to cancel job", err, logger.Field{Key: "job_id", Value: id})
		return messages.FormatError(err)
	}
	return fmt.Sprintf(constants.MsgJobCancelled, id)
}

func (r *Router) listWorkspace() string {
	files, err := r.workspace.List()
	if err != nil {
		return messages.FormatError(err)
	}
	return messages.FormatWorkspace(files)
}

// save writes the last code block of the most recent assistant turn that
// has one.
func (r *Router) save(ctx context.Context, req Request, args []string) string {
	if len(args) == 0 {
		return constants.MsgSaveUsage
	}

	turns, err := r.convs.History(ctx, req.Lineage, saveLookback)
	if err != nil {
		return messages.FormatError(err)
	}

	var code string
	for i := len(turns) - 1; i >= 0 && code == ""; i-- {
		if turns[i].Role != memory.RoleAssistant {
			continue
		}
		if blocks := agent.CodeBlocks(turns[i].Content); len(blocks) > 0 {
			code = blocks[len(blocks)-1].Content
		}
	}
	if code == "" {
		return constants.MsgSaveNoCode
	}

	name, err := r.workspace.Save(ctx, args[0], code, "saved with /save")
	if err != nil {
		r.logger.ErrorCtx(ctx, "failed to save code block", err)
		return messages.FormatError(err)
	}
	return messages.FormatSaved(name)
}

func (r *Router) notes() string {
	notes, err := r.workspace.Notes().Read()
	if err != nil {
		return messages.FormatError(err)
	}
	return messages.FormatNotes(notes)
}

func (r *Router) forget() string {
	if err := r.workspace.Notes().Clear(); err != nil {
		return messages.FormatError(err)
	}
	return constants.MsgNotesCleared
}

func (r *Router) clear(ctx context.Context, req Request) string {
	if err := r.convs.Reset(ctx, req.Lineage); err != nil {
		r.logger.ErrorCtx(ctx, "failed to clear history", err, logger.Field{Key: "lineage", Value: req.Lineage})
		return messages.FormatError(err)
	}
	return constants.MsgCleared
}

// converse runs a chat turn and carries out the blocks in the reply. Action
// confirmations come before the reply text.
func (r *Router) converse(ctx context.Context, req Request, text string) []string {
	reply, err := r.chat.Chat(ctx, req.Lineage, text)
	if err != nil {
		r.metrics.RecordChat(string(req.Kind), "error")
		return []string{fmt.Sprintf(constants.MsgThinkingFail, err)}
	}
	r.metrics.RecordChat(string(req.Kind), "ok")

	out := r.applyBlocks(ctx, req, reply.Blocks)
	if reply.Text != "" {
		out = append(out, reply.Text)
	}
	return out
}

func (r *Router) applyBlocks(ctx context.Context, req Request, blocks agent.Blocks) []string {
	var out []string

	cronErrs := append([]error(nil), blocks.CronErrors...)
	for _, c := range blocks.Cron {
		job, err := r.svc.CreateSchedule(ctx, ScheduleRequest{
			Schedule: c.Schedule,
			Message:  c.Message,
			Task:     c.Task,
			Scope:    c.Scope,
			Creator:  req.Lineage,
		})
		if err != nil {
			cronErrs = append(cronErrs, err)
			continue
		}
		out = append(out, messages.FormatJobScheduled(job))
	}
	if len(cronErrs) > 0 {
		out = append(out, messages.FormatCronErrors(cronErrs))
	}

	for _, s := range blocks.Saves {
		name, err := r.workspace.Save(ctx, s.Filename, s.Content, "saved from chat")
		if err != nil {
			r.logger.ErrorCtx(ctx, "failed to save block", err, logger.Field{Key: "filename", Value: s.Filename})
			out = append(out, messages.FormatError(err))
			continue
		}
		out = append(out, messages.FormatSaved(name))
	}

	if len(blocks.Memory) > 0 {
		noted := false
		for _, facts := range blocks.Memory {
			if err := r.workspace.Notes().Append(facts, r.now()); err != nil {
				r.logger.ErrorCtx(ctx, "failed to append notes", err)
				continue
			}
			noted = true
		}
		if noted {
			out = append(out, constants.MsgNoted)
		}
	}
	return out
}
