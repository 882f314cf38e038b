// Package agent runs the conversation: it keeps the session history, calls the
// model and executes the tools it asks for until it answers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/config"
	"github.com/comigor/campbot/internal/llm"
	"github.com/comigor/campbot/internal/logger"
	"github.com/comigor/campbot/internal/session"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUpstream         = errors.New("upstream error")
	ErrUpstreamTimeout  = errors.New("upstream timeout")
	ErrToolLoopExceeded = errors.New("tool loop exceeded")
)

const emptyReply = "Désolé, je n'ai pas pu traiter votre demande."

// Loop states.
const (
	stateCallingModel   = "calling_model"
	stateExecutingTools = "executing_tools"
	stateDone           = "done"
	stateFailed         = "failed"
)

// Loop triggers.
const (
	triggerToolsRequested = "tools_requested"
	triggerAnswered       = "answered"
	triggerToolsExecuted  = "tools_executed"
	triggerFailed         = "failed"
)

// ToolExecutor runs tool calls on behalf of the model.
type ToolExecutor interface {
	Definitions() []chat.ToolDefinition
	Execute(ctx context.Context, call chat.ToolCall) chat.ToolResult
}

// Reply is the answer to one chat message.
type Reply struct {
	Text      string
	SessionID string
}

// Orchestrator is the main agent struct
type Orchestrator struct {
	model        llm.Model
	tools        ToolExecutor
	store        session.Store
	systemPrompt string
	contact      string
	window       int
	maxRounds    int
	modelTimeout time.Duration
	now          func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates a new Orchestrator.
func New(model llm.Model, tools ToolExecutor, store session.Store, cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:        model,
		tools:        tools,
		store:        store,
		systemPrompt: SystemPrompt(cfg.Business.Name, cfg.Business.ContactEmail),
		contact:      cfg.Business.ContactEmail,
		window:       cfg.LLM.HistoryWindow,
		maxRounds:    cfg.LLM.MaxToolRounds,
		modelTimeout: cfg.LLM.Timeout,
		now:          time.Now,
	}
	if cfg.LLM.SystemPrompt != "" {
		o.systemPrompt = cfg.LLM.SystemPrompt
		logger.L.Debug("Using system prompt from config")
	}
	if o.window <= 0 {
		o.window = 20
	}
	if o.maxRounds <= 0 {
		o.maxRounds = 8
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apology is the user-facing message for failures the conversation cannot
// recover from.
func (o *Orchestrator) Apology() string {
	return fmt.Sprintf("Désolé, une erreur s'est produite. Veuillez réessayer ou nous contacter à %s.", o.contact)
}

func (o *Orchestrator) loopFallback() string {
	return fmt.Sprintf("Désolé, je n'ai pas pu compléter votre demande. Veuillez reformuler ou nous contacter à %s.", o.contact)
}

// conversation is the history of one session as seen by a single Handle call.
type conversation struct {
	store   session.Store
	id      string
	history []chat.Turn
}

func (c *conversation) add(ctx context.Context, turns ...chat.Turn) error {
	if err := c.store.Append(ctx, c.id, turns...); err != nil {
		return fmt.Errorf("append to session %s: %w", c.id, err)
	}
	c.history = append(c.history, turns...)
	return nil
}

// Handle answers one user message. An empty or unknown sessionID starts a new
// session; the returned Reply always carries the id in use.
//
// When the model keeps asking for tools past the round limit, Handle stores
// and returns a fallback reply together with ErrToolLoopExceeded.
func (o *Orchestrator) Handle(ctx context.Context, message, sessionID string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{SessionID: sessionID}, ErrInvalidInput
	}

	conv, err := o.resolve(ctx, sessionID)
	if err != nil {
		return Reply{SessionID: sessionID}, err
	}
	reply := Reply{SessionID: conv.id}
	log := logger.L.With("session_id", conv.id)

	if err := conv.add(ctx, chat.UserTurn(message, o.now())); err != nil {
		return reply, err
	}

	text, loopErr := o.run(ctx, conv)
	switch {
	case errors.Is(loopErr, ErrToolLoopExceeded):
		log.Warn("tool loop cut off", "max_rounds", o.maxRounds)
		text = o.loopFallback()
	case loopErr != nil:
		log.Error("conversation failed", "error", loopErr)
		return reply, loopErr
	}

	if err := conv.add(ctx, chat.AssistantTurn(text, nil, o.now())); err != nil {
		return reply, err
	}
	reply.Text = text
	return reply, loopErr
}

func (o *Orchestrator) resolve(ctx context.Context, id string) (*conversation, error) {
	if id != "" {
		s, err := o.store.Get(ctx, id)
		switch {
		case err == nil:
			return &conversation{store: o.store, id: s.ID, history: s.Turns}, nil
		case !errors.Is(err, session.ErrNotFound):
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		logger.L.Info("unknown session, starting a new one", "requested_id", id)
	}
	s, err := o.store.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &conversation{store: o.store, id: s.ID, history: s.Turns}, nil
}

func newLoopMachine(sessionID string) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(stateCallingModel)
	fsm.Configure(stateCallingModel).
		Permit(triggerToolsRequested, stateExecutingTools).
		Permit(triggerAnswered, stateDone).
		Permit(triggerFailed, stateFailed)
	fsm.Configure(stateExecutingTools).
		Permit(triggerToolsExecuted, stateCallingModel).
		Permit(triggerFailed, stateFailed)
	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.L.Debug("FSM transition", "session_id", sessionID, "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})
	return fsm
}

// run drives the tool loop and returns the final reply text.
func (o *Orchestrator) run(ctx context.Context, conv *conversation) (string, error) {
	var (
		resp   *llm.Response
		rounds int
		runErr error
	)
	defs := o.tools.Definitions()
	fsm := newLoopMachine(conv.id)

	for {
		var trigger string
		switch fsm.MustState() {
		case stateCallingModel:
			resp, runErr = o.complete(ctx, defs, chat.Window(conv.history, o.window))
			switch {
			case runErr != nil:
				trigger = triggerFailed
			case len(resp.ToolCalls) == 0:
				trigger = triggerAnswered
			case rounds >= o.maxRounds:
				runErr = fmt.Errorf("%w: model still requesting tools after %d rounds", ErrToolLoopExceeded, rounds)
				trigger = triggerFailed
			default:
				trigger = triggerToolsRequested
			}

		case stateExecutingTools:
			rounds++
			results := make([]chat.ToolResult, 0, len(resp.ToolCalls))
			for _, call := range resp.ToolCalls {
				logger.L.Info("executing tool", "session_id", conv.id, "tool", call.Name, "call_id", call.ID, "round", rounds)
				results = append(results, o.tools.Execute(ctx, call))
			}
			now := o.now()
			runErr = conv.add(ctx,
				chat.AssistantTurn(strings.Join(resp.Texts, "\n"), resp.ToolCalls, now),
				chat.ToolTurn(results, now),
			)
			trigger = triggerToolsExecuted
			if runErr != nil {
				trigger = triggerFailed
			}

		case stateDone:
			text := strings.Join(resp.Texts, "\n")
			if strings.TrimSpace(text) == "" {
				text = emptyReply
			}
			return text, nil

		case stateFailed:
			return "", runErr

		default:
			return "", fmt.Errorf("tool loop in unexpected state %v", fsm.MustState())
		}

		if err := fsm.FireCtx(ctx, trigger); err != nil {
			return "", fmt.Errorf("tool loop: %w", err)
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context, defs []chat.ToolDefinition, view []chat.Turn) (*llm.Response, error) {
	if o.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.modelTimeout)
		defer cancel()
	}
	resp, err := o.model.Complete(ctx, llm.Request{System: o.systemPrompt, Tools: defs, Turns: view})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	for i := range resp.ToolCalls {
		resp.ToolCalls[i].Input = chat.CallInput(resp.ToolCalls[i].Input)
	}
	return resp, nil
}
