package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/pkg/logger"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

const moduleName = "agents"

// flushTimeout bounds the final write of a run's turns.
const flushTimeout = 10 * time.Second

// Reasoner decides the next action from the history and the available tools.
type Reasoner interface {
	Next(ctx context.Context, history []*entity.ConversationTurn, tools []*tools.ToolSpec) (*entity.Action, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, history []*entity.ConversationTurn, tools []*tools.ToolSpec) (*entity.Action, error)

func (f ReasonerFunc) Next(ctx context.Context, history []*entity.ConversationTurn, specs []*tools.ToolSpec) (*entity.Action, error) {
	return f(ctx, history, specs)
}

// ToolDispatcher is the part of the tool registry the loop needs.
type ToolDispatcher interface {
	List() []*tools.ToolSpec
	Get(name string) (*tools.ToolSpec, bool)
	Dispatch(ctx context.Context, req *tools.ToolCallRequest) (*tools.ToolCallResult, error)
}

// Observer is notified after every dispatched step.
type Observer interface {
	OnStep(step entity.Step)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step entity.Step)

func (f ObserverFunc) OnStep(step entity.Step) { f(step) }

// RunRequest is the input to Loop.Run.
type RunRequest struct {
	Prompt string
	// SessionID continues a session; empty starts a new one.
	SessionID string
	// ActorID identifies the end user. Empty continues an existing session as
	// its owner and gets a generated id on a new one.
	ActorID       string
	PrincipalTags []string
	Observer      Observer
}

// RunResult is the outcome of a successful run.
type RunResult struct {
	Answer    string        `json:"answer"`
	SessionID string        `json:"session_id"`
	ActorID   string        `json:"actor_id"`
	Steps     []entity.Step `json:"steps"`
}

// LoopConfig holds the limits of a run.
type LoopConfig struct {
	// MaxSteps is the number of tool dispatches allowed per run.
	MaxSteps int
	// RunTimeout bounds a whole run including lease wait; 0 means none.
	RunTimeout time.Duration
	// HistoryLimit keeps only the most recent turns of a session; 0 keeps all.
	HistoryLimit int
}

// Loop drives the reason, dispatch, observe cycle for one request at a time per session.
//
// Execution flow:
//  1. Acquire the session lease
//  2. Load history, check the session belongs to the actor and append the USER turn
//  3. Ask the reasoner; a FINAL action ends the run
//  4. Dispatch a TOOL_CALL through the registry and fold the result back as a TOOL turn
//  5. Persist the run's turns once, whatever the exit path
type Loop struct {
	reasoner Reasoner
	tools    ToolDispatcher
	memory   repo.MemoryRepository
	locks    *SessionLocks
	cfg      LoopConfig
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	ac      *AbortController
	actorID string
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithClock replaces the clock used for turn timestamps and generated ids.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

// WithSessionLocks shares a lease table between loops.
func WithSessionLocks(locks *SessionLocks) LoopOption {
	return func(l *Loop) { l.locks = locks }
}

func NewLoop(reasoner Reasoner, dispatcher ToolDispatcher, memory repo.MemoryRepository, cfg LoopConfig, opts ...LoopOption) (*Loop, error) {
	switch {
	case reasoner == nil:
		return nil, errors.New("loop requires a reasoner")
	case dispatcher == nil:
		return nil, errors.New("loop requires a tool dispatcher")
	case memory == nil:
		return nil, errors.New("loop requires a memory repository")
	case cfg.MaxSteps <= 0:
		return nil, fmt.Errorf("max steps must be positive, got %d", cfg.MaxSteps)
	case cfg.RunTimeout < 0 || cfg.HistoryLimit < 0:
		return nil, errors.New("run timeout and history limit must not be negative")
	}
	l := &Loop{
		reasoner: reasoner,
		tools:    dispatcher,
		memory:   memory,
		locks:    NewSessionLocks(),
		cfg:      cfg,
		now:      time.Now,
		active:   make(map[string]*activeRun),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Config returns the limits the loop was built with.
func (l *Loop) Config() LoopConfig {
	return l.cfg
}

// Run answers one prompt. Tool failures are folded into the history and never
// end the run; the run fails only on cancellation, deadline, step budget,
// reasoner failure or a memory error.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errno.ErrEmptyPrompt
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = NewSessionID(l.now())
	}

	ac := NewAbortController(ctx, sessionID, l.cfg.RunTimeout)
	defer ac.CleanUp()
	runCtx := ac.Context()

	release, err := l.locks.Lock(runCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrSessionBusy, ac.Err())
	}
	defer release()

	history, err := l.memory.List(runCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", sessionID, err)
	}
	actorID := req.ActorID
	if owner := sessionOwner(history); owner != "" {
		if actorID != "" && actorID != owner {
			logger.WarnX(moduleName, "actor %s refused on session %s owned by %s", actorID, sessionID, owner)
			return nil, fmt.Errorf("%w: %s", errno.ErrSessionForbidden, sessionID)
		}
		actorID = owner
	}
	if actorID == "" {
		actorID = NewActorID(l.now())
	}

	l.track(sessionID, &activeRun{ac: ac, actorID: actorID})
	defer l.untrack(sessionID)

	if n := l.cfg.HistoryLimit; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	state := &entity.LoopState{SessionID: sessionID, ActorID: actorID}
	result := &RunResult{SessionID: sessionID, ActorID: actorID, Steps: []entity.Step{}}
	c := caller.Context{ActorID: actorID, SessionID: sessionID, PrincipalTags: slices.Clone(req.PrincipalTags)}

	state.Append(entity.NewUserTurn(sessionID, actorID, prompt, l.now()))
	runErr := l.iterate(ac, history, state, result, c, req.Observer)
	flushErr := l.flush(ctx, state)

	if runErr != nil {
		logger.WarnX(moduleName, "run on session %s stopped after %d steps: %v", sessionID, state.StepsTaken, runErr)
		return nil, runErr
	}
	if flushErr != nil {
		return nil, flushErr
	}
	logger.InfoX(moduleName, "run on session %s finished after %d steps", sessionID, state.StepsTaken)
	return result, nil
}

// Abort cancels the run in progress on sessionID. A non-empty actorID must
// own the session.
func (l *Loop) Abort(sessionID, actorID string) error {
	l.mu.Lock()
	run, ok := l.active[sessionID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", errno.ErrNoActiveRun, sessionID)
	}
	if actorID != "" && actorID != run.actorID {
		return fmt.Errorf("%w: %s", errno.ErrSessionForbidden, sessionID)
	}
	run.ac.Abort()
	return nil
}

// track is called with the session lease held, so a session has at most one entry.
func (l *Loop) track(sessionID string, run *activeRun) {
	l.mu.Lock()
	l.active[sessionID] = run
	l.mu.Unlock()
}

func (l *Loop) untrack(sessionID string) {
	l.mu.Lock()
	delete(l.active, sessionID)
	l.mu.Unlock()
}

// sessionOwner is the actor of the earliest turn that names one.
func sessionOwner(history []*entity.ConversationTurn) string {
	for _, t := range history {
		if t.ActorID != "" {
			return t.ActorID
		}
	}
	return ""
}

func (l *Loop) iterate(ac *AbortController, history []*entity.ConversationTurn, state *entity.LoopState,
	result *RunResult, c caller.Context, observer Observer) error {
	ctx := ac.Context()
	specs := l.tools.List()
	history = slices.Clip(history)

	for state.StepsTaken < l.cfg.MaxSteps {
		if err := ac.Err(); err != nil {
			return err
		}
		action, err := l.reasoner.Next(ctx, append(history, state.Turns...), specs)
		if err != nil {
			if aerr := ac.Err(); aerr != nil {
				return aerr
			}
			return fmt.Errorf("%w: %w", errno.ErrReasoner, err)
		}
		if action == nil {
			return fmt.Errorf("%w: no action returned", errno.ErrReasoner)
		}
		state.LastAction = action

		switch action.Type {
		case entity.ActionFinal:
			state.Append(entity.NewAssistantTurn(state.SessionID, state.ActorID, action.Text, l.now()))
			result.Answer = action.Text
			return nil
		case entity.ActionToolCall:
		default:
			return fmt.Errorf("%w: unknown action type %q", errno.ErrReasoner, action.Type)
		}

		if err := ac.Err(); err != nil {
			return err
		}
		req := &tools.ToolCallRequest{
			ID:        uuid.NewString(),
			ToolName:  action.ToolName,
			Arguments: action.Arguments,
			Caller:    c,
		}
		res, err := l.tools.Dispatch(ctx, req)
		if err != nil {
			return err
		}
		state.StepsTaken++
		state.Append(l.toolTurn(state, req, res))

		step := entity.Step{Action: action, Result: res}
		result.Steps = append(result.Steps, step)
		if observer != nil {
			observer.OnStep(step)
		}
		logger.DebugX(moduleName, "session %s step %d: %s success=%t", state.SessionID, state.StepsTaken, req.ToolName, res.Success)
	}
	return fmt.Errorf("%w: no final answer after %d steps", errno.ErrStepBudgetExceeded, state.StepsTaken)
}

func (l *Loop) toolTurn(state *entity.LoopState, req *tools.ToolCallRequest, res *tools.ToolCallResult) *entity.ConversationTurn {
	obs := &entity.ToolObservation{
		CallID:    req.ID,
		ToolName:  req.ToolName,
		Arguments: req.Arguments,
		Result:    res,
	}
	if spec, ok := l.tools.Get(req.ToolName); ok {
		obs.ActionID = spec.Action().String()
	}
	content, err := json.MarshalString(res)
	if err != nil {
		content = fmt.Sprintf(`{"success":false,"error":{"kind":%q,"message":%q}}`, tools.ErrExecution, err.Error())
	}
	return entity.NewToolTurn(state.SessionID, state.ActorID, content, obs, l.now())
}

// flush writes the pending turns once. It runs on a context detached from the
// run so a cancelled run still persists what it did.
func (l *Loop) flush(parent context.Context, state *entity.LoopState) error {
	pending := state.Pending()
	if len(pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), flushTimeout)
	defer cancel()
	if err := l.memory.Append(ctx, pending...); err != nil {
		logger.ErrorX(moduleName, "persist %d turns of session %s: %v", len(pending), state.SessionID, err)
		return fmt.Errorf("persist turns of %s: %w", state.SessionID, err)
	}
	state.MarkFlushed()
	return nil
}

// NewSessionID returns session_<unix>_<hex8>.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.Unix(), shortHex())
}

// NewActorID returns user_<unix>_<hex8>.
func NewActorID(now time.Time) string {
	return fmt.Sprintf("user_%d_%s", now.Unix(), shortHex())
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
