package orchestrator

import (
	"context"
	"fmt"

	"github.com/rybuilt/humelink/internal/observability"
	"github.com/rybuilt/humelink/pkg/model"
	"github.com/rybuilt/humelink/pkg/tools"
	"github.com/rs/zerolog"
)

// State is the orchestrator's position in the tool-calling loop
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
	StateAborted
)

// String returns a readable state name
func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// DefaultMaxRounds caps model/tool round-trips per request.
const DefaultMaxRounds = 10

// PromptProvider supplies the persona system prompt
type PromptProvider interface {
	Prompt() string
}

// Turn is one client-submitted conversation entry
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunParams are the inputs for one orchestrated request
type RunParams struct {
	SessionID string
	Model     string // optional override of the configured default
	Turns     []Turn
}

// Result is the terminal outcome of a run. Response is nil when the
// round cap was exhausted; the caller still gets a defined terminal
// value rather than a hang.
type Result struct {
	State    State
	Response *model.Response
	Rounds   int
}

// Orchestrator drives the request/tool/response loop against the model
// backend, bounded by a fixed round cap
type Orchestrator struct {
	backend      model.Backend
	executor     *tools.Executor
	persona      PromptProvider
	maxRounds    int
	defaultModel string
	maxTokens    int
	logger       zerolog.Logger
}

// Config holds orchestrator configuration
type Config struct {
	Backend      model.Backend
	Executor     *tools.Executor
	Persona      PromptProvider
	MaxRounds    int
	DefaultModel string
	MaxTokens    int
	Logger       zerolog.Logger
}

// New creates a new orchestrator
func New(cfg Config) (*Orchestrator, error) {
	observability.EnsureRegistered()

	if cfg.Backend == nil {
		return nil, fmt.Errorf("model backend is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Persona == nil {
		return nil, fmt.Errorf("persona provider is required")
	}
	if cfg.DefaultModel == "" {
		return nil, fmt.Errorf("default model is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}

	return &Orchestrator{
		backend:      cfg.Backend,
		executor:     cfg.Executor,
		persona:      cfg.Persona,
		maxRounds:    cfg.MaxRounds,
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		logger:       cfg.Logger,
	}, nil
}

// Run drives the loop to completion and returns the final response for
// batch re-encoding. Any backend failure is fatal for the request; tool
// failures are absorbed as string results and the loop continues.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (Result, error) {
	return o.run(ctx, params, nil)
}

// RunStream behaves like Run but forwards text fragments to sink as
// they arrive from the backend's live stream.
func (o *Orchestrator) RunStream(ctx context.Context, params RunParams, sink func(text string)) (Result, error) {
	return o.run(ctx, params, sink)
}

func (o *Orchestrator) run(ctx context.Context, params RunParams, sink func(string)) (Result, error) {
	system, messages := o.seed(params.Turns)
	logger := o.logger.With().Str("session_id", params.SessionID).Logger()

	modelName := params.Model
	if modelName == "" {
		modelName = o.defaultModel
	}

	state := StateAwaitingModel

	for round := 0; round < o.maxRounds; round++ {
		resp, err := o.callModel(ctx, model.Request{
			Model:     modelName,
			System:    system,
			Messages:  messages,
			Tools:     tools.Declarations(),
			MaxTokens: o.maxTokens,
		}, sink)
		if err != nil {
			logger.Error().Err(err).Int("round", round).Msg("Model call failed")
			return Result{State: state, Rounds: round + 1}, err
		}

		logger.Debug().
			Str("stop_reason", string(resp.StopReason)).
			Int("round", round).
			Msg("Model round completed")

		if resp.StopReason != model.StopToolUse || len(resp.ToolCalls) == 0 {
			observability.ObserveModelRounds(round + 1)
			return Result{State: StateDone, Response: resp, Rounds: round + 1}, nil
		}

		state = StateExecutingTools

		// Tools run sequentially in the order requested; every result
		// keeps its correlation token.
		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Text(),
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := o.executor.Execute(ctx, call.Name, call.Input, params.SessionID)
			logger.Debug().
				Str("tool", call.Name).
				Str("tool_call_id", call.ID).
				Msg("Tool executed")

			messages = append(messages, model.Message{
				Role:       model.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		state = StateAwaitingModel
	}

	logger.Warn().Int("rounds", o.maxRounds).Msg("Tool-calling round cap exhausted")
	observability.ObserveModelRounds(o.maxRounds)

	return Result{State: StateAborted, Rounds: o.maxRounds}, nil
}

// callModel issues one round against the backend, either through the
// final-message primitive or the streaming one when a sink is attached.
func (o *Orchestrator) callModel(ctx context.Context, req model.Request, sink func(string)) (*model.Response, error) {
	if sink == nil {
		return o.backend.Complete(ctx, req)
	}

	stream, err := o.backend.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	for stream.Next() {
		sink(stream.Text())
	}
	return stream.Final()
}

// seed builds the initial message sequence from the client's turns.
// System entries are folded into the persona prompt; user and assistant
// entries are kept in order.
func (o *Orchestrator) seed(turns []Turn) (string, []model.Message) {
	system := o.persona.Prompt()
	var messages []model.Message

	for _, turn := range turns {
		switch turn.Role {
		case model.RoleSystem:
			system += "\n\n" + turn.Content
		case model.RoleUser, model.RoleAssistant:
			messages = append(messages, model.Message{
				Role:    turn.Role,
				Content: turn.Content,
			})
		}
	}

	return system, messages
}
