package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rybuilt/humelink/internal/observability"
	"github.com/rybuilt/humelink/pkg/session"
	"github.com/rybuilt/humelink/pkg/weather"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Executor dispatches tool calls against session state and external
// data sources. Every execution yields a string result; internal
// failures are converted into descriptive strings so the model backend
// always receives a turn-ending tool result.
type Executor struct {
	store    *session.Store
	weather  *weather.Service
	now      func() time.Time
	location *time.Location
	schemas  map[Kind]*gojsonschema.Schema
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithClock overrides the executor clock, mainly for tests
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates a tool executor bound to a session store and a
// weather service. Tool input schemas are compiled up front.
func NewExecutor(store *session.Store, weatherSvc *weather.Service, opts ...ExecutorOption) (*Executor, error) {
	observability.EnsureRegistered()

	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if weatherSvc == nil {
		return nil, fmt.Errorf("weather service is required")
	}

	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("failed to load reference timezone: %w", err)
	}

	schemas := make(map[Kind]*gojsonschema.Schema)
	for _, decl := range Declarations() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(decl.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", decl.Name, err)
		}
		schemas[KindFromName(decl.Name)] = schema
	}

	e := &Executor{
		store:    store,
		weather:  weatherSvc,
		now:      time.Now,
		location: location,
		schemas:  schemas,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Execute runs the named tool against the session. The result is always
// a string the model can read; unknown tools and validation failures
// are reported in-band rather than as errors.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]interface{}, sessionID string) (result string) {
	start := time.Now()
	success := true

	defer func() {
		if r := recover(); r != nil {
			success = false
			result = fmt.Sprintf("Tool execution failed: %v", r)
			log.Error().Str("tool", name).Interface("panic", r).Msg("Tool handler panicked")
		}
		observability.RecordToolExecution(name, success, time.Since(start))
	}()

	kind := KindFromName(name)
	if kind == KindUnknown {
		success = false
		log.Warn().Str("tool", name).Msg("Unknown tool requested")
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	if err := e.validateInput(kind, input); err != nil {
		success = false
		log.Warn().Str("tool", name).Err(err).Msg("Tool input rejected")
		return fmt.Sprintf("Invalid input for %s: %v", name, err)
	}

	log.Debug().Str("tool", name).Str("session_id", sessionID).Msg("Executing tool")

	switch kind {
	case KindSaveMemory:
		return e.saveMemory(sessionID, input)
	case KindGetMemory:
		return e.getMemory(sessionID, input)
	case KindListMemories:
		return e.listMemories(sessionID)
	case KindClearMemory:
		return e.clearMemory(sessionID, input)
	case KindCurrentDatetime:
		return e.currentDatetime()
	case KindWeather:
		return e.weather.Report(ctx)
	default:
		success = false
		return fmt.Sprintf("Unknown tool: %s", name)
	}
}

func (e *Executor) validateInput(kind Kind, input map[string]interface{}) error {
	schema := e.schemas[kind]
	if schema == nil {
		return nil
	}
	if input == nil {
		input = map[string]interface{}{}
	}

	outcome, err := schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return err
	}
	if !outcome.Valid() {
		var problems []string
		for _, desc := range outcome.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (e *Executor) saveMemory(sessionID string, input map[string]interface{}) string {
	key := stringArg(input, "key")
	value := stringArg(input, "value")

	e.store.SaveMemory(sessionID, key, value)
	return fmt.Sprintf("Memory saved: %s = %s", key, value)
}

func (e *Executor) getMemory(sessionID string, input map[string]interface{}) string {
	key := stringArg(input, "key")

	value, ok := e.store.GetMemory(sessionID, key)
	if !ok {
		return fmt.Sprintf("No memory found for key: %s", key)
	}
	return value
}

func (e *Executor) listMemories(sessionID string) string {
	memories := e.store.Memories(sessionID)
	if len(memories) == 0 {
		return "No memories stored yet."
	}

	keys := make([]string, 0, len(memories))
	for k := range memories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %s", k, memories[k]))
	}

	return "Stored memories: " + strings.Join(pairs, ", ")
}

func (e *Executor) clearMemory(sessionID string, input map[string]interface{}) string {
	key := stringArg(input, "key")

	e.store.DeleteMemory(sessionID, key)
	if key == "" {
		return "All memories cleared."
	}
	return fmt.Sprintf("Memory cleared: %s", key)
}

func (e *Executor) currentDatetime() string {
	now := e.now().In(e.location)

	dateStr := now.Format("Monday, January 2, 2006")
	timeStr := now.Format("3:04 PM")
	zone := now.Format("MST")
	month := now.Format("January")

	return fmt.Sprintf("Current date/time: %s, %s %s. Season: %s. Month: %s.",
		dateStr, timeStr, zone, Season(now), month)
}

// Season maps a calendar month to its season: zero-based months 2-4 are
// Spring, 5-8 Summer, 9-10 Fall, the rest Winter.
func Season(t time.Time) string {
	month := int(t.Month()) - 1

	switch {
	case month >= 2 && month <= 4:
		return "Spring"
	case month >= 5 && month <= 8:
		return "Summer"
	case month >= 9 && month <= 10:
		return "Fall"
	default:
		return "Winter"
	}
}

func stringArg(input map[string]interface{}, name string) string {
	if input == nil {
		return ""
	}
	if value, ok := input[name].(string); ok {
		return value
	}
	return ""
}
