package tools

// Kind enumerates the closed set of callable tools. Dispatch is an
// exhaustive switch over Kind; an unrecognized name maps to KindUnknown
// rather than failing.
type Kind int

const (
	KindUnknown Kind = iota
	KindSaveMemory
	KindGetMemory
	KindListMemories
	KindClearMemory
	KindCurrentDatetime
	KindWeather
)

// Tool name constants as the model backend sees them.
const (
	NameSaveMemory      = "save_memory"
	NameGetMemory       = "get_memory"
	NameListMemories    = "list_memories"
	NameClearMemory     = "clear_memory"
	NameCurrentDatetime = "get_current_datetime"
	NameWeather         = "get_weather"
)

// KindFromName resolves a tool name to its Kind
func KindFromName(name string) Kind {
	switch name {
	case NameSaveMemory:
		return KindSaveMemory
	case NameGetMemory:
		return KindGetMemory
	case NameListMemories:
		return KindListMemories
	case NameClearMemory:
		return KindClearMemory
	case NameCurrentDatetime:
		return KindCurrentDatetime
	case NameWeather:
		return KindWeather
	default:
		return KindUnknown
	}
}

// Name returns the wire name of a Kind
func (k Kind) Name() string {
	switch k {
	case KindSaveMemory:
		return NameSaveMemory
	case KindGetMemory:
		return NameGetMemory
	case KindListMemories:
		return NameListMemories
	case KindClearMemory:
		return NameClearMemory
	case KindCurrentDatetime:
		return NameCurrentDatetime
	case KindWeather:
		return NameWeather
	default:
		return "unknown"
	}
}

// Declaration describes a tool to the model backend: name, selection
// description, and a JSON schema for its input.
type Declaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Declarations returns the full tool listing offered to the model
func Declarations() []Declaration {
	return []Declaration{
		{
			Name: NameSaveMemory,
			Description: "Save information to persistent memory. Use this to remember important details " +
				"about the user, their preferences, ongoing projects, or anything mentioned in " +
				"conversation that should be recalled later.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"key": map[string]interface{}{
						"type":        "string",
						"description": "A descriptive key for this memory (e.g., \"favorite_coffee\", \"current_project\", \"user_name\")",
					},
					"value": map[string]interface{}{
						"type":        "string",
						"description": "The information to remember",
					},
				},
				"required": []string{"key", "value"},
			},
		},
		{
			Name: NameGetMemory,
			Description: "Retrieve previously saved information from memory. Use this to recall details " +
				"about the user or past conversations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"key": map[string]interface{}{
						"type":        "string",
						"description": "The key of the memory to retrieve",
					},
				},
				"required": []string{"key"},
			},
		},
		{
			Name:        NameListMemories,
			Description: "List all stored memories to see what information has been saved about the user.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name: NameClearMemory,
			Description: "Clear a specific memory or all memories. Only use this when explicitly " +
				"requested by the user.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"key": map[string]interface{}{
						"type":        "string",
						"description": "The key of the memory to clear. If omitted, clears all memories.",
					},
				},
			},
		},
		{
			Name: NameCurrentDatetime,
			Description: "Get the current date and time in the assistant's home timezone. Use this to be " +
				"aware of what season it is, time of day, and to provide contextually appropriate " +
				"responses based on the current date/time.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name: NameWeather,
			Description: "Get current weather conditions and forecast for the assistant's home region. " +
				"Use this to understand current weather patterns, temperature, conditions, and to " +
				"provide seasonally appropriate responses (e.g., not suggesting gardening in winter).",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
