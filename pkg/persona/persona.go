// Package persona manages the system prompt that shapes every model
// request. The prompt comes from an optional file on disk and can be
// hot reloaded when that file changes, so prompt edits do not require
// a restart.
package persona

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultPrompt is used when no prompt file is configured.
const DefaultPrompt = `You are a friendly voice assistant having a natural, casual conversation.

## HOW YOU SPEAK
- Keep responses conversational, typically 2-4 sentences
- Use contractions naturally (I'm, you're, it's, gonna)
- Don't use markdown, lists, or structured formatting; this is spoken dialogue
- Give people space to respond; don't dominate the conversation

## MEMORY
- Save memories when users share personal details: name, interests, projects, preferences
- At the start of conversations, check your memories to personalize the interaction
- Don't save trivial information

## TOOLS
- Use get_current_datetime when asked about the date, time, or season
- Use get_weather when asked about current weather or outdoor conditions`

// Provider serves the current prompt and optionally watches a file
// for changes.
type Provider struct {
	mu      sync.RWMutex
	prompt  string
	file    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithFile loads the prompt from path instead of the built-in default.
func WithFile(path string) Option {
	return func(p *Provider) {
		p.file = path
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a prompt provider. When a file is configured it
// must exist and be readable.
func NewProvider(opts ...Option) (*Provider, error) {
	p := &Provider{
		prompt: DefaultPrompt,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.file != "" {
		if err := p.load(); err != nil {
			return nil, fmt.Errorf("failed to load prompt file: %w", err)
		}
	}

	return p, nil
}

// Prompt returns the current system prompt.
func (p *Provider) Prompt() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt
}

// Watch starts reloading the prompt file on write events. It is a
// no-op when no file is configured.
func (p *Provider) Watch() error {
	if p.file == "" {
		return nil
	}
	if p.watcher != nil {
		return fmt.Errorf("already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(p.file); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", p.file, err)
	}
	p.watcher = watcher

	go p.watchLoop()
	return nil
}

// Close stops the file watcher if one is running.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Close()
}

func (p *Provider) watchLoop() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := p.load(); err != nil {
				p.logger.Warn().Err(err).Msg("Prompt reload failed, keeping previous prompt")
				continue
			}
			p.logger.Info().Str("file", p.file).Msg("Prompt reloaded")
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("Prompt watcher error")
		}
	}
}

func (p *Provider) load() error {
	data, err := os.ReadFile(p.file)
	if err != nil {
		return err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fmt.Errorf("prompt file %s is empty", p.file)
	}

	p.mu.Lock()
	p.prompt = prompt
	p.mu.Unlock()
	return nil
}
