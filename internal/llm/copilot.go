// Package llm provides live model backends for the pipeline's generation
// capability: the GitHub Copilot CLI and the Gemini API.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"
)

// copilotSession is just an interface over [*copilot.Session].
type copilotSession interface {
	On(handler copilot.SessionEventHandler) func()
	SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error)
}

// copilotClient is just an interface over [*copilot.Client], giving tests a
// seam without a running CLI.
type copilotClient interface {
	CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error)
	Start(ctx context.Context) error
	Stop() error
}

type copilotClientWrapper struct {
	inner *copilot.Client
}

func (w *copilotClientWrapper) CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
	sess, err := w.inner.CreateSession(ctx, config)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (w *copilotClientWrapper) Start(ctx context.Context) error { return w.inner.Start(ctx) }
func (w *copilotClientWrapper) Stop() error                     { return w.inner.Stop() }

// CopilotGenerator satisfies the client generation capability using the
// Copilot SDK. One generator owns one CLI process; sessions are created per
// call and the process is started lazily on first use.
type CopilotGenerator struct {
	modelID string

	client    copilotClient
	startOnce sync.Once
	startErr  error
}

// CopilotGeneratorOptions override process wiring, primarily for tests.
type CopilotGeneratorOptions struct {
	NewClient func(opts *copilot.ClientOptions) copilotClient
}

// NewCopilotGenerator builds a generator for modelID. A blank modelID lets
// the CLI pick its own fallback model.
func NewCopilotGenerator(modelID string, options *CopilotGeneratorOptions) *CopilotGenerator {
	copilotOptions := &copilot.ClientOptions{
		LogLevel: "error",
		// NOTE: autostart runs into issues when triggered from separate
		// goroutines, so the process is started explicitly instead.
		AutoStart: copilot.Bool(false),
	}

	var client copilotClient
	if options == nil || options.NewClient == nil {
		client = &copilotClientWrapper{inner: copilot.NewClient(copilotOptions)}
	} else {
		client = options.NewClient(copilotOptions)
	}

	return &CopilotGenerator{modelID: modelID, client: client}
}

// Generate sends one prompt in a fresh session and returns the assembled
// assistant output. maxTokens and temperature are accepted for interface
// compatibility; the CLI does not expose them per request.
func (g *CopilotGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	g.startOnce.Do(func() {
		g.startErr = g.client.Start(ctx)
	})
	if g.startErr != nil {
		return "", fmt.Errorf("llm: copilot failed to start: %w", g.startErr)
	}

	session, err := g.client.CreateSession(ctx, &copilot.SessionConfig{
		Model: g.modelID,
	})
	if err != nil {
		return "", fmt.Errorf("llm: create copilot session: %w", err)
	}

	var parts []string
	unsubscribe := session.On(func(event copilot.SessionEvent) {
		switch event.Type {
		case copilot.AssistantMessage, copilot.AssistantMessageDelta:
			if event.Data.Content != nil {
				parts = append(parts, *event.Data.Content)
			}
		}
	})
	defer unsubscribe()

	if _, err := session.SendAndWait(ctx, copilot.MessageOptions{Prompt: prompt}); err != nil {
		return "", fmt.Errorf("llm: copilot send: %w", err)
	}

	return strings.Join(parts, ""), nil
}

// Close stops the CLI process if it was ever started.
func (g *CopilotGenerator) Close() error {
	return g.client.Stop()
}
