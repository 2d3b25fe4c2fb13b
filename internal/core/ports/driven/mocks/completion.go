package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

var _ driven.CompletionService = (*MockCompletionService)(nil)

// CompletionStep is one scripted provider answer
type CompletionStep struct {
	Completion *domain.Completion
	Err        error
	Delay      time.Duration // honours ctx while waiting
}

// MockCompletionService replays scripted steps in order. When the script
// runs out it answers with Default, or with a fixed text when Default is nil.
type MockCompletionService struct {
	mu      sync.Mutex
	steps   []CompletionStep
	prompts []*domain.Prompt
	calls   int

	Default *domain.Completion
	PingErr error
	closed  bool
}

// NewMockCompletionService creates a mock that replays steps
func NewMockCompletionService(steps ...CompletionStep) *MockCompletionService {
	return &MockCompletionService{steps: steps}
}

func (m *MockCompletionService) Complete(ctx context.Context, prompt *domain.Prompt, opts domain.CompletionOptions) (*domain.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	var step CompletionStep
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	} else if m.Default != nil {
		step = CompletionStep{Completion: m.Default}
	} else {
		step = CompletionStep{Completion: &domain.Completion{
			Text:  "Lead with the vehicle's safety record and invite a test drive.",
			Model: "mock-completion-model",
		}}
	}
	m.mu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	cp := *step.Completion
	return &cp, nil
}

func (m *MockCompletionService) Model() string {
	return "mock-completion-model"
}

func (m *MockCompletionService) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockCompletionService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Helper methods for testing

// Calls returns how many times Complete was called
func (m *MockCompletionService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the prompt of the most recent call
func (m *MockCompletionService) LastPrompt() *domain.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil
	}
	return m.prompts[len(m.prompts)-1]
}

// Closed reports whether Close was called
func (m *MockCompletionService) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
