package llm

import "context"

// MockDispatcher lets tests exercise the orchestrator without a real
// provider. Tokens are replayed verbatim in order; ChatErr/StreamErr, when
// set, are delivered instead of a successful result.
type MockDispatcher struct {
	Tokens    []string
	ChatText  string
	ChatErr   error
	StreamErr error
}

func (m *MockDispatcher) Chat(ctx context.Context, messages []ChatMessage, params ChatParams) (ChatResponse, error) {
	if m.ChatErr != nil {
		return ChatResponse{}, m.ChatErr
	}
	return ChatResponse{Content: m.ChatText}, nil
}

func (m *MockDispatcher) StreamChat(ctx context.Context, messages []ChatMessage, params ChatParams) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent, len(m.Tokens)+1)
	errs := make(chan error, 1)

	if m.StreamErr != nil {
		errs <- m.StreamErr
		close(events)
		close(errs)
		return events, errs
	}

	for _, t := range m.Tokens {
		events <- StreamEvent{Token: t}
	}
	events <- StreamEvent{Done: true}
	close(events)
	close(errs)
	return events, errs
}

func (m *MockDispatcher) Close() error { return nil }
