package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider implements Dispatcher against an OpenAI-compatible chat
// completions endpoint (both the cloud primary and a local uncensored
// secondary speak this wire format). A missing API key attaches the
// literal placeholder "not-needed" as the bearer token, matching
// self-hosted servers that ignore auth entirely.
type HTTPProvider struct {
	baseURL       string
	apiKey        string
	client        *http.Client
	connectClient *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, totalTimeout, connectTimeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: totalTimeout},
		connectClient: &http.Client{
			Timeout: connectTimeout,
		},
	}
}

func (p *HTTPProvider) bearer() string {
	if p.apiKey == "" {
		return "not-needed"
	}
	return p.apiKey
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature,omitempty"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Stop        []string                `json:"stop,omitempty"`
	Stream      bool                    `json:"stream"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
}

type chatCompletionStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func toWireMessages(messages []ChatMessage) []chatCompletionMessage {
	out := make([]chatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *HTTPProvider) newRequest(ctx context.Context, body chatCompletionRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProtocolError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.bearer())
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *HTTPProvider) Chat(ctx context.Context, messages []ChatMessage, params ChatParams) (ChatResponse, error) {
	req, err := p.newRequest(ctx, chatCompletionRequest{
		Model:       params.Model,
		Messages:    toWireMessages(messages),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stop:        params.Stop,
	})
	if err != nil {
		return ChatResponse{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ChatResponse{}, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if statusErr := classifyStatus(resp); statusErr != nil {
		return ChatResponse{}, statusErr
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ChatResponse{}, &ProtocolError{Err: err}
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, &ProtocolError{Err: errors.New("empty choices array")}
	}
	return ChatResponse{Content: parsed.Choices[0].Message.Content}, nil
}

func (p *HTTPProvider) StreamChat(ctx context.Context, messages []ChatMessage, params ChatParams) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent)
	errs := make(chan error, 1)

	req, err := p.newRequest(ctx, chatCompletionRequest{
		Model:       params.Model,
		Messages:    toWireMessages(messages),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stop:        params.Stop,
		Stream:      true,
	})
	if err != nil {
		errs <- err
		close(events)
		close(errs)
		return events, errs
	}

	go func() {
		defer close(events)
		defer close(errs)

		resp, err := p.client.Do(req)
		if err != nil {
			errs <- classifyTransportErr(err)
			return
		}
		defer resp.Body.Close()

		if statusErr := classifyStatus(resp); statusErr != nil {
			errs <- statusErr
			return
		}

		reader := bufio.NewReader(resp.Body)
		for {
			select {
			case <-ctx.Done():
				errs <- &TransportError{Err: ctx.Err()}
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					events <- StreamEvent{Done: true}
					return
				}
				errs <- &ProtocolError{Err: err}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				events <- StreamEvent{Done: true}
				return
			}

			var chunk chatCompletionStreamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				errs <- &ProtocolError{Err: fmt.Errorf("decode chunk: %w", err)}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case events <- StreamEvent{Token: content}:
				case <-ctx.Done():
					errs <- &TransportError{Err: ctx.Err()}
					return
				}
			}
		}
	}()

	return events, errs
}

func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func classifyTransportErr(err error) error {
	return &TransportError{Err: err}
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{StatusCode: resp.StatusCode}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
}
