package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const remoteTimeout = 120 * time.Second

// Remote talks to the inference collaborator's /chat endpoint.
type Remote struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: remoteTimeout},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Query       string        `json:"query"`
	History     []wireMessage `json:"history"`
	FileContext string        `json:"file_context,omitempty"`
}

type chatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (r *Remote) Generate(ctx context.Context, req Request) (Response, error) {
	history := make([]wireMessage, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	payload, err := json.Marshal(chatRequest{
		Query:       req.Query,
		History:     history,
		FileContext: req.FileContext,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("decode chat response: %w", err)
	}
	return Response{Answer: body.Answer, Sources: body.Sources}, nil
}
