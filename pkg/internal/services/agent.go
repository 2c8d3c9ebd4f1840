package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// AgentClient speaks to the AI agent process over HTTP. Join and leave
// are idempotent on the agent side, so retried commands are harmless.
type AgentClient struct {
	baseURL string
	client  *http.Client
}

func NewAgentClient(baseURL string) *AgentClient {
	return &AgentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type AgentJoinRequest struct {
	RoomName string         `json:"room_name"`
	Token    string         `json:"token"`
	CallID   string         `json:"call_id"`
	Metadata map[string]any `json:"metadata"`
}

type AgentStatus struct {
	RoomName string `json:"room_name"`
	IsActive bool   `json:"is_active"`
	State    string `json:"state"`
	JoinedAt string `json:"joined_at,omitempty"`
}

type agentReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *AgentClient) JoinRoom(ctx context.Context, req AgentJoinRequest) error {
	var reply agentReply
	if err := c.post(ctx, "/bot/join", req, &reply); err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("agent refused to join room: %s", reply.Message)
	}
	return nil
}

func (c *AgentClient) LeaveRoom(ctx context.Context, room string) error {
	payload := map[string]string{"room_name": room}
	var reply agentReply
	if err := c.post(ctx, "/bot/leave", payload, &reply); err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("agent refused to leave room: %s", reply.Message)
	}
	return nil
}

func (c *AgentClient) Status(ctx context.Context, room string) (AgentStatus, error) {
	var status AgentStatus
	err := c.get(ctx, "/bot/status/"+room, &status)
	return status, err
}

func (c *AgentClient) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *AgentClient) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := jsoniter.Marshal(payload)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	return c.do(request, out)
}

func (c *AgentClient) get(ctx context.Context, path string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(request, out)
}

func (c *AgentClient) do(request *http.Request, out any) error {
	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("agent unreachable: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return fmt.Errorf("agent replied with status %d", response.StatusCode)
	}
	if out == nil {
		return nil
	}
	return jsoniter.NewDecoder(response.Body).Decode(out)
}
