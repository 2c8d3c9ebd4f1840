package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

type fakeAgent struct {
	mu       sync.Mutex
	rooms    map[string]bool
	lastJoin AgentJoinRequest
}

func newFakeAgent() (*fakeAgent, *httptest.Server) {
	agent := &fakeAgent{rooms: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot/join", func(w http.ResponseWriter, r *http.Request) {
		var req AgentJoinRequest
		if err := jsoniter.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		agent.mu.Lock()
		agent.rooms[req.RoomName] = true
		agent.lastJoin = req
		agent.mu.Unlock()
		jsoniter.NewEncoder(w).Encode(map[string]any{"success": true, "message": "joined", "room_name": req.RoomName})
	})
	mux.HandleFunc("POST /bot/leave", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RoomName string `json:"room_name"`
		}
		jsoniter.NewDecoder(r.Body).Decode(&req)
		agent.mu.Lock()
		known := agent.rooms[req.RoomName]
		delete(agent.rooms, req.RoomName)
		agent.mu.Unlock()
		if !known {
			jsoniter.NewEncoder(w).Encode(map[string]any{"success": false, "message": "not in that room"})
			return
		}
		jsoniter.NewEncoder(w).Encode(map[string]any{"success": true, "message": "left", "room_name": req.RoomName})
	})
	mux.HandleFunc("GET /bot/status/", func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Path[len("/bot/status/"):]
		agent.mu.Lock()
		active := agent.rooms[room]
		agent.mu.Unlock()
		jsoniter.NewEncoder(w).Encode(AgentStatus{RoomName: room, IsActive: active, State: "listening"})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return agent, httptest.NewServer(mux)
}

func TestAgentJoinLeaveRoundTrip(t *testing.T) {
	agent, server := newFakeAgent()
	defer server.Close()
	client := NewAgentClient(server.URL)

	err := client.JoinRoom(context.Background(), AgentJoinRequest{
		RoomName: "call-1",
		Token:    "jwt-here",
		CallID:   "call-1",
		Metadata: map[string]any{"role": "ai_agent"},
	})
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	agent.mu.Lock()
	if agent.lastJoin.Token != "jwt-here" || agent.lastJoin.CallID != "call-1" {
		t.Fatalf("agent received join request %+v", agent.lastJoin)
	}
	agent.mu.Unlock()

	status, err := client.Status(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.IsActive {
		t.Fatalf("agent not active after join: %+v", status)
	}

	if err := client.LeaveRoom(context.Background(), "call-1"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	// Leaving a room the agent never joined surfaces the refusal.
	if err := client.LeaveRoom(context.Background(), "call-1"); err == nil {
		t.Fatalf("second LeaveRoom did not report the agent's refusal")
	}
}

func TestAgentHealth(t *testing.T) {
	_, server := newFakeAgent()
	defer server.Close()
	client := NewAgentClient(server.URL)

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestAgentUnreachable(t *testing.T) {
	client := NewAgentClient("http://127.0.0.1:1")
	if err := client.JoinRoom(context.Background(), AgentJoinRequest{RoomName: "call-1"}); err == nil {
		t.Fatalf("JoinRoom succeeded against a dead endpoint")
	}
}

func TestAgentErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAgentClient(server.URL)
	if err := client.Health(context.Background()); err == nil {
		t.Fatalf("Health ignored a 500 reply")
	}
}
