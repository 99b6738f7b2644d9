// Package testutil provides a scripted streaming chat endpoint for tests
// and the bundled mock server command.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/spiritledsoftware/ai/internal/codec"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// Turn scripts one response of the stream server.
type Turn struct {
	// Frames are pre-encoded stream lines, usually built with the
	// codec.Format helpers. They are written in order, each followed by a
	// flush.
	Frames []string

	// Status overrides the response status. Zero means 200; a non-2xx
	// status is sent with the first frame as plain body instead of a
	// stream.
	Status int

	// Delay is slept between frames to simulate a slow model.
	Delay time.Duration

	// Hang holds the response open after the frames until the client
	// disconnects. Used to exercise Stop.
	Hang bool
}

// RecordedRequest captures one request the server received.
type RecordedRequest struct {
	Headers  http.Header
	Messages []types.Message
	Body     map[string]json.RawMessage
}

// StreamServer is a scripted chat endpoint. Turns are consumed in FIFO
// order; an unscripted request fails with 500 so the test notices.
type StreamServer struct {
	mu       sync.Mutex
	turns    []Turn
	requests []RecordedRequest

	srv *httptest.Server
}

// NewStreamServer starts the server. Callers own Close.
func NewStreamServer() *StreamServer {
	s := &StreamServer{}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Post("/chat", s.handleChat)

	s.srv = httptest.NewServer(r)
	return s
}

// URL returns the chat endpoint URL.
func (s *StreamServer) URL() string {
	return s.srv.URL + "/chat"
}

// Enqueue appends scripted turns.
func (s *StreamServer) Enqueue(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}

// Requests returns a copy of every request received so far.
func (s *StreamServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Close shuts the server down.
func (s *StreamServer) Close() {
	s.srv.Close()
}

func (s *StreamServer) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	rec := RecordedRequest{Headers: r.Header.Clone()}
	if err := json.Unmarshal(body, &rec.Body); err != nil {
		http.Error(w, "decode body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if raw, ok := rec.Body["messages"]; ok {
		if err := json.Unmarshal(raw, &rec.Messages); err != nil {
			http.Error(w, "decode messages: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	var turn Turn
	scripted := len(s.turns) > 0
	if scripted {
		turn = s.turns[0]
		s.turns = s.turns[1:]
	}
	s.mu.Unlock()

	if !scripted {
		http.Error(w, "unscripted request", http.StatusInternalServerError)
		return
	}

	if turn.Status != 0 && (turn.Status < 200 || turn.Status >= 300) {
		w.WriteHeader(turn.Status)
		if len(turn.Frames) > 0 {
			io.WriteString(w, turn.Frames[0])
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for i, frame := range turn.Frames {
		if turn.Delay > 0 && i > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(turn.Delay):
			}
		}
		io.WriteString(w, frame)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if turn.Hang {
		<-r.Context().Done()
	}
}

// EchoHandler returns a chat endpoint that streams the last user message
// back word by word. It backs the bundled mock server command.
func EchoHandler(delay time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Messages []types.Message `json:"messages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "decode body: "+err.Error(), http.StatusBadRequest)
			return
		}

		prompt := ""
		for i := len(body.Messages) - 1; i >= 0; i-- {
			if body.Messages[i].Role == types.RoleUser {
				prompt = body.Messages[i].Content
				break
			}
		}
		reply := "You said: " + prompt
		if prompt == "" {
			reply = "Hello! Send me a message and I will echo it."
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		words := strings.Fields(reply)
		completion := 0
		for i, word := range words {
			if i > 0 {
				word = " " + word
			}
			io.WriteString(w, codec.FormatText(word))
			if flusher != nil {
				flusher.Flush()
			}
			completion++
			if delay > 0 {
				select {
				case <-req.Context().Done():
					return
				case <-time.After(delay):
				}
			}
		}
		io.WriteString(w, codec.FormatFinish(types.FinishInfo{
			Reason: "stop",
			Usage: types.Usage{
				PromptTokens:     len(body.Messages),
				CompletionTokens: completion,
			},
		}))
	})

	return r
}

// TextMessage is a convenience constructor for test fixtures.
func TextMessage(role types.Role, content string) types.Message {
	return types.Message{
		ID:      fmt.Sprintf("%s-%d", role, time.Now().UnixNano()),
		Role:    role,
		Content: content,
	}
}
