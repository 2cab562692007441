// Package server exposes wizgo's generation loop over HTTP. A single
// inference worker (run by the caller) drains Receive() and feeds tokens
// back through HTTPMessage's Respond/StreamToken/RespondError, grounded on
// the teacher's HTTPServer/HTTPMessage channel-based design. Streaming
// responses are framed as Server-Sent Events rather than the teacher's
// newline-delimited JSON (REDESIGN FLAG, see SPEC_FULL.md §9): EventSource
// clients are the standard consumer for token streams in this domain.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// ChatRequest is one inference request posted to /v1/chat.
type ChatRequest struct {
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse is either a final reply or, in an SSE stream, one token
// event.
type ChatResponse struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// HTTPServer multiplexes inbound chat requests onto a single message
// channel; one worker goroutine (serveWorker in internal/cli) drains it
// serially.
type HTTPServer struct {
	Address        string
	Port           string
	httpServer     *http.Server
	messageChannel chan HTTPMessage
	mu             sync.RWMutex
	shutdown       chan struct{}
	startTime      time.Time
}

// HTTPMessage is a single request with the facilities to reply to it.
type HTTPMessage struct {
	Content string
	Stream  bool
	Options map[string]interface{}
	respond func(ChatResponse) error
	stream  func(string) error
}

// Respond sends a final, non-streamed response.
func (m HTTPMessage) Respond(response string) error {
	return m.respond(ChatResponse{Message: response, Done: true})
}

// StreamToken pushes one partial token to a streaming client.
func (m HTTPMessage) StreamToken(token string) error {
	if m.stream != nil {
		return m.stream(token)
	}
	return nil
}

// RespondError sends an error as the final response.
func (m HTTPMessage) RespondError(err error) error {
	if err == nil {
		return nil
	}
	return m.respond(ChatResponse{Error: err.Error(), Done: true})
}

// NewHTTPServer creates a new HTTP server instance.
func NewHTTPServer(address, port string) *HTTPServer {
	return &HTTPServer{
		Address:        address,
		Port:           port,
		messageChannel: make(chan HTTPMessage, 100),
		shutdown:       make(chan struct{}),
		startTime:      time.Now(),
	}
}

// Start begins listening for HTTP requests.
func (s *HTTPServer) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		resp := HealthResponse{Status: "ok", Uptime: time.Since(s.startTime).Round(time.Second).String()}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf(`{"error": "invalid JSON: %s"}`, err.Error()), http.StatusBadRequest)
			return
		}

		if req.Stream {
			s.handleStreaming(w, r, req)
		} else {
			s.handleNonStreaming(w, r, req)
		}
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", s.Address, s.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server starting on %s:%s", s.Address, s.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

func (s *HTTPServer) handleNonStreaming(w http.ResponseWriter, r *http.Request, req ChatRequest) {
	replyCh := make(chan ChatResponse, 1)

	msg := HTTPMessage{
		Content: req.Prompt,
		Stream:  false,
		Options: req.Options,
		respond: func(resp ChatResponse) error {
			replyCh <- resp
			return nil
		},
	}

	select {
	case s.messageChannel <- msg:
		resp := <-replyCh
		w.Header().Set("Content-Type", "application/json")
		if resp.Error != "" {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(resp)
	case <-s.shutdown:
		http.Error(w, `{"error": "server shutting down"}`, http.StatusServiceUnavailable)
	}
}

// handleStreaming processes a streaming chat request as Server-Sent Events:
// one "data: {...}\n\n" frame per token, followed by a final frame with
// done=true.
func (s *HTTPServer) handleStreaming(w http.ResponseWriter, r *http.Request, req ChatRequest) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	replyCh := make(chan ChatResponse, 1)
	streamCh := make(chan string, 100)

	msg := HTTPMessage{
		Content: req.Prompt,
		Stream:  true,
		Options: req.Options,
		respond: func(resp ChatResponse) error {
			replyCh <- resp
			return nil
		},
		stream: func(token string) error {
			select {
			case streamCh <- token:
				return nil
			case <-r.Context().Done():
				return r.Context().Err()
			}
		},
	}

	select {
	case s.messageChannel <- msg:
		var finalResponse ChatResponse
		streaming := true

		for streaming {
			select {
			case token := <-streamCh:
				writeSSE(w, flusher, ChatResponse{Token: token, Done: false})
			case resp := <-replyCh:
				// The worker's StreamToken calls all return before it
				// responds, so flush any tokens still buffered first.
				for drained := false; !drained; {
					select {
					case token := <-streamCh:
						writeSSE(w, flusher, ChatResponse{Token: token, Done: false})
					default:
						drained = true
					}
				}
				finalResponse = resp
				streaming = false
			case <-r.Context().Done():
				return
			case <-s.shutdown:
				writeSSE(w, flusher, ChatResponse{Error: "server shutting down", Done: true})
				return
			}
		}
		writeSSE(w, flusher, finalResponse)

	case <-s.shutdown:
		writeSSE(w, flusher, ChatResponse{Error: "server shutting down", Done: true})
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, resp ChatResponse) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// Stop gracefully shuts down the HTTP server.
func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.shutdown)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
		log.Printf("HTTP server on %s:%s stopped", s.Address, s.Port)
	}

	close(s.messageChannel)
	return nil
}

// Receive retrieves the next message from the message channel.
func (s *HTTPServer) Receive() (HTTPMessage, error) {
	select {
	case msg, ok := <-s.messageChannel:
		if !ok {
			return HTTPMessage{}, fmt.Errorf("message channel closed")
		}
		return msg, nil
	case <-s.shutdown:
		return HTTPMessage{}, fmt.Errorf("server is shutting down")
	}
}

// IsRunning returns true if the server is running.
func (s *HTTPServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpServer != nil
}
