package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"github.com/xhad/primarysources/pkg/composer"
	"go.uber.org/zap"
)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type OutcomeView struct {
	Source string `json:"source"`
	Status string `json:"status"`
	Value  string `json:"value,omitempty"`
	Rule   string `json:"rule,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

type RunView struct {
	ID        string        `json:"id"`
	Token     string        `json:"token"`
	Digest    string        `json:"digest"`
	StartedAt time.Time     `json:"started_at"`
	Outcomes  []OutcomeView `json:"outcomes"`
}

type ErrorView struct {
	Error  string `json:"error"`
	Source string `json:"source,omitempty"`
}

type Config struct {
	Addr       string
	Prefix     string
	Extractors []types.Extractor
	// Store is optional; when set every assembled run is saved.
	Store types.RunStore
	// AllowedOrigins lists browser origins, such as "https://app.example",
	// permitted to open /ws besides the server's own host.
	AllowedOrigins []string
	Logger         *zap.Logger
}

type WSServer struct {
	config   Config
	logger   *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

func NewWSServer(config Config) (*WSServer, error) {
	if len(config.Extractors) == 0 {
		return nil, errors.New("server needs at least one extractor")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &WSServer{config: config, logger: config.Logger, mux: http.NewServeMux()}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/token", s.handleToken)
	s.mux.HandleFunc("/runs", s.handleRuns)
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return s, nil
}

// checkOrigin admits non-browser clients (no Origin header), same-host pages
// and the configured allowlist.
func (s *WSServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	s.logger.Warn("rejected websocket origin", zap.String("origin", origin))
	return false
}

func (s *WSServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WSServer) assemble(ctx context.Context, onProgress func(models.Outcome)) (*models.Run, error) {
	c := composer.NewWithConfig(composer.ComposerConfig{
		Prefix:     s.config.Prefix,
		Logger:     s.logger,
		OnProgress: onProgress,
	}, s.config.Extractors...)

	run, err := c.Assemble(ctx)
	if err != nil {
		return nil, err
	}
	if s.config.Store != nil {
		if err := s.config.Store.Save(ctx, run); err != nil {
			s.logger.Error("failed to save run", zap.String("run", run.ID), zap.Error(err))
		}
	}
	return run, nil
}

func (s *WSServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, err := s.assemble(r.Context(), nil)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorView(err))
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

func (s *WSServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.config.Store == nil {
		writeJSON(w, http.StatusNotFound, ErrorView{Error: "run ledger is not configured"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.config.Store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorView{Error: err.Error()})
		return
	}

	views := make([]RunView, 0, len(runs))
	for i := range runs {
		views = append(views, newRunView(&runs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("error sending message", zap.Error(err))
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("error reading message", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			send(Message{Type: "error", Content: "malformed message"})
			continue
		}

		switch msg.Type {
		case "assemble":
			s.handleAssemble(r.Context(), send)
		default:
			send(Message{Type: "error", Content: "unknown message type: " + msg.Type})
		}
	}
}

func (s *WSServer) handleAssemble(ctx context.Context, send func(Message)) {
	send(Message{Type: "status", Content: "assembling"})

	run, err := s.assemble(ctx, func(o models.Outcome) {
		send(Message{Type: "progress", Content: string(o.Source), Data: newOutcomeView(o)})
	})
	if err != nil {
		send(Message{Type: "error", Content: err.Error(), Data: errorView(err)})
		return
	}
	send(Message{Type: "result", Content: run.Token.Value, Data: newRunView(run)})
}

func newOutcomeView(o models.Outcome) OutcomeView {
	v := OutcomeView{
		Source: string(o.Source),
		Status: string(o.Status),
		Value:  o.Fact.Value(),
		Rule:   o.Rule,
		Reason: o.Reason,
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	return v
}

func newRunView(run *models.Run) RunView {
	outcomes := make([]OutcomeView, len(run.Outcomes))
	for i, o := range run.Outcomes {
		outcomes[i] = newOutcomeView(o)
	}
	return RunView{
		ID:        run.ID,
		Token:     run.Token.Value,
		Digest:    run.Token.Digest,
		StartedAt: run.StartedAt,
		Outcomes:  outcomes,
	}
}

func errorView(err error) ErrorView {
	view := ErrorView{Error: err.Error()}
	var extractionErr *composer.ExtractionError
	if errors.As(err, &extractionErr) {
		view.Source = string(extractionErr.Source)
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
