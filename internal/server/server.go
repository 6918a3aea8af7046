package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tyeth/digital-dial-gauge-web-serial/internal/gauge"
	"github.com/tyeth/digital-dial-gauge-web-serial/internal/instrument"
	"github.com/tyeth/digital-dial-gauge-web-serial/internal/recorder"
)

// Server pumps instrument bytes through the decode engine and broadcasts
// accepted readings and log lines to WebSocket clients.
type Server struct {
	cfg      *Config
	provider instrument.Provider
	webFS    fs.FS
	engine   *gauge.Engine
	rec      *recorder.Recorder

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	// Optional CLI-style collection limit: stop after N accepted values.
	countLimit int
	countMu    sync.Mutex
	accepted   int
	stop       context.CancelFunc
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// wsEvent is the JSON structure sent to all WebSocket clients.
type wsEvent struct {
	Type  string  `json:"type"` // "value", "log", "config", "status"
	Value float64 `json:"value,omitempty"`
	Unit  string  `json:"unit,omitempty"`
	Tag   string  `json:"tag,omitempty"`
	Line  string  `json:"line,omitempty"`
	Stamp int64   `json:"stamp"` // Unix ms
}

// New creates a new Server. countLimit > 0 stops the server after that many
// accepted readings (the CLI's -count flag).
func New(cfg *Config, provider instrument.Provider, webFS fs.FS, countLimit int) *Server {
	s := &Server{
		cfg:      cfg,
		provider: provider,
		webFS:    webFS,
		rec: recorder.New(recorder.Config{
			Enabled: cfg.Export.Enabled,
			Path:    cfg.Export.Path,
		}),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		countLimit: countLimit,
	}

	s.engine = gauge.New(cfg.GaugeConfig(),
		gauge.LoggerFunc(s.engineLog),
		gauge.ValueSinkFunc(s.engineValue))
	return s
}

// engineLog fans an engine log line out to the console and all clients.
func (s *Server) engineLog(tag gauge.Tag, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if tag != gauge.TagBin && tag != gauge.TagRaw {
		log.Printf("[gauge] [%s] %s", tag, line)
	}
	s.broadcast(wsEvent{
		Type:  "log",
		Tag:   string(tag),
		Line:  line,
		Stamp: time.Now().UnixMilli(),
	})
}

// engineValue fans an accepted reading out to all clients and enforces the
// collection limit.
func (s *Server) engineValue(value float64, unit gauge.Unit) {
	s.broadcast(wsEvent{
		Type:  "value",
		Value: value,
		Unit:  unit.String(),
		Stamp: time.Now().UnixMilli(),
	})

	if s.countLimit <= 0 {
		return
	}
	s.countMu.Lock()
	s.accepted++
	done := s.accepted >= s.countLimit
	stop := s.stop
	s.countMu.Unlock()
	if done && stop != nil {
		log.Printf("[server] collected %d value(s), stopping", s.countLimit)
		stop()
	}
}

// Run starts the HTTP server and the instrument pump loop.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.countMu.Lock()
	s.stop = cancel
	s.countMu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/export.csv", s.handleExportCSV)
	mux.HandleFunc("/api/export.json", s.handleExportJSON)
	mux.HandleFunc("/api/zero", s.handleZero)
	mux.HandleFunc("/api/unit", s.handleUnit)
	mux.HandleFunc("/api/reset", s.handleReset)

	go s.pumpLoop(ctx)

	// Flush newly accepted records to the CSV recorder once a second.
	syncTicker := time.NewTicker(1 * time.Second)
	go func() {
		defer syncTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.rec.Sync(s.engine.Data())
				s.rec.Close()
				return
			case <-syncTicker.C:
				s.rec.Sync(s.engine.Data())
			}
		}
	}()

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		s.engine.Close()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// pumpLoop reads chunks from the instrument and feeds the engine. Read
// timeouts become engine ticks so stalled buffers still flush during
// silence. Processing is strictly sequential; there is no parallel decode.
func (s *Server) pumpLoop(ctx context.Context) {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			s.provider.Close()
			return
		default:
		}

		if !s.provider.IsConnected() {
			s.engine.Tick()
			time.Sleep(200 * time.Millisecond)
			continue
		}

		n, err := s.provider.Read(buf)
		if n > 0 {
			s.engine.Feed(buf[:n])
		} else {
			s.engine.Tick()
		}
		if err != nil {
			log.Printf("[server] read failed: %v", err)
			time.Sleep(500 * time.Millisecond)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", len(s.clients))

	// Send initial status so a fresh page shows the current unit and offset.
	if data, err := json.Marshal(s.statusPayload()); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (handle incoming messages / keep-alive)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", len(s.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

type statusResponse struct {
	Type       string    `json:"type"`
	Connected  bool      `json:"connected"`
	Instrument string    `json:"instrument"`
	Unit       string    `json:"unit"`
	Offset     float64   `json:"offset"`
	History    []float64 `json:"history"`
	Records    int       `json:"records"`
	Stamp      int64     `json:"stamp"`
}

func (s *Server) statusPayload() statusResponse {
	return statusResponse{
		Type:       "status",
		Connected:  s.provider.IsConnected(),
		Instrument: s.provider.Name(),
		Unit:       s.engine.Unit().String(),
		Offset:     s.engine.Offset(),
		History:    s.engine.History(),
		Records:    len(s.engine.Data()),
		Stamp:      time.Now().UnixMilli(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.statusPayload())
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	records := s.engine.Data()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="gauge_%s.csv"`, time.Now().Format("2006-01-02_150405")))

	cw := csv.NewWriter(w)
	cw.Write([]string{"timestamp", "value", "unit", "raw_hex", "method", "accepted"})
	for _, rec := range records {
		accepted := "0"
		if rec.Accepted {
			accepted = "1"
		}
		cw.Write([]string{
			rec.Timestamp.Format(time.RFC3339Nano),
			fmt.Sprintf("%.3f", rec.Value),
			rec.Unit,
			rec.RawHex,
			rec.Method,
			accepted,
		})
	}
	cw.Flush()
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Data())
}

// controlRequest is the optional JSON body for the zero/unit endpoints.
type controlRequest struct {
	Value *float64 `json:"value"`
}

// readControlValue parses an optional {"value": n} body, falling back to the
// most recent accepted reading.
func (s *Server) readControlValue(r *http.Request) float64 {
	var req controlRequest
	if body, err := io.ReadAll(r.Body); err == nil && len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err == nil && req.Value != nil {
			return *req.Value
		}
	}
	history := s.engine.History()
	if len(history) > 0 {
		return history[len(history)-1]
	}
	return 0
}

func (s *Server) handleZero(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.engine.Zero(s.readControlValue(r))
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req controlRequest
	if body, err := io.ReadAll(r.Body); err == nil && len(strings.TrimSpace(string(body))) > 0 {
		json.Unmarshal(body, &req)
	}
	if req.Value != nil {
		s.engine.ToggleUnit(*req.Value)
	} else {
		s.engine.ToggleUnit()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.engine.ResetMemory()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) broadcast(ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
