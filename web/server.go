// Package web is the local control surface: plain HTTP handlers that render
// HTML fragments for the embedded page, plus a websocket status feed.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"noisedeck/ble"
	"noisedeck/log"
	"noisedeck/noise"
)

//go:embed static/index.html
var staticFiles embed.FS

const defaultScanWindow = 1500 * time.Millisecond

type Server struct {
	svc        *noise.Service
	scanner    ble.Scanner
	scanWindow time.Duration
	httpSrv    *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(addr string, svc *noise.Service, scanner ble.Scanner, scanWindow time.Duration) *Server {
	s := &Server{svc: svc, scanner: scanner, scanWindow: scanWindow}
	if s.scanWindow <= 0 {
		s.scanWindow = defaultScanWindow
	}
	s.upgrader = websocket.Upgrader{
		// Local-only service; accept the page we serve and non-browser clients.
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "http://localhost")
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/audio/list", s.handleAudioList)
	mux.HandleFunc("/audio/select", s.handleAudioSelect)
	mux.HandleFunc("/audio/whitenoise", s.handleNoiseStart)
	mux.HandleFunc("/audio/whitenoise/stop", s.handleNoiseStop)
	mux.HandleFunc("/ble/list", s.handleBLEList)
	mux.HandleFunc("/ble/toggle", s.handleBLEToggle)
	mux.HandleFunc("/events", s.handleEvents)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleAudioList(w http.ResponseWriter, _ *http.Request) {
	renderAudioList(w, s.svc.Devices())
}

func (s *Server) handleAudioSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		index = -1
	}
	s.svc.SelectDevice(index)
	renderAudioList(w, s.svc.Devices())
}

func (s *Server) handleNoiseStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Rate       *uint32  `json:"rate"`
		Channels   *uint32  `json:"channels"`
		DurationMs *uint32  `json:"duration_ms"`
		Amp        *float32 `json:"amp"`
	}
	cfg := noise.DefaultConfig()
	// Missing fields and malformed bodies keep the defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		if req.Rate != nil {
			cfg.SampleRate = *req.Rate
		}
		if req.Channels != nil {
			cfg.Channels = *req.Channels
		}
		if req.DurationMs != nil {
			cfg.DurationMs = *req.DurationMs
		}
		if req.Amp != nil {
			cfg.Amplitude = *req.Amp
		}
	}

	clamped := cfg.Clamp()
	if err := s.svc.Start(cfg); err != nil {
		writeFragment(w, "<small>Failed to start noise.</small>")
		return
	}
	writeFragment(w, fmt.Sprintf("<small>White noise started for %d ms</small>", clamped.DurationMs))
}

func (s *Server) handleNoiseStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.svc.Stop()
	writeFragment(w, "<small>White noise stopped.</small>")
}

func (s *Server) handleBLEList(w http.ResponseWriter, r *http.Request) {
	peripherals, err := s.scanner.Scan(r.Context(), s.scanWindow)
	if err != nil {
		log.Errorf("ble scan: %v", err)
	}
	renderBLEList(w, peripherals, err)
}

func (s *Server) handleBLEToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	address := r.URL.Query().Get("address")
	if address != "" {
		err := s.scanner.Toggle(r.Context(), address)
		log.PeripheralToggle(address, "toggle", err)
	}
	peripherals, err := s.scanner.Scan(r.Context(), s.scanWindow)
	if err != nil {
		log.Errorf("ble scan: %v", err)
	}
	renderBLEList(w, peripherals, err)
}
