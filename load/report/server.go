package report

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wavegen/wavegen/load"
)

// Status is the JSON body of GET /status.
type Status struct {
	Event           string    `json:"event"`
	Time            time.Time `json:"time"`
	CycleIndex      int       `json:"cycle_index"`
	ElapsedSeconds  float64   `json:"elapsed_in_cycle_seconds"`
	AgentCount      int       `json:"agent_count"`
	CycleProbes     int64     `json:"cycle_probes"`
	ProbesAttempted int64     `json:"probes_attempted"`
	ProbesSent      int64     `json:"probes_sent"`
	ProbesFailed    int64     `json:"probes_failed"`
	ProbesDropped   int64     `json:"probes_dropped"`
	Reason          string    `json:"reason,omitempty"`
}

// Server publishes the latest progress record on /status and, when metrics
// are attached, the Prometheus registry on /metrics.
type Server struct {
	mu     sync.RWMutex
	latest *load.Progress

	router  *mux.Router
	httpSrv *http.Server
	ln      net.Listener
}

// NewServer builds the router. metrics may be nil.
func NewServer(metrics *Metrics) *Server {
	s := &Server{router: mux.NewRouter()}
	s.router.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	if metrics != nil {
		s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) Report(p load.Progress) {
	s.mu.Lock()
	s.latest = &p
	s.mu.Unlock()
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logrus.Infof("Status server listening on %s", ln.Addr())
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Status server stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		http.Error(w, "session has not started", http.StatusServiceUnavailable)
		return
	}
	body := Status{
		Event:           string(latest.Event),
		Time:            latest.Time,
		CycleIndex:      latest.CycleIndex,
		ElapsedSeconds:  latest.ElapsedInCycle.Seconds(),
		AgentCount:      latest.AgentCount,
		CycleProbes:     latest.CycleProbes,
		ProbesAttempted: latest.ProbesAttempted,
		ProbesSent:      latest.ProbesSent,
		ProbesFailed:    latest.ProbesFailed,
		ProbesDropped:   latest.ProbesDropped,
		Reason:          string(latest.Reason),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Debugf("writing /status: %v", err)
	}
}
