package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imulog"
)

const maxUploadBytes = 256 << 20

// Server accepts data log uploads and calibrates them in the background. Every job
// gets its own directory under dataDir.
type Server struct {
	dataDir string
	cfg     *config.Config
	pub     ReportPublisher

	mu     sync.RWMutex
	jobs   map[string]*Job
	latest string

	wg sync.WaitGroup
}

// NewServer creates a server; pub may be nil.
func NewServer(dataDir string, cfg *config.Config, pub ReportPublisher) *Server {
	return &Server{
		dataDir: dataDir,
		cfg:     cfg,
		pub:     pub,
		jobs:    make(map[string]*Job),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/calibrations", s.handleSubmit)
	mux.HandleFunc("GET /api/calibrations", s.handleList)
	mux.HandleFunc("GET /api/calibrations/{id}", s.handleGet)
	mux.HandleFunc("GET /api/calibrations/{id}/output", s.handleOutput)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /ws/calibration", s.handleWatch)
	return mux
}

// Wait blocks until every running calibration has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// handleSubmit takes a multipart form with a "log" file and a "positions" file.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid upload: %v", err), http.StatusBadRequest)
		return
	}

	logFile, hdr, err := r.FormFile("log")
	if err != nil {
		http.Error(w, "missing log file", http.StatusBadRequest)
		return
	}
	defer logFile.Close()

	posFile, _, err := r.FormFile("positions")
	if err != nil {
		http.Error(w, "missing positions file", http.StatusBadRequest)
		return
	}
	defer posFile.Close()

	table, err := calibration.ParsePositions(posFile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	input, err := s.store(id, logFile, table)
	if err != nil {
		log.Printf("web: store upload %s: %v", id, err)
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	job := &Job{
		ID:        id,
		Input:     filepath.Base(hdr.Filename),
		CreatedAt: time.Now().UTC(),
		State:     jobQueued,
		output:    imulog.CalibPath(input),
	}
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	log.Printf("web: calibration %s queued for %s", id, job.Input)
	s.wg.Add(1)
	go s.execute(job, input, table)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": jobQueued})
}

// store writes the uploaded log and its position table into the job directory.
func (s *Server) store(id string, logFile io.Reader, table calibration.Positions) (string, error) {
	dir := filepath.Join(s.dataDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	input := filepath.Join(dir, "input.csv")
	f, err := os.Create(input)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, logFile); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	pf, err := os.Create(imulog.PositionPath(input))
	if err != nil {
		return "", err
	}
	if err := calibration.WritePositions(pf, table); err != nil {
		pf.Close()
		return "", err
	}
	return input, pf.Close()
}

func (s *Server) snapshot(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	snap := *job
	snap.subs = nil
	return snap, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	list := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		snap := *job
		snap.subs = nil
		snap.Report = nil
		list = append(list, snap)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := s.snapshot(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown calibration", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleOutput serves the corrected log of a finished calibration.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	job, ok := s.snapshot(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown calibration", http.StatusNotFound)
		return
	}
	if job.State != jobDone {
		http.Error(w, "calibration not finished: "+job.State, http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", imulog.CalibPath(job.Input)))
	http.ServeFile(w, r, job.output)
}

// handleLatest returns the report of the most recent successful calibration.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	id := s.latest
	s.mu.RUnlock()
	if id == "" {
		http.Error(w, "no calibration yet", http.StatusServiceUnavailable)
		return
	}
	job, _ := s.snapshot(id)
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// RunWeb serves the calibration API on the configured port. When publish is set,
// finished calibrations are also sent to the MQTT calibration topic.
func RunWeb(publish bool) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	if err := os.MkdirAll(cfg.WebDataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var pub ReportPublisher
	if publish {
		p, err := NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientIDPublisher, cfg.TopicCalibration)
		if err != nil {
			return err
		}
		defer p.Close()
		pub = p
	}

	srv := NewServer(cfg.WebDataDir, cfg, pub)
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: calibration server listening on %s, data in %s", addr, cfg.WebDataDir)
	err := http.ListenAndServe(addr, srv.Handler())
	srv.Wait()
	return err
}
