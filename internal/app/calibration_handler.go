// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Job states outside the calibration state machine.
const (
	jobQueued = "queued"
	jobDone   = "done"
	jobFailed = "failed"
)

// Job is one uploaded calibration and its outcome.
type Job struct {
	ID        string              `json:"id"`
	Input     string              `json:"input"` // uploaded file name
	CreatedAt time.Time           `json:"created_at"`
	State     string              `json:"state"`
	Progress  float64             `json:"progress"`
	Error     string              `json:"error,omitempty"`
	ErrorKind string              `json:"error_kind,omitempty"`
	Report    *calibration.Report `json:"report,omitempty"`

	output string
	subs   map[chan WSResponse]struct{}
}

func (j *Job) finished() bool {
	return j.State == jobDone || j.State == jobFailed
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // watch, close
	ID     string `json:"id,omitempty"`
}

type WSResponse struct {
	Type     string  `json:"type"` // state, complete, error
	ID       string  `json:"id,omitempty"`
	Phase    string  `json:"phase,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Results  any     `json:"results,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// execute runs the calibration of job in the background and publishes the result.
func (s *Server) execute(job *Job, input string, table calibration.Positions) {
	defer s.wg.Done()

	res, err := calibration.Run(calibration.Options{
		InputPath:       input,
		Positions:       &table,
		Gravity:         s.cfg.Gravity,
		SteadyStartFrac: s.cfg.SteadyStartFrac,
		SteadyEndFrac:   s.cfg.SteadyEndFrac,
		Observer: func(st calibration.State, _ error) {
			s.setState(job.ID, st)
		},
	})
	if err != nil {
		log.Printf("web: calibration %s failed: %v", job.ID, err)
		s.finish(job.ID, nil, err)
		return
	}

	rep := res.Report()
	s.finish(job.ID, &rep, nil)
	log.Printf("web: calibration %s done, steady |mag-g| %.6f -> %.6f",
		job.ID, res.MaxAbsMagRawSteady, res.MaxAbsMagCorrSteady)

	if s.pub == nil {
		return
	}
	msg := CalibrationMessage{ID: job.ID, CreatedAt: job.CreatedAt, Input: job.Input, Report: rep}
	if err := s.pub.Publish(msg); err != nil {
		log.Printf("web: publish calibration %s: %v", job.ID, err)
	}
}

func (s *Server) setState(id string, st calibration.State) {
	if st == calibration.StateDone || st == calibration.StateFailed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.State = st.String()
	job.Progress = float64(st) / float64(calibration.StateDone)
	msg := stateMessage(job)
	for ch := range job.subs {
		select {
		case ch <- msg:
		default:
			// slow watcher, it still gets the final message
		}
	}
}

func (s *Server) finish(id string, rep *calibration.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	if err != nil {
		job.State = jobFailed
		job.Error = err.Error()
		job.ErrorKind = strings.TrimSuffix(calibration.KindOf(err).String(), " error")
	} else {
		job.State = jobDone
		job.Progress = 1
		job.Report = rep
		s.latest = id
	}
	for ch := range job.subs {
		close(ch)
	}
	job.subs = nil
}

// subscribe returns a channel of state updates for a running job; it is closed when the
// job finishes. A nil channel means the job had already finished.
func (s *Server) subscribe(id string) (chan WSResponse, Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, Job{}, false
	}
	snap := *job
	snap.subs = nil
	if job.finished() {
		return nil, snap, true
	}
	ch := make(chan WSResponse, 16)
	if job.subs == nil {
		job.subs = make(map[chan WSResponse]struct{})
	}
	job.subs[ch] = struct{}{}
	return ch, snap, true
}

func (s *Server) unsubscribe(id string, ch chan WSResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		delete(job.subs, ch)
	}
}

// handleWatch streams job progress over a WebSocket. The client sends
// {"action":"watch","id":...} and receives state messages followed by a single
// complete or error message.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Only this goroutine writes to conn.
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}

		switch msg.Action {
		case "watch":
			if err := s.stream(conn, msg.ID); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		case "close":
			return
		default:
			if err := conn.WriteJSON(WSResponse{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)}); err != nil {
				return
			}
		}
	}
}

func (s *Server) stream(conn *websocket.Conn, id string) error {
	ch, snap, ok := s.subscribe(id)
	if !ok {
		return conn.WriteJSON(WSResponse{Type: "error", ID: id, Message: "unknown calibration"})
	}

	if ch != nil {
		if err := conn.WriteJSON(stateMessage(&snap)); err != nil {
			s.unsubscribe(id, ch)
			return err
		}
		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				s.unsubscribe(id, ch)
				return err
			}
		}
		snap, _ = s.snapshot(id)
	}
	return conn.WriteJSON(finalMessage(&snap))
}

func stateMessage(job *Job) WSResponse {
	return WSResponse{Type: "state", ID: job.ID, Phase: job.State, Progress: job.Progress}
}

func finalMessage(job *Job) WSResponse {
	if job.State == jobDone {
		return WSResponse{Type: "complete", ID: job.ID, Phase: jobDone, Progress: 1, Results: job}
	}
	return WSResponse{Type: "error", ID: job.ID, Phase: jobFailed, Message: job.Error}
}
