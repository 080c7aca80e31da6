package app

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []CalibrationMessage
}

func (p *recordingPublisher) Publish(msg CalibrationMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

// biasedLog renders perPos rows per position of true gravity plus a constant bias.
func biasedLog(t *testing.T, perPos int, bias vecmath.Vec3) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := imulog.NewWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, p := range testPositions {
		g := calibration.TrueGravity(calibration.DefaultGravity, p.Inner, p.Outer).Add(bias)
		for k := 0; k < perPos; k++ {
			if err := w.WriteRow(imulog.Row{T: float64(n) * 10, Ax: g.X, Ay: g.Y, Az: g.Z}); err != nil {
				t.Fatal(err)
			}
			n++
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func positionsText(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := calibration.WritePositions(&buf, testPositions); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func submit(t *testing.T, baseURL string, logData, posData []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if logData != nil {
		fw, _ := mw.CreateFormFile("log", "rig.csv")
		fw.Write(logData)
	}
	if posData != nil {
		fw, _ := mw.CreateFormFile("positions", "POSITION.txt")
		fw.Write(posData)
	}
	mw.Close()

	resp, err := http.Post(baseURL+"/api/calibrations", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	return resp
}

func submitID(t *testing.T, baseURL string, logData []byte) string {
	t.Helper()
	resp := submit(t, baseURL, logData, positionsText(t))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out["id"]
}

func watch(t *testing.T, baseURL, id string) []WSResponse {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/ws/calibration", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	if err := conn.WriteJSON(WSMessage{Action: "watch", ID: id}); err != nil {
		t.Fatal(err)
	}
	var msgs []WSResponse
	for {
		var msg WSResponse
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		msgs = append(msgs, msg)
		if msg.Type != "state" {
			return msgs
		}
	}
}

func newTestServer(t *testing.T, pub ReportPublisher) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(t.TempDir(), config.Default(), pub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Wait()
	})
	return srv, ts
}

func TestWebCalibrationFlow(t *testing.T) {
	pub := &recordingPublisher{}
	srv, ts := newTestServer(t, pub)

	bias := vecmath.Vec3{X: 0.12, Y: -0.05, Z: 0.3}
	id := submitID(t, ts.URL, biasedLog(t, 40, bias))

	msgs := watch(t, ts.URL, id)
	last := msgs[len(msgs)-1]
	if last.Type != "complete" || last.ID != id {
		t.Fatalf("final message = %+v", last)
	}

	resp, err := http.Get(ts.URL + "/api/calibrations/" + id)
	if err != nil {
		t.Fatal(err)
	}
	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()
	if job.State != jobDone || job.Report == nil {
		t.Fatalf("job = %+v", job)
	}
	b := job.Report.Coeffs.B
	if d := b.Sub(bias).Norm(); d > 1e-6 {
		t.Errorf("fitted bias %+v, want %+v", b, bias)
	}

	resp, err = http.Get(ts.URL + "/api/calibrations/" + id + "/output")
	if err != nil {
		t.Fatal(err)
	}
	out, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("output status %d", resp.StatusCode)
	}
	if lines := strings.Count(string(out), "\n"); lines != 1+40*calibration.NumPositions {
		t.Errorf("corrected log has %d lines", lines)
	}

	resp, err = http.Get(ts.URL + "/api/latest")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("latest status %d", resp.StatusCode)
	}

	srv.Wait()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 1 || pub.msgs[0].ID != id {
		t.Errorf("published %+v", pub.msgs)
	}

	// Watching a finished job answers immediately.
	again := watch(t, ts.URL, id)
	if len(again) != 1 || again[0].Type != "complete" {
		t.Errorf("second watch = %+v", again)
	}
}

func TestWebCalibrationFailure(t *testing.T) {
	pub := &recordingPublisher{}
	srv, ts := newTestServer(t, pub)

	// Four rows cannot fill eight blocks.
	id := submitID(t, ts.URL, []byte("t_ms,ax,ay,az\n0,0,0,9.8\n10,0,0,9.8\n20,0,0,9.8\n30,0,0,9.8\n"))

	msgs := watch(t, ts.URL, id)
	last := msgs[len(msgs)-1]
	if last.Type != "error" || last.Phase != jobFailed {
		t.Fatalf("final message = %+v", last)
	}
	srv.Wait()

	job, ok := srv.snapshot(id)
	if !ok || job.ErrorKind != "data" {
		t.Errorf("job = %+v", job)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("failed calibration was published")
	}

	resp, err := http.Get(ts.URL + "/api/calibrations/" + id + "/output")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("output status %d", resp.StatusCode)
	}
}

func TestWebRejectsBadUploads(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name string
		log  []byte
		pos  []byte
	}{
		{name: "no log", pos: positionsText(t)},
		{name: "no positions", log: []byte("t_ms,ax,ay,az\n")},
		{name: "short table", log: []byte("t_ms,ax,ay,az\n"), pos: []byte("0 0\n90 0\n")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := submit(t, ts.URL, tc.log, tc.pos)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status %d", resp.StatusCode)
			}
		})
	}
}

func TestWebUnknownJob(t *testing.T) {
	_, ts := newTestServer(t, nil)

	for _, path := range []string{"/api/calibrations/nope", "/api/calibrations/nope/output"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/api/latest")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("latest status %d", resp.StatusCode)
	}

	msgs := watch(t, ts.URL, "nope")
	if msgs[0].Type != "error" {
		t.Errorf("watch unknown = %+v", msgs[0])
	}
}
