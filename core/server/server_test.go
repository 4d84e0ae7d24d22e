package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/string-tuner/core/fuzzy"
	"example.com/string-tuner/core/server"
	"example.com/string-tuner/core/tuning"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := server.New(zap.NewNop(), fuzzy.DefaultOptions(), tuning.DefaultOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestTurn(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		query  string
		status int
		sign   float64
	}{
		{query: "target=330&current=0&length=0.65", status: http.StatusOK, sign: 1},
		{query: "target=330&current=400&length=0.65&defuzz=mom", status: http.StatusOK, sign: -1},
		{query: "target=330&current=330&length=0.65", status: http.StatusOK, sign: 0},
		{query: "target=330&length=0.65", status: http.StatusBadRequest},
		{query: "target=abc&current=0&length=0.65", status: http.StatusBadRequest},
		{query: "target=Inf&current=0&length=0.65", status: http.StatusBadRequest},
		{query: "target=330&current=-inf&length=0.65", status: http.StatusBadRequest},
		{query: "target=330&current=0&length=NaN", status: http.StatusBadRequest},
		{query: "target=330&current=0&length=0.65&defuzz=bisector", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + "/turn?" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			Turn        float64 `json:"turn"`
			Defuzzifier string  `json:"defuzzifier"`
			Error       string  `json:"error"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: %v", tt.query, err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.query, resp.StatusCode, tt.status)
			continue
		}
		if tt.status != http.StatusOK {
			if body.Error == "" {
				t.Errorf("%s: missing error message", tt.query)
			}
			continue
		}
		if body.Turn*tt.sign < 0 || (tt.sign == 0 && body.Turn != 0) || (tt.sign != 0 && body.Turn == 0) {
			t.Errorf("%s: turn = %v, want sign %v", tt.query, body.Turn, tt.sign)
		}
	}
}

func postTune(t *testing.T, ts *httptest.Server, body string) (*http.Response, server.TuneResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/tune", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var tr server.TuneResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			t.Fatal(err)
		}
	}
	return resp, tr
}

func TestTunePreset(t *testing.T) {
	ts := newTestServer(t)
	resp, tr := postTune(t, ts, `{"preset": "guitar", "defuzzifier": "mom", "max_iterations": 100}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := uuid.Parse(tr.RunID); err != nil {
		t.Errorf("run id %q: %v", tr.RunID, err)
	}
	if tr.State != tuning.Converged.String() || tr.Error != "" {
		t.Errorf("state = %q, error = %q", tr.State, tr.Error)
	}
	if len(tr.Turns) != tr.Iterations || len(tr.Frequencies) != 6 {
		t.Errorf("%d turn vectors, %d iterations, %d frequencies",
			len(tr.Turns), tr.Iterations, len(tr.Frequencies))
	}
}

func TestTuneTimedOut(t *testing.T) {
	ts := newTestServer(t)
	body := `{
		"targets": [440, -100],
		"lengths": [0.65, 0.65],
		"elastic_moduli": [2.93e9, 2.93e9],
		"densities": [1140, 1140],
		"max_iterations": 10
	}`
	resp, tr := postTune(t, ts, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if tr.State != tuning.TimedOut.String() || tr.Error == "" || tr.Iterations != 10 || len(tr.Turns) != 10 {
		t.Errorf("state %q after %d iterations, error %q", tr.State, tr.Iterations, tr.Error)
	}
}

func TestTuneStartFrequencies(t *testing.T) {
	ts := newTestServer(t)
	resp, tr := postTune(t, ts, `{"start_frequencies": [329.63, 246.94, 196.0, 146.83, 110.0, 82.41]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if tr.State != tuning.Converged.String() || tr.Iterations != 0 {
		t.Errorf("state %q after %d iterations", tr.State, tr.Iterations)
	}
}

func TestTuneRejected(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []string{
		`{"preset": "banjo"}`,
		`{"targets": [440], "lengths": [0.65, 0.65], "elastic_moduli": [1], "densities": [1]}`,
		`{"start_frequencies": [100]}`,
		`{"time_limit": "later"}`,
		`{"tolerance_hz": -1}`,
		`{"colour": "red"}`,
		`not json`,
	} {
		resp, _ := postTune(t, ts, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", body, resp.StatusCode, http.StatusBadRequest)
		}
	}
	resp, err := http.Get(ts.URL + "/tune")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /tune status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
