package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestReplicateBackendGenerate(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("POST /predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req predictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Input.Prompt == "" || req.Input.Image == "" {
			t.Errorf("prediction input incomplete: %+v", req.Input)
		}
		writeJSON(w, http.StatusCreated, predictionResponse{ID: "pred-1", Status: "starting"})
	})
	mux.HandleFunc("GET /predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		resp := predictionResponse{ID: "pred-1"}
		if n == 1 {
			resp.Status = "processing"
			resp.Logs = "1/4\n2/4"
		} else {
			resp.Status = "succeeded"
			resp.Logs = "1/4\n2/4\n3/4\n4/4"
			out, _ := json.Marshal([]string{serverURL + "/files/out.jpg"})
			resp.Output = out
		}
		writeJSON(w, http.StatusOK, resp)
	})
	mux.HandleFunc("GET /files/out.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	serverURL = srv.URL

	backend, err := NewReplicateBackend(&ReplicateConfig{
		APIToken: "test-token",
		BaseURL:  srv.URL,
		Model:    "model-version",
		Timeout:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReplicateBackend: %v", err)
	}
	backend.pollEvery = 10 * time.Millisecond

	var steps []int
	data, err := backend.Generate(context.Background(), &Request{
		SourceImage: []byte("source"),
		Region:      "gluteal",
		Scenario:    "projection-level-2",
		View:        "rear",
		StepCount:   4,
	}, func(step, total int) {
		steps = append(steps, step)
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("output = %q", data)
	}
	if len(steps) == 0 || steps[len(steps)-1] != 4 {
		t.Fatalf("progress steps = %v, want monotonic ending at 4", steps)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			t.Fatalf("progress steps not increasing: %v", steps)
		}
	}
}

func TestReplicateBackendFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predictions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, predictionResponse{ID: "pred-2", Status: "starting"})
	})
	mux.HandleFunc("GET /predictions/pred-2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, predictionResponse{
			ID:     "pred-2",
			Status: "failed",
			Error:  "model exploded",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	backend, err := NewReplicateBackend(&ReplicateConfig{
		APIToken: "test-token",
		BaseURL:  srv.URL,
		Model:    "model-version",
		Timeout:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReplicateBackend: %v", err)
	}
	backend.pollEvery = 10 * time.Millisecond

	_, err = backend.Generate(context.Background(), &Request{SourceImage: []byte("x"), StepCount: 4}, nil)
	if err == nil {
		t.Fatal("expected failure from failed prediction")
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("error = %v, want backend failure detail", err)
	}
}

func TestReplicateBackendRejectsMissingPredictionID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predictions", func(w http.ResponseWriter, r *http.Request) {
		// Body that resty cannot decode into the response struct.
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pred-3"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	backend, err := NewReplicateBackend(&ReplicateConfig{
		APIToken: "test-token",
		BaseURL:  srv.URL,
		Model:    "model-version",
		Timeout:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReplicateBackend: %v", err)
	}
	backend.pollEvery = 10 * time.Millisecond

	_, err = backend.Generate(context.Background(), &Request{SourceImage: []byte("x"), StepCount: 4}, nil)
	if err == nil {
		t.Fatal("expected error for create response without an id")
	}
	if !strings.Contains(err.Error(), "missing id") {
		t.Fatalf("error = %v, want missing id", err)
	}
}

func TestNewReplicateBackendRequiresToken(t *testing.T) {
	if _, err := NewReplicateBackend(&ReplicateConfig{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
