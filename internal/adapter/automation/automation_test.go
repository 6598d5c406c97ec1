package automation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"aimatrix/internal/adapter"
	"aimatrix/internal/adapter/automation"
	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

// fakeServer simulates the automation server's job API.
type fakeServer struct {
	mu        sync.Mutex
	status    string
	result    string
	message   string
	cancelled bool
	sawToken  string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.sawToken = r.Header.Get("Authorization")
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/execute", func(w http.ResponseWriter, r *http.Request) {
		var wf job.Workflow
		if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "remote-1"})
	})
	mux.HandleFunc("GET /api/jobs/remote-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "remote-1",
			"status":  f.status,
			"message": f.message,
			"result":  json.RawMessage(f.result),
		})
	})
	mux.HandleFunc("POST /api/jobs/remote-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cancelled = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func testWorkflow() *job.Workflow {
	return &job.Workflow{
		ID:      "wf-1",
		Name:    "remote render",
		Type:    job.TypeAutomation,
		Inputs:  []job.Port{{ID: "text", Type: job.PortText, Required: true}},
		Outputs: []job.Port{{ID: "video", Type: job.PortVideo}},
	}
}

func TestPingSendsToken(t *testing.T) {
	fake := &fakeServer{status: "running", result: "null"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := automation.NewClient(srv.URL, "secret")
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	fake.mu.Lock()
	token := fake.sawToken
	fake.mu.Unlock()
	if token != "Bearer secret" {
		t.Fatalf("token header = %q", token)
	}
}

func TestPingUnreachableServer(t *testing.T) {
	client := automation.NewClient("http://127.0.0.1:1", "")
	err := client.Ping(context.Background())
	if !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("Ping error = %v", err)
	}
}

func TestRunPollsUntilCompleted(t *testing.T) {
	fake := &fakeServer{status: "running", result: "null"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := automation.NewClient(srv.URL, "", automation.WithPollInterval(10*time.Millisecond))

	done := make(chan struct{})
	var out json.RawMessage
	var runErr error
	go func() {
		defer close(done)
		out, runErr = client.Run(context.Background(), testWorkflow())
	}()

	time.Sleep(50 * time.Millisecond)
	fake.mu.Lock()
	fake.status = "completed"
	fake.result = `{"video":"remote.mp4"}`
	fake.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not observe completion")
	}
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if string(out) != `{"video":"remote.mp4"}` {
		t.Fatalf("result = %s", out)
	}
}

func TestRunSurfacesRemoteFailure(t *testing.T) {
	fake := &fakeServer{status: "failed", message: "queue full", result: "null"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := automation.NewClient(srv.URL, "", automation.WithPollInterval(10*time.Millisecond))
	_, err := client.Run(context.Background(), testWorkflow())
	if !errors.Is(err, services.ErrExecutionFailed) {
		t.Fatalf("Run error = %v", err)
	}
}

func TestRunCancelSignalsServer(t *testing.T) {
	fake := &fakeServer{status: "running", result: "null"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := automation.NewClient(srv.URL, "", automation.WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := client.Run(ctx, testWorkflow())
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		fake.mu.Lock()
		cancelled := fake.cancelled
		fake.mu.Unlock()
		if cancelled {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("remote cancel never arrived")
}

func TestRemoteCancelWithoutLocalCancelEndsJob(t *testing.T) {
	fake := &fakeServer{status: "running", result: "null"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := automation.NewClient(srv.URL, "", automation.WithPollInterval(10*time.Millisecond))
	runner := adapter.NewRunner(job.TypeAutomation, client, adapter.RunnerOptions{})
	if err := runner.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	res, err := runner.Execute(context.Background(), testWorkflow())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// The operator stops the job on the server; no local Cancel happens.
	time.Sleep(30 * time.Millisecond)
	fake.mu.Lock()
	fake.status = "cancelled"
	fake.mu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := runner.Status(context.Background(), res.JobID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if snap.Status == job.StatusCancelled {
			if snap.EndedAt.IsZero() {
				t.Fatal("cancellation must set end time")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job stayed non-terminal after the server cancelled it")
}
