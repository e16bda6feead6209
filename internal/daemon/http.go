package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type startResponse struct {
	RunName      string `json:"run_name"`
	RunID        string `json:"run_id"`
	PipelineName string `json:"pipeline_name"`
}

type startRequest struct {
	RunName      string `json:"run_name"`
	PipelineName string `json:"pipeline_name"`
	TraceID      string `json:"trace_id"`
}

type stopResponse struct {
	WasActive bool `json:"was_active"`
}

type infoInner struct {
	RunName      string    `json:"run_name"`
	RunID        string    `json:"run_id"`
	PipelineName string    `json:"pipeline_name"`
	StartTime    time.Time `json:"start_time"`
	Tags         []string  `json:"tags,omitempty"`
}

type infoResponse struct {
	Inner     *infoInner `json:"inner,omitempty"`
	Processes []string   `json:"processes"`
}

type tagRequest struct {
	Tags []string `json:"tags"`
}

type bodyRequest struct {
	Body string `json:"body"`
}

func (c *Controller) buildMux() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/start", c.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/stop", c.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/end", c.handleEnd).Methods(http.MethodPost)
	r.HandleFunc("/info", c.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/terminate", c.handleTerminate).Methods(http.MethodPost)
	r.HandleFunc("/tag", c.handleTag).Methods(http.MethodPost)
	r.HandleFunc("/log", c.handleLog).Methods(http.MethodPost)
	r.HandleFunc("/alert", c.handleAlert).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (c *Controller) handleStart(w http.ResponseWriter, req *http.Request) {
	var body startRequest
	_ = json.NewDecoder(req.Body).Decode(&body)

	run := c.run.Start(body.PipelineName, body.RunName, body.TraceID)
	c.recorder.NewRun("run started")

	writeJSON(w, http.StatusOK, startResponse{
		RunName:      run.Name,
		RunID:        run.ID,
		PipelineName: body.PipelineName,
	})
}

func (c *Controller) handleStop(w http.ResponseWriter, _ *http.Request) {
	wasActive := c.run.Stop()
	if wasActive {
		c.recorder.FinishedRun("run stopped")
	}
	writeJSON(w, http.StatusOK, stopResponse{WasActive: wasActive})
}

func (c *Controller) handleEnd(w http.ResponseWriter, req *http.Request) {
	wasActive := c.run.Stop()
	if wasActive {
		c.recorder.FinishedRun("run ended")
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *Controller) handleTerminate(w http.ResponseWriter, _ *http.Request) {
	go func() {
		if c.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.httpServer.Shutdown(shutdownCtx)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (c *Controller) handleTag(w http.ResponseWriter, req *http.Request) {
	var body tagRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	c.run.AddTags(body.Tags)
	w.WriteHeader(http.StatusOK)
}

func (c *Controller) handleLog(w http.ResponseWriter, req *http.Request) {
	var body bodyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	c.recorder.Log(body.Body)
	w.WriteHeader(http.StatusOK)
}

func (c *Controller) handleAlert(w http.ResponseWriter, req *http.Request) {
	var body bodyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	c.recorder.Alert(body.Body)
	w.WriteHeader(http.StatusOK)
}

// handleInfo builds its response under a bounded timeout; if the State
// Manager doesn't answer in time it falls back to the last successfully
// built response rather than blocking the client (spec §4.8).
func (c *Controller) handleInfo(w http.ResponseWriter, req *http.Request) {
	timeout := c.cfg.InfoHandlerTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	resultCh := make(chan infoResponse, 1)
	go func() {
		resultCh <- c.buildInfo()
	}()

	select {
	case resp := <-resultCh:
		c.mu.Lock()
		c.lastInfo = resp
		c.lastInfoCached = true
		c.mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
	case <-time.After(timeout):
		c.mu.Lock()
		resp, ok := c.lastInfo, c.lastInfoCached
		c.mu.Unlock()
		if !ok {
			resp = infoResponse{Processes: []string{}}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (c *Controller) buildInfo() infoResponse {
	targets := c.state.MonitoredTargets()
	processes := make([]string, 0, len(targets))
	for t := range targets {
		processes = append(processes, t)
	}

	resp := infoResponse{Processes: processes}
	if run, pipeline, ok := c.run.Snapshot(); ok {
		resp.Inner = &infoInner{
			RunName:      run.Name,
			RunID:        run.ID,
			PipelineName: pipeline,
			StartTime:    run.StartTime,
			Tags:         run.Tags,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
