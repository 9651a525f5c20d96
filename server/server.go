// Package server exposes the generate/preview/publish flow over HTTP.
// Publishing runs in the background; clients poll the job for its result.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/setanarut/pixelpress/fetch"
	"github.com/setanarut/pixelpress/grid"
	"github.com/setanarut/pixelpress/job"
	"github.com/setanarut/pixelpress/palette"
	"github.com/setanarut/pixelpress/preview"
	"github.com/setanarut/pixelpress/replay"
)

// publishTimeout bounds one full paint-and-publish run.
const publishTimeout = 15 * time.Minute

type Server struct {
	Source  fetch.Source
	Engine  *replay.Engine
	Jobs    job.Store
	Palette palette.Palette
	Policy  grid.Policy
	Log     *logrus.Logger
}

func New(source fetch.Source, engine *replay.Engine, jobs job.Store, pal palette.Palette, policy grid.Policy, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{Source: source, Engine: engine, Jobs: jobs, Palette: pal, Policy: policy, Log: log}
}

// Router wires the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/publish", s.handlePublish).Methods(http.MethodPost)
	return r
}

// StartSweeper evicts expired jobs until ctx is done.
func (s *Server) StartSweeper(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := s.Jobs.SweepExpired(); n > 0 {
					s.Log.WithField("removed", n).Info("expired jobs swept")
				}
			}
		}
	}()
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Preview string `json:"preview"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		http.Error(w, "missing prompt", http.StatusBadRequest)
		return
	}

	buf, err := s.Source.Generate(r.Context(), req.Prompt)
	if err != nil {
		s.Log.WithError(err).Error("image generation failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	img, err := fetch.Decode(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	g := grid.Quantize(img, s.Palette, s.Policy)
	rep := grid.Fidelity(img, g, s.Palette)
	s.Log.WithFields(logrus.Fields{
		"policy":  s.Policy.String(),
		"painted": rep.Painted,
		"mean":    rep.MeanError,
		"max":     rep.MaxError,
	}).Info("prompt quantized")

	j := &job.Job{ID: job.NewID(), Prompt: req.Prompt, Grid: g, Status: job.StatusPending}
	s.Jobs.Put(j)
	s.Jobs.Advance(j.ID, job.StatusPreviewed, "", "")

	writeJSON(w, http.StatusOK, generateResponse{
		ID:      j.ID,
		Status:  string(job.StatusPreviewed),
		Preview: preview.SVG(g, s.Palette, preview.Options{}),
	})
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.Jobs.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{ID: j.ID, Status: string(j.Status), URL: j.URL, Error: j.Err})
}

type publishRequest struct {
	Title string `json:"title"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, ok := s.Jobs.Get(id)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	var req publishRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	title := req.Title
	if title == "" {
		title = replay.FallbackTitle(j.Prompt)
	}

	if !s.Jobs.Advance(id, job.StatusPublishing, "", "") {
		http.Error(w, "job already publishing or finished", http.StatusConflict)
		return
	}

	// Return immediately; the replay continues in the background and the
	// client polls GET /jobs/{id} for the outcome.
	go s.publish(id, j.Grid, title)

	writeJSON(w, http.StatusAccepted, jobResponse{ID: id, Status: string(job.StatusPublishing)})
}

func (s *Server) publish(id string, g *grid.Grid, title string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	url, err := s.Engine.DrawAndPublish(ctx, g, s.Palette, title)
	if err != nil {
		s.Log.WithError(err).WithField("job", id).Error("publish failed")
		s.Jobs.Advance(id, job.StatusFailed, "", err.Error())
		return
	}
	s.Log.WithFields(logrus.Fields{"job": id, "url": url}).Info("publish finished")
	s.Jobs.Advance(id, job.StatusDone, url, "")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
