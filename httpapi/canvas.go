package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentcanvas/agentcanvas"
	"github.com/agentcanvas/agentcanvas/canvas"
	"github.com/samber/lo"
)

type phaseSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Agents []string `json:"agents"`
}

type importResponse struct {
	Workflow *canvas.Workflow `json:"workflow"`
	Phases   []phaseSummary   `json:"phases"`
	Matches  []canvas.Agent   `json:"matches,omitempty"`
}

type validationResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems"`
}

// importCanvas parses a YAML document. Optional phase, tool and q query
// parameters select matching agents into the response.
func (s *Server) importCanvas(w http.ResponseWriter, r *http.Request) {
	wf, err := canvas.ParseYAML(http.MaxBytesReader(w, r.Body, canvas.MaxDocumentSize+1))
	if err != nil {
		s.canvasError(w, r, err)
		return
	}

	resp := importResponse{
		Workflow: wf,
		Phases: lo.Map(wf.GroupByPhase(), func(g canvas.PhaseGroup, _ int) phaseSummary {
			return phaseSummary{
				ID:     g.Phase.ID,
				Name:   g.Phase.Name,
				Agents: lo.Map(g.Agents, func(a canvas.Agent, _ int) string { return a.ID }),
			}
		}),
	}
	q := r.URL.Query()
	query := canvas.Query{Phase: q.Get("phase"), Tool: q.Get("tool"), Text: q.Get("q")}
	if query != (canvas.Query{}) {
		resp.Matches = wf.Filter(query)
		if resp.Matches == nil {
			resp.Matches = []canvas.Agent{}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxExportBody caps the JSON body of an export. JSON spends more bytes on
// the same workflow than YAML, so the cap is twice the import limit; the
// YAML produced is still held to canvas.MaxDocumentSize.
const maxExportBody = 2 * canvas.MaxDocumentSize

func (s *Server) exportCanvas(w http.ResponseWriter, r *http.Request) {
	var wf canvas.Workflow
	if err := decodeJSONLimit(w, r, &wf, maxExportBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.canvasError(w, r, canvas.ErrDocumentTooLarge)
			return
		}
		s.fail(w, r, err)
		return
	}
	if wf.Version == 0 {
		wf.Version = canvas.CurrentVersion
	}

	var buf bytes.Buffer
	if err := canvas.ExportYAML(&buf, &wf); err != nil {
		s.canvasError(w, r, err)
		return
	}
	if buf.Len() > canvas.MaxDocumentSize {
		s.canvasError(w, r, canvas.ErrDocumentTooLarge)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "canvas.yaml"))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) canvasError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *canvas.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "invalid_workflow", Problems: verr.Problems})
	case errors.Is(err, canvas.ErrDocumentTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "too_large"})
	default:
		s.fail(w, r, fmt.Errorf("%w: %v", agentcanvas.ErrInvalidRequest, err))
	}
}
