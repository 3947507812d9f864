package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentcanvas/agentcanvas"
	"github.com/agentcanvas/agentcanvas/cookie"
	"github.com/agentcanvas/agentcanvas/middleware"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	start, err := s.engine.BeginSignIn(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Add("Set-Cookie", start.StateCookie)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, start.AuthorizationURL, http.StatusFound)
}

// callback consumes the state cookie on every outcome, so a failed attempt
// cannot be replayed with the same state.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Set-Cookie", s.engine.ClearStateCookie())

	q := r.URL.Query()
	if q.Get("error") != "" {
		s.fail(w, r, agentcanvas.ErrUnauthenticated)
		return
	}

	res, err := s.engine.CompleteSignIn(r.Context(), q.Get("code"), q.Get("state"), cookie.Read(r, cookie.StateName))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Add("Set-Cookie", res.SessionCookie)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, s.postLogin, http.StatusFound)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	res, err := s.engine.Refresh(r.Context(), cookie.Read(r, cookie.SessionName), force)
	if err != nil {
		if errors.Is(err, agentcanvas.ErrUnauthenticated) {
			w.Header().Add("Set-Cookie", s.engine.ClearSessionCookie())
		}
		s.fail(w, r, err)
		return
	}
	if res.Refreshed {
		w.Header().Add("Set-Cookie", res.SessionCookie)
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Refreshed: res.Refreshed,
		Session:   s.engine.SessionView(res.Session),
	})
}

type refreshResponse struct {
	Refreshed bool                    `json:"refreshed"`
	Session   agentcanvas.SessionView `json:"session"`
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	clear, err := s.engine.Logout(r.Context(), cookie.Read(r, cookie.SessionName))
	if clear != "" {
		w.Header().Add("Set-Cookie", clear)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": s.postLogout})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	env, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		s.fail(w, r, agentcanvas.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.SessionView(env.Data))
}

func (s *Server) jwks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(s.engine.JWKS())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	status := http.StatusOK
	if h.RevocationEnabled && !h.RevocationAvailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Status:              http.StatusText(status),
		RevocationEnabled:   h.RevocationEnabled,
		RevocationAvailable: h.RevocationAvailable,
		RevocationLatencyMS: h.RevocationLatency.Milliseconds(),
		MembershipEntries:   h.MembershipEntries,
	})
}

type healthResponse struct {
	Status              string `json:"status"`
	RevocationEnabled   bool   `json:"revocationEnabled"`
	RevocationAvailable bool   `json:"revocationAvailable"`
	RevocationLatencyMS int64  `json:"revocationLatencyMs"`
	MembershipEntries   int    `json:"membershipEntries"`
}
