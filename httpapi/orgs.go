package httpapi

import (
	"net/http"

	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/middleware"
	"github.com/agentcanvas/agentcanvas/session"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type memberResponse struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

func toMemberResponse(m idp.Membership) memberResponse {
	return memberResponse{
		ID:     m.ID,
		UserID: m.UserID,
		OrgID:  m.OrganizationID,
		Role:   m.Role.Slug,
		Status: m.Status,
	}
}

type addMemberRequest struct {
	UserID string       `json:"userId"`
	Role   session.Role `json:"role"`
}

type updateMemberRequest struct {
	Role session.Role `json:"role"`
}

func caller(r *http.Request) *session.Data {
	env, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return nil
	}
	return env.Data
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	ms, err := s.engine.ListOrgMembers(r.Context(), caller(r), mux.Vars(r)["orgID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": lo.Map(ms, func(m idp.Membership, _ int) memberResponse { return toMemberResponse(m) }),
	})
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = session.RoleMember
	}
	m, err := s.engine.AddOrgMember(r.Context(), caller(r), mux.Vars(r)["orgID"], req.UserID, req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberResponse(*m))
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	var req updateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	m, err := s.engine.UpdateOrgMemberRole(r.Context(), caller(r), vars["orgID"], vars["membershipID"], req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(*m))
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.engine.RemoveOrgMember(r.Context(), caller(r), vars["orgID"], vars["membershipID"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
