package httpapi

import (
	"net/http"

	"github.com/agentcanvas/agentcanvas"
	"github.com/agentcanvas/agentcanvas/middleware"
)

type securityResponse struct {
	ProductionMode      bool     `json:"productionMode"`
	SecureCookies       bool     `json:"secureCookies"`
	SessionLifetimeSec  int64    `json:"sessionLifetimeSeconds"`
	SessionCipher       string   `json:"sessionCipher"`
	IDTokenAlgorithm    string   `json:"idTokenAlgorithm"`
	IDTokenKeyID        string   `json:"idTokenKeyId"`
	IDTokenKeyGenerated bool     `json:"idTokenKeyGenerated"`
	RefreshWindowSec    int64    `json:"refreshWindowSeconds"`
	MembershipTTLSec    int64    `json:"membershipTtlSeconds"`
	RevocationEnabled   bool     `json:"revocationEnabled"`
	AuditEnabled        bool     `json:"auditEnabled"`
	AuditDropped        uint64   `json:"auditDropped"`
	SuperAdminCount     int      `json:"superAdminCount"`
	Warnings            []string `json:"warnings"`
}

// security reports the effective hardening posture. Super admins only.
func (s *Server) security(w http.ResponseWriter, _ *http.Request) {
	rep := s.engine.SecurityReport()
	warnings := rep.LintWarnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, securityResponse{
		ProductionMode:      rep.ProductionMode,
		SecureCookies:       rep.SecureCookies,
		SessionLifetimeSec:  int64(rep.SessionLifetime.Seconds()),
		SessionCipher:       rep.SessionCipher,
		IDTokenAlgorithm:    rep.IDTokenAlgorithm,
		IDTokenKeyID:        rep.IDTokenKeyID,
		IDTokenKeyGenerated: rep.IDTokenKeyGenerated,
		RefreshWindowSec:    int64(rep.RefreshWindow.Seconds()),
		MembershipTTLSec:    int64(rep.MembershipTTL.Seconds()),
		RevocationEnabled:   rep.RevocationEnabled,
		AuditEnabled:        rep.AuditEnabled,
		AuditDropped:        s.engine.AuditDropped(),
		SuperAdminCount:     rep.SuperAdminCount,
		Warnings:            warnings,
	})
}

type tokenInfoResponse struct {
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	ExpiresAt int64  `json:"exp"`
}

// tokenInfo echoes the verified claims of a bearer identity token, for
// services that hold the token but not the session cookie.
func (s *Server) tokenInfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.fail(w, r, agentcanvas.ErrUnauthenticated)
		return
	}
	resp := tokenInfoResponse{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}
