package api

import (
	"net/http"

	"github.com/novamet/tradesite/pkg/httputil"
)

// login exchanges an access token for a confirmed session. A failed
// attempt is recorded as a failed_login event; a successful one is
// written to the login history after the suspicious-login check ran
// against the history that preceded it.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token string `json:"token"`
	}
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if input.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	// Route the credential through the same resolver the middleware uses
	probe := r.Clone(r.Context())
	probe.Header = r.Header.Clone()
	probe.Header.Set("Authorization", "Bearer "+input.Token)

	sess, err := s.resolver.Resolve(probe)
	if err != nil {
		s.logger.WithError(err).Error("login resolution failed")
		httputil.WriteInternalError(w)
		return
	}
	if sess == nil {
		//nolint:errcheck // ledger handles its own failures
		s.ledger.LogFailedLogin(r.Context(), "unknown", r)
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if s.detector != nil {
		s.detector.Check(r.Context(), sess.UserID, r)
	}
	//nolint:errcheck // ledger handles its own failures
	s.ledger.LogLogin(r.Context(), sess.UserID, sess.Username, r)

	httputil.WriteSuccess(w, map[string]interface{}{
		"userId":   sess.UserID,
		"username": sess.Username,
		"role":     string(sess.Role),
	})
}
