package api

import (
	"errors"
	"net/http"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/auth"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse extends the login result with the issued token so
// non-browser clients can send it as a bearer header.
type loginResponse struct {
	auth.LoginResult
	Token string `json:"token,omitempty"`
}

// Login checks credentials and starts a session.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res := s.gate.Login(req.Username, req.Password)
	switch res.Status {
	case auth.StatusPending:
		JSON(w, http.StatusBadRequest, loginResponse{LoginResult: res})
		return
	case auth.StatusFailure:
		s.log.Info("login failed", "user", req.Username)
		JSON(w, http.StatusUnauthorized, loginResponse{LoginResult: res})
		return
	}

	st, err := s.sessions.Create(r.Context(), res.Username, res.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, exp, err := s.gate.IssueToken(res.Username, res.DisplayName, st.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.gate.SetCookie(w, token, exp, s.secureCookies)
	s.record(r.Context(), res.Username, store.ActivityLogin, "")
	JSON(w, http.StatusOK, loginResponse{LoginResult: res, Token: token})
}

// Register creates a credential record. It does not sign the user in.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.gate.Register(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.record(r.Context(), out.Username, store.ActivityRegister, out.Email)
	JSON(w, http.StatusCreated, out)
}

// Logout destroys the session and clears the cookie. It succeeds for
// callers that are not signed in.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if id, err := s.gate.Authenticate(r); err == nil {
		if err := s.sessions.Destroy(r.Context(), id.SessionID); err != nil {
			s.log.Warn("failed to destroy session", "session", id.SessionID, "error", err)
		}
		s.record(r.Context(), id.Username, store.ActivityLogout, "")
	}
	s.gate.ClearCookie(w)
	JSON(w, http.StatusOK, auth.LoginResult{Status: auth.StatusPending})
}

// Status reports whether the caller holds a live session.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	id, err := s.gate.Authenticate(r)
	if err != nil {
		JSON(w, http.StatusOK, auth.LoginResult{Status: auth.StatusPending})
		return
	}
	if _, err := s.sessions.Get(r.Context(), id.SessionID); err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.writeError(w, r, err)
			return
		}
		s.gate.ClearCookie(w)
		JSON(w, http.StatusOK, auth.LoginResult{Status: auth.StatusPending})
		return
	}
	JSON(w, http.StatusOK, auth.LoginResult{
		Status:      auth.StatusSuccess,
		Username:    id.Username,
		DisplayName: id.DisplayName,
	})
}

// identity returns the caller attached by the auth middleware.
func identity(r *http.Request) (*auth.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return nil, &apperr.Error{Kind: apperr.KindAuth, Msg: "please log in"}
	}
	return id, nil
}
