package httpapi

import (
	"net/http"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/wire"
	"github.com/go-chi/chi/v5"
)

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.PingResponse{Status: "OK"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Registration request")

	user, err := s.users.Register(r.Context(), req.Username, req.Salt, req.Verifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, wire.RegisterResponse{UserID: user.ID})
}

func (s *Server) salt(w http.ResponseWriter, r *http.Request) {
	var req wire.SaltRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	salt, err := s.users.GetSalt(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.SaltResponse{Salt: salt})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tokens, err := s.users.Login(r.Context(), req.Username, req.Verifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.TokenResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req wire.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tokens, err := s.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.TokenResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

// ownUser rejects access to another user's state.
func (s *Server) ownUser(r *http.Request) error {
	if chi.URLParam(r, "id") != userIDFromContext(r.Context()) {
		return common.ErrorForbidden
	}
	return nil
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	if err := s.ownUser(r); err != nil {
		s.writeError(w, r, err)
		return
	}

	value, err := s.users.GetState(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "field"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.StateValue{Value: value})
}

func (s *Server) putState(w http.ResponseWriter, r *http.Request) {
	if err := s.ownUser(r); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req wire.StateValue
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.users.PutState(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "field"), req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) backupUploadURL(w http.ResponseWriter, r *http.Request) {
	key, url, err := s.backups.UploadURL(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.PresignedURL{Key: key, URL: url})
}

func (s *Server) backupDownloadURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	url, err := s.backups.DownloadURL(r.Context(), userIDFromContext(r.Context()), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.PresignedURL{Key: key, URL: url})
}
