package pds

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/carlmjohnson/versioninfo"
	"github.com/pdscore/go-pdscore/pdsutil"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
)

// Server holds the HTTP server and its dependencies
type Server struct {
	store    *Store
	accounts AccountManager
	cfg      Config
	logger   *slog.Logger
}

func NewServer(store *Store, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		accounts: store,
		cfg:      cfg,
		logger:   logger.With("component", "server"),
	}
}

// Handler returns the instrumented route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /_health", s.handleHealth)
	mux.HandleFunc("POST /xrpc/com.atproto.admin.disableAccountInvites", s.requireAdmin(s.handleSetAccountInvites(true)))
	mux.HandleFunc("POST /xrpc/com.atproto.admin.enableAccountInvites", s.requireAdmin(s.handleSetAccountInvites(false)))
	mux.HandleFunc("POST /xrpc/com.atproto.server.createInviteCode", s.requireAdmin(s.handleCreateInviteCode))
	mux.HandleFunc("POST /xrpc/com.atproto.repo.createRecord", s.requireAdmin(s.handleCreateRecord))
	mux.HandleFunc("GET /xrpc/com.atproto.repo.getRecord", s.handleGetRecord)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	return otelhttp.NewHandler(mux, "")
}

// Run starts the HTTP server (blocking)
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.cfg.Bind)
	return http.ListenAndServe(s.cfg.Bind, s.Handler())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "hello, this is an atproto personal data server\n")
}

// handleHealth handles GET /_health - returns version information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version": versioninfo.Short(),
	})
}

// writeXRPCError writes an error body in the XRPC {error, message} shape
func writeXRPCError(w http.ResponseWriter, status int, name string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   name,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeXRPCError(w, http.StatusInternalServerError, "InternalError", fmt.Sprintf("error encoding response: %v", err))
	}
}

// decodeJSONBody applies the content-type guard, then decodes the body into v. It writes
// the error response itself and returns false on failure.
func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if _, err := RequireContentType(r, "application/json"); err != nil {
		writeXRPCError(w, http.StatusUnsupportedMediaType, "InvalidRequest", err.Error())
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

type setAccountInvitesInput struct {
	Account string `json:"account"`
	Note    string `json:"note,omitempty"`
}

// handleSetAccountInvites handles com.atproto.admin.{disable,enable}AccountInvites
func (s *Server) handleSetAccountInvites(disabled bool) http.HandlerFunc {
	attr := InvitesEnabledAttr
	if disabled {
		attr = InvitesDisabledAttr
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body setAccountInvitesInput
		if !s.decodeJSONBody(w, r, &body) {
			return
		}
		if _, err := syntax.ParseDID(body.Account); err != nil {
			writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("invalid account: %v", err))
			return
		}

		err := s.accounts.SetAccountInvitesDisabled(r.Context(), body.Account, disabled)
		if errors.Is(err, ErrAccountNotFound) {
			writeXRPCError(w, http.StatusBadRequest, "AccountNotFound", fmt.Sprintf("account not found: %s", body.Account))
			return
		}
		if err != nil {
			s.logger.Error("failed to update account invites", "did", body.Account, "error", err)
			writeXRPCError(w, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		InviteUpdatesCounter.Add(r.Context(), 1, metric.WithAttributes(attr))
		if body.Note != "" {
			s.logger.Info("moderation note", "did", body.Account, "disabled", disabled, "note", body.Note)
		}
		w.WriteHeader(http.StatusOK)
	}
}

type createInviteCodeInput struct {
	UseCount   int    `json:"useCount"`
	ForAccount string `json:"forAccount"`
}

// handleCreateInviteCode handles com.atproto.server.createInviteCode
func (s *Server) handleCreateInviteCode(w http.ResponseWriter, r *http.Request) {
	var body createInviteCodeInput
	if !s.decodeJSONBody(w, r, &body) {
		return
	}
	code, err := s.store.CreateInviteCode(r.Context(), body.ForAccount, adminUsername)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		writeXRPCError(w, http.StatusBadRequest, "AccountNotFound", fmt.Sprintf("account not found: %s", body.ForAccount))
		return
	case errors.Is(err, ErrInvitesDisabled):
		writeXRPCError(w, http.StatusBadRequest, "InvitesDisabled", err.Error())
		return
	case err != nil:
		s.logger.Error("failed to create invite code", "did", body.ForAccount, "error", err)
		writeXRPCError(w, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}
	InviteCodesCreatedCounter.Add(r.Context(), 1)
	writeJSON(w, map[string]string{"code": code})
}

type createRecordInput struct {
	Repo       string          `json:"repo"`
	Collection string          `json:"collection"`
	Record     json.RawMessage `json:"record"`
}

// handleCreateRecord handles com.atproto.repo.createRecord
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var body createRecordInput
	if !s.decodeJSONBody(w, r, &body) {
		return
	}
	if len(body.Record) == 0 {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "missing record")
		return
	}

	ref, err := s.store.PutRecord(r.Context(), body.Repo, body.Collection, body.Record)
	switch {
	case errors.Is(err, ErrInvalidRecord):
		writeXRPCError(w, http.StatusBadRequest, "InvalidRecord", err.Error())
		return
	case errors.Is(err, ErrAccountNotFound):
		writeXRPCError(w, http.StatusBadRequest, "RepoNotFound", fmt.Sprintf("could not find repo: %s", body.Repo))
		return
	case err != nil:
		s.logger.Error("failed to create record", "repo", body.Repo, "collection", body.Collection, "error", err)
		writeXRPCError(w, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}
	writeJSON(w, ref)
}

// handleGetRecord handles com.atproto.repo.getRecord
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	repo, collection, rkey := q.Get("repo"), q.Get("collection"), q.Get("rkey")
	if repo == "" || collection == "" || rkey == "" {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "repo, collection and rkey are required")
		return
	}

	rec, err := s.store.GetRecord(r.Context(), repo, collection, rkey)
	if errors.Is(err, ErrRecordNotFound) {
		writeXRPCError(w, http.StatusBadRequest, "RecordNotFound", fmt.Sprintf("could not locate record: %s", recordURI(repo, collection, pdsutil.EncodeURIComponent(rkey))))
		return
	}
	if err != nil {
		s.logger.Error("failed to load record", "repo", repo, "collection", collection, "rkey", rkey, "error", err)
		writeXRPCError(w, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}
	writeJSON(w, rec)
}
