package transport

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Handler is what peernode.Peer implements, and what Server dispatches
// HTTP requests into. Kept as an interface so transport never imports
// peernode (peernode imports transport for the client side instead).
type Handler interface {
	Ping() bool
	Heartbeat(epoch uint64) bool
	RequestVote(candidateID, newEpoch uint64) bool
	RegisterFiles(peerID uint64, files []string) bool
	SearchFile(filename string) []uint64
	GetFileIndex() map[uint64][]string
	DownloadFile(filename string) ([]byte, bool)
}

// Server exposes a Handler's seven RPCs over HTTP, following the
// teacher's handler shape: one small struct wrapping a backing
// manager, one method per route, respondJSON/respondError throughout.
type Server struct {
	handler Handler
	log     *slog.Logger

	httpServer *http.Server
}

// NewServer builds a Server for handler, listening on addr once
// ListenAndServe is called.
func NewServer(addr string, handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{handler: handler, log: log}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/rpc/ping", s.handlePing).Methods("GET")
	r.HandleFunc("/rpc/heartbeat", s.handleHeartbeat).Methods("POST")
	r.HandleFunc("/rpc/request_vote", s.handleRequestVote).Methods("POST")
	r.HandleFunc("/rpc/register_files", s.handleRegisterFiles).Methods("POST")
	r.HandleFunc("/rpc/search_file", s.handleSearchFile).Methods("POST")
	r.HandleFunc("/rpc/get_file_index", s.handleGetFileIndex).Methods("GET")
	r.HandleFunc("/rpc/download_file", s.handleDownloadFile).Methods("POST")
	return r
}

// Handler exposes the underlying http.Handler for tests and for
// embedding under httptest.NewServer without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe begins serving and blocks until the listener fails
// or Close is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Close() error {
	return s.httpServer.Close()
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, PingResponse{OK: s.handler.Ping()})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accepted := s.handler.Heartbeat(req.Epoch)
	respondJSON(w, http.StatusOK, HeartbeatResponse{Accepted: accepted})
}

func (s *Server) handleRequestVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	granted := s.handler.RequestVote(req.CandidateID, req.NewEpoch)
	respondJSON(w, http.StatusOK, VoteResponse{Granted: granted})
}

func (s *Server) handleRegisterFiles(w http.ResponseWriter, r *http.Request) {
	var req RegisterFilesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok := s.handler.RegisterFiles(req.PeerID, req.Files)
	if !ok {
		s.log.Debug("register_files rejected: not tracker", "peer_id", req.PeerID)
	}
	respondJSON(w, http.StatusOK, RegisterFilesResponse{OK: ok})
}

func (s *Server) handleSearchFile(w http.ResponseWriter, r *http.Request) {
	var req SearchFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids := s.handler.SearchFile(req.Filename)
	if ids == nil {
		ids = []uint64{}
	}
	respondJSON(w, http.StatusOK, SearchFileResponse{PeerIDs: ids})
}

func (s *Server) handleGetFileIndex(w http.ResponseWriter, r *http.Request) {
	idx := s.handler.GetFileIndex()
	if idx == nil {
		idx = map[uint64][]string{}
	}
	respondJSON(w, http.StatusOK, FileIndexResponse{Index: idx})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	var req DownloadFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, ok := s.handler.DownloadFile(req.Filename)
	if !ok {
		s.log.Debug("download_file: not found or unreadable", "filename", req.Filename)
		respondJSON(w, http.StatusOK, DownloadFileResponse{Data: ""})
		return
	}
	respondJSON(w, http.StatusOK, DownloadFileResponse{Data: base64.StdEncoding.EncodeToString(data)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
