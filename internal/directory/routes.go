package directory

import "github.com/gorilla/mux"

func newMux(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ns/register", s.handleRegister).Methods("POST")
	r.HandleFunc("/ns/unregister", s.handleUnregister).Methods("POST")
	r.HandleFunc("/ns/list", s.handleList).Methods("GET")
	r.HandleFunc("/ns/lookup", s.handleLookup).Methods("GET")
	return r
}
