package httpapi

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

func (s *Server) StorageObject(w http.ResponseWriter, r *http.Request) {
	s.serveStored(w, r, chi.URLParam(r, "bucket"), chi.URLParam(r, "key"))
}

// SignedDownload serves the object a download token grants, without a session.
func (s *Server) SignedDownload(w http.ResponseWriter, r *http.Request) {
	bucket, key, err := s.Tokens.ParseDownloadToken(r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.serveStored(w, r, bucket, key)
}

func (s *Server) serveStored(w http.ResponseWriter, r *http.Request, bucket, key string) {
	path, err := s.Storage.Path(bucket, key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		WriteError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}
