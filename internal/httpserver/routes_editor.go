package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/clusters/internal/editor"
)

// maxEditorBody bounds puzzle documents posted to the editor endpoints.
const maxEditorBody = 1 << 20

// mountEditor registers the authoring helpers. Bodies are raw puzzle JSON.
func (s *Server) mountEditor(r chi.Router) {
	r.Route("/editor", func(r chi.Router) {
		r.Post("/check", s.handleEditorCheck)
		r.Post("/skeleton", s.handleEditorSkeleton)
		r.Post("/share", s.handleEditorShare)
	})
}

type checkRes struct {
	editor.Diagnostic
	Filename string `json:"filename"`
}

func (s *Server) handleEditorCheck(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEditorBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body")
		return
	}
	d, _ := editor.Check(raw)
	writeJSON(w, http.StatusOK, checkRes{Diagnostic: d, Filename: editor.Filename(raw)})
}

type skeletonReq struct {
	Groups int `json:"groups"`
	Size   int `json:"size"`
}

// handleEditorSkeleton returns the template document, pretty-printed the way
// the editor shows it.
func (s *Server) handleEditorSkeleton(w http.ResponseWriter, r *http.Request) {
	var req skeletonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	out, err := editor.Pretty(editor.Skeleton(req.Groups, req.Size, s.now()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleEditorShare builds a play link for the posted document. ?base= picks
// the site the link points at; CLIENT_ORIGIN otherwise.
func (s *Server) handleEditorShare(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEditorBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body")
		return
	}
	base := r.URL.Query().Get("base")
	if base == "" {
		base = s.cfg.ClientOrigin + "/"
	}
	link, err := editor.ShareURL(base, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}
