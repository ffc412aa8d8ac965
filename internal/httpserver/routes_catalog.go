package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/clusters/internal/catalog"
	"github.com/robalobadob/clusters/internal/puzzle"
)

// mountCatalog registers the read-only puzzle listing.
//   - GET /puzzles            → [{id,title,date,author}]
//   - GET /puzzles/{id}       → the puzzle document
//   - GET /puzzles/{id}/share → {"payload": base64} for ?custom= links
func (s *Server) mountCatalog(r chi.Router) {
	r.Get("/puzzles", s.handleListPuzzles)
	r.Get("/puzzles/{id}", s.handleGetPuzzle)
	r.Get("/puzzles/{id}/share", s.handleSharePuzzle)
}

func (s *Server) handleListPuzzles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List()
	if err != nil {
		log.Error().Err(err).Msg("list puzzles")
		writeError(w, http.StatusInternalServerError, "catalog_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// loadPuzzle maps catalog errors onto responses; it reports false when it wrote one.
func (s *Server) loadPuzzle(w http.ResponseWriter, id string) (puzzle.Definition, bool) {
	def, err := s.catalog.Load(id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "puzzle_not_found")
		return def, false
	case errors.Is(err, puzzle.ErrInvalidPuzzle):
		writeError(w, http.StatusUnprocessableEntity, "invalid_puzzle")
		return def, false
	case err != nil:
		log.Warn().Err(err).Str("puzzle", id).Msg("load puzzle")
		writeError(w, http.StatusUnprocessableEntity, "unreadable_puzzle")
		return def, false
	}
	return def, true
}

func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	def, ok := s.loadPuzzle(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleSharePuzzle(w http.ResponseWriter, r *http.Request) {
	def, ok := s.loadPuzzle(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	payload, err := puzzle.Encode(def)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payload": payload})
}
