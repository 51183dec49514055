// Package server exposes a Dictionary over read-only HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/japaniel/scrb/pkg/dictionary"
	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/phrase"
	"github.com/japaniel/scrb/pkg/trie"
)

// maxSuggestions bounds the did-you-mean list of a 404.
const maxSuggestions = 5

// Handler serves word lookups and spawn command descriptions.
type Handler struct {
	dict     *dictionary.Dictionary
	resolver *phrase.Resolver
}

// NewHandler creates a Handler. analyzer may be nil, in which case
// commands are split on whitespace only.
func NewHandler(dict *dictionary.Dictionary, analyzer *phrase.Analyzer) *Handler {
	return &Handler{
		dict:     dict,
		resolver: &phrase.Resolver{Analyzer: analyzer, Words: dict},
	}
}

// Routes configures all routes and returns the router. Requests are
// logged to logger when it is not nil.
func (h *Handler) Routes(logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if logger != nil {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats", h.Stats)
	r.Get("/words/{word}", h.GetWord)
	r.Get("/describe", h.Describe)

	return r
}

type modifierView struct {
	Kind  string      `json:"kind"`
	Value interface{} `json:"value"`
}

type entryView struct {
	Word      string         `json:"word"`
	Modifiers []modifierView `json:"modifiers"`
}

func viewEntry(e trie.Entry) entryView {
	v := entryView{Word: e.Word, Modifiers: make([]modifierView, 0, len(e.Modifiers))}
	for _, m := range e.Modifiers {
		mv := modifierView{Kind: m.Kind.String(), Value: m.Value}
		if m.Kind == modifier.KindColor {
			mv.Value = m.Color.Hex()
		}
		v.Modifiers = append(v.Modifiers, mv)
	}
	return v
}

// GetWord handles GET /words/{word}
func (h *Handler) GetWord(w http.ResponseWriter, r *http.Request) {
	word := chi.URLParam(r, "word")
	// chi routes on RawPath when the request has one, leaving params escaped
	if r.URL.RawPath != "" {
		var err error
		if word, err = url.PathUnescape(word); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid word")
			return
		}
	}

	e, ok, err := h.dict.Lookup(r.Context(), word)
	if err != nil {
		log.Printf("lookup %q: %v", word, err)
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":       "Word not found",
			"suggestions": nonNil(h.dict.Suggest(word, maxSuggestions)),
		})
		return
	}
	respondJSON(w, http.StatusOK, viewEntry(e))
}

// Describe handles GET /describe?q=big+red+ball
func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	app, err := h.resolver.Resolve(r.Context(), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, phrase.ErrEmptyCommand):
		respondError(w, http.StatusBadRequest, "Missing command")
		return
	case errors.Is(err, phrase.ErrConsoleCommand):
		respondError(w, http.StatusBadRequest, "Console commands cannot be described")
		return
	case err != nil:
		log.Printf("describe: %v", err)
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// Stats handles GET /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.dict.Stats())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
