package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgallion1/docsync/internal/docdata"
	"github.com/dgallion1/docsync/internal/document"
	"github.com/dgallion1/docsync/internal/workitem"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const maxTitleLength = 200

type queryRequest struct {
	QueryID string `json:"query_id"`
	Mode    string `json:"mode"`
	Layout  string `json:"layout"`
}

type createDocumentRequest struct {
	Title   string         `json:"title"`
	Queries []queryRequest `json:"queries"`
}

func (req *createDocumentRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, maxTitleLength)),
		validation.Field(&req.Queries, validation.Required, validation.Each(validation.By(validateQuery))),
	)
}

func validateQuery(value any) error {
	q, ok := value.(queryRequest)
	if !ok {
		return errors.New("invalid query")
	}
	return validation.ValidateStruct(&q,
		validation.Field(&q.QueryID, validation.Required),
		validation.Field(&q.Mode, validation.In(string(workitem.ModeFlat), string(workitem.ModeTree), string(workitem.ModeOneHop))),
		validation.Field(&q.Layout, validation.Required),
	)
}

type moveRequest struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

func (req *moveRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Before, validation.Required.When(req.After == "").Error("before or after is required")),
		validation.Field(&req.After, validation.By(func(any) error {
			if req.Before != "" && req.After != "" {
				return errors.New("only one of before and after may be set")
			}
			return nil
		})),
	)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	defs := make([]docdata.QueryDef, len(req.Queries))
	for i, q := range req.Queries {
		mode, err := workitem.ParseMode(q.Mode)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		defs[i] = docdata.QueryDef{Index: i, QueryID: q.QueryID, Mode: mode, Layout: q.Layout}
	}

	doc := document.New(uuid.NewString(), req.Title)
	if err := docdata.New(doc).SaveQueries(defs); err != nil {
		jsonError(w, "failed to store queries: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.orchestrator.Documents().Put(r.Context(), doc); err != nil {
		jsonError(w, "failed to store document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("document created", "doc_id", doc.ID, "queries", len(defs))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"doc_id": doc.ID})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.orchestrator.Documents().List(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.orchestrator.Documents().Get(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	store := docdata.New(doc)
	defs, err := store.Queries()
	if err != nil {
		jsonError(w, "failed to read queries: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":    doc.ID,
		"title":     doc.Title,
		"queries":   defs,
		"bookmarks": doc.Bookmarks(),
		"text":      doc.Text(store.Resolver()),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.orchestrator.Documents().Delete(r.Context(), docID); err != nil {
		storeError(w, err)
		return
	}
	s.log.Info("document deleted", "doc_id", docID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.orchestrator.Documents().Get(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.docx"`, doc.ID))
	if err := doc.WriteDOCX(w, docdata.New(doc).Resolver()); err != nil {
		s.log.Error("export failed", "doc_id", doc.ID, "error", err)
	}
}

// handleMoveBookmark relocates a section the way an editor would by dragging
// it in front of or behind another section.
func (s *Server) handleMoveBookmark(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	name := chi.URLParam(r, "name")

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := s.orchestrator.UpdateDocument(r.Context(), docID, func(doc *document.Document) error {
		anchor, after := req.Before, false
		if anchor == "" {
			anchor, after = req.After, true
		}
		target, ok := doc.Bookmark(anchor)
		if !ok {
			return fmt.Errorf("anchor %s: %w", anchor, document.ErrBookmarkNotFound)
		}
		pos := target.Start
		if after {
			pos = target.End
		}
		return doc.MoveBookmark(name, pos)
	})
	switch {
	case errors.Is(err, document.ErrBookmarkNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"doc_id": docID, "moved": name})
}
