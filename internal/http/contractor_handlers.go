package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/rubric"
	"scriptportal-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type ScriptsResponse struct {
	Items []models.Script `json:"items"`
}

type NotesResponse struct {
	Items []models.PageNote `json:"items"`
}

type NoteRequest struct {
	Content string `json:"content"`
}

type SaveResponse struct {
	Queued bool `json:"queued"`
}

type SubmitRequest struct {
	OverallNotes string `json:"overallNotes"`
}

func (s *Server) ContractorMe(w http.ResponseWriter, r *http.Request) {
	contractor, err := services.GetContractor(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, contractor)
}

func (s *Server) ContractorScripts(w http.ResponseWriter, r *http.Request) {
	items, err := services.ContractorScripts(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ScriptsResponse{Items: items})
}

func (s *Server) OpenWorkspace(w http.ResponseWriter, r *http.Request) {
	workspace, err := s.Reviews.OpenWorkspace(r.Context(), CurrentUserID(r), chi.URLParam(r, "scriptId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, workspace)
}

func (s *Server) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := s.Reviews.ListNotes(r.Context(), CurrentUserID(r), chi.URLParam(r, "reviewId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, NotesResponse{Items: items})
}

// SavePageNote answers 204 when blank content removed the note.
func (s *Server) SavePageNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := s.Reviews.SavePageNote(r.Context(), CurrentUserID(r), chi.URLParam(r, "reviewId"), pageParam(chi.URLParam(r, "page")), req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if note == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, http.StatusOK, note)
}

func (s *Server) SaveRubric(w http.ResponseWriter, r *http.Request) {
	var fields rubric.Fields
	if !decodeJSON(w, r, &fields) {
		return
	}
	queued, err := s.Reviews.SaveRubric(r.Context(), CurrentUserID(r), chi.URLParam(r, "reviewId"), fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, SaveResponse{Queued: queued})
}

func (s *Server) GetPageRubric(w http.ResponseWriter, r *http.Request) {
	fields, err := s.Reviews.GetPageRubric(r.Context(), CurrentUserID(r), chi.URLParam(r, "reviewId"), pageParam(chi.URLParam(r, "page")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, fields)
}

func (s *Server) SavePageRubric(w http.ResponseWriter, r *http.Request) {
	var fields rubric.Fields
	if !decodeJSON(w, r, &fields) {
		return
	}
	queued, err := s.Reviews.SavePageRubric(r.Context(), CurrentUserID(r), chi.URLParam(r, "reviewId"), pageParam(chi.URLParam(r, "page")), fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, SaveResponse{Queued: queued})
}

func (s *Server) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	judgeID := CurrentUserID(r)
	review, err := s.Reviews.SubmitReview(r.Context(), judgeID, chi.URLParam(r, "reviewId"), req.OverallNotes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view := services.NewReviewView(review)
	s.Hub.Publish(services.EventReviewSubmitted, view)
	s.notify(func(ctx context.Context, n *services.Notifier) {
		script, err := services.GetScript(ctx, n.DB, review.ScriptID)
		if err != nil {
			return
		}
		name := ""
		if contractor, err := services.GetContractor(ctx, n.DB, judgeID); err == nil {
			name = contractor.Name
		}
		n.ReviewSubmitted(ctx, script, name)
	})
	WriteJSON(w, http.StatusOK, view)
}
