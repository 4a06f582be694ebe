package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"scriptportal-backend-go/internal/export"
	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type AssignmentRequest struct {
	JudgeID *string `json:"judgeId"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type SettingRequest struct {
	Value json.RawMessage `json:"value"`
}

type ContractorsResponse struct {
	Items []models.Contractor `json:"items"`
}

type ContactsResponse struct {
	Items []models.Contact `json:"items"`
}

type SettingsResponse struct {
	Items []models.SiteSetting `json:"items"`
}

type ActivityResponse struct {
	Items []models.ActivityEntry `json:"items"`
}

type ReviewsResponse struct {
	Items []services.ReviewDetail `json:"items"`
}

type DownloadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

func (s *Server) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := services.LoadDashboard(r.Context(), s.DB)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, dashboard)
}

func (s *Server) AdminActivity(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListActivity(r.Context(), s.DB, parseInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ActivityResponse{Items: items})
}

func (s *Server) AdminListScripts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items, err := services.ListScripts(r.Context(), s.DB, services.ScriptFilter{
		Status:  query.Get("status"),
		JudgeID: query.Get("judgeId"),
		Search:  query.Get("q"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ScriptsResponse{Items: items})
}

func (s *Server) AdminGetScript(w http.ResponseWriter, r *http.Request) {
	script, err := services.GetScript(r.Context(), s.DB, chi.URLParam(r, "scriptId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, script)
}

func (s *Server) AdminDeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteScript(r.Context(), s.DB, s.Storage, currentActor(r), chi.URLParam(r, "scriptId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AdminAssignScript(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	judgeID := ""
	if req.JudgeID != nil {
		judgeID = *req.JudgeID
	}
	script, contractor, err := services.AssignScript(r.Context(), s.DB, currentActor(r), chi.URLParam(r, "scriptId"), judgeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.Hub.Publish(services.EventScriptAssigned, script)
	if contractor != nil {
		assignee := *contractor
		s.notify(func(ctx context.Context, n *services.Notifier) { n.ScriptAssigned(ctx, script, assignee) })
	}
	WriteJSON(w, http.StatusOK, script)
}

func (s *Server) AdminSetScriptStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	script, err := services.SetScriptStatus(r.Context(), s.DB, currentActor(r), chi.URLParam(r, "scriptId"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, script)
}

func (s *Server) AdminDownloadScript(w http.ResponseWriter, r *http.Request) {
	script, err := services.GetScript(r.Context(), s.DB, chi.URLParam(r, "scriptId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	url, err := s.Storage.SignedURL(services.BucketScripts, script.FileKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, DownloadResponse{URL: url, FileName: script.FileName})
}

func (s *Server) AdminScriptReviews(w http.ResponseWriter, r *http.Request) {
	items, err := services.ReviewsForScript(r.Context(), s.DB, chi.URLParam(r, "scriptId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ReviewsResponse{Items: items})
}

func (s *Server) AdminReviewDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := services.LoadReviewDetail(r.Context(), s.DB, chi.URLParam(r, "reviewId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

// AdminExportReview renders the review to a PDF attachment.
func (s *Server) AdminExportReview(w http.ResponseWriter, r *http.Request) {
	detail, err := services.LoadReviewDetail(r.Context(), s.DB, chi.URLParam(r, "reviewId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	now := s.now()
	var buf bytes.Buffer
	if _, err := export.Render(&buf, export.FromReviewDetail(detail), export.Options{
		HeaderLogo:  s.Config.LogoHeaderPath,
		FooterLogo:  s.Config.LogoFooterPath,
		GeneratedAt: now,
	}); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(detail.Script.Title, now)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) AdminListContractors(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListContractors(r.Context(), s.DB, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ContractorsResponse{Items: items})
}

func (s *Server) AdminSetContractorStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	contractor, err := services.SetContractorStatus(r.Context(), s.DB, currentActor(r), chi.URLParam(r, "contractorId"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, contractor)
}

func (s *Server) AdminDeleteContractor(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteContractor(r.Context(), s.DB, currentActor(r), chi.URLParam(r, "contractorId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AdminListContacts(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListContacts(r.Context(), s.DB, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ContactsResponse{Items: items})
}

func (s *Server) AdminSyncContacts(w http.ResponseWriter, r *http.Request) {
	result, err := s.Contacts.Sync(r.Context(), s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) AdminSetContactStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := services.SetContactStatus(r.Context(), s.DB, currentActor(r), chi.URLParam(r, "contactId"), req.Status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) AdminDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := services.DeleteContact(r.Context(), s.DB, currentActor(r), chi.URLParam(r, "contactId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AdminListSettings(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListSettings(r.Context(), s.DB)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, SettingsResponse{Items: items})
}

func (s *Server) AdminGetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := services.GetSetting(r.Context(), s.DB, chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, setting)
}

func (s *Server) AdminPutSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Value) == 0 {
		WriteError(w, http.StatusBadRequest, "Setting value is required")
		return
	}
	setting, err := services.PutSetting(r.Context(), s.DB, chi.URLParam(r, "key"), req.Value)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	services.LogActivity(r.Context(), s.DB, currentActor(r), "setting_updated", "setting", setting.Key, nil)
	WriteJSON(w, http.StatusOK, setting)
}
