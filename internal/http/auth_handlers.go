package httpapi

import (
	"net/http"

	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/services"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Specialization string `json:"specialization"`
	Availability   string `json:"availability"`
}

type AccountDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type TokenResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    int64      `json:"expiresAt"`
	Account      AccountDTO `json:"account"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, err := services.AuthenticateAdmin(r.Context(), s.DB, s.Tokens, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeTokens(w, AccountDTO{ID: admin.ID, Email: admin.Email, Name: admin.Name, Role: services.RoleAdmin})
}

func (s *Server) ContractorLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	contractor, err := services.AuthenticateContractor(r.Context(), s.DB, s.Tokens, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeTokens(w, contractorAccount(contractor))
}

func (s *Server) ContractorSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	contractor, err := services.SignupContractor(r.Context(), s.DB, s.Tokens, services.ContractorSignup{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Specialization: req.Specialization,
		Availability:   req.Availability,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, contractor)
}

// Refresh reissues tokens while the account is still allowed to sign in.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, claims, err := s.Tokens.ParseToken(req.RefreshToken)
	if err != nil || !token.Valid || claims["typ"] != "refresh" {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	roles := services.ClaimRoles(claims)
	switch {
	case hasRole(roles, services.RoleAdmin):
		ok, err := services.AdminExists(r.Context(), s.DB, subject)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !ok {
			WriteError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}
		email, _ := claims["email"].(string)
		s.writeTokens(w, AccountDTO{ID: subject, Email: email, Role: services.RoleAdmin})
	case hasRole(roles, services.RoleContractor):
		contractor, err := services.GetContractor(r.Context(), s.DB, subject)
		if err != nil || contractor.Status != models.ContractorApproved {
			WriteError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}
		s.writeTokens(w, contractorAccount(contractor))
	default:
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
	}
}

// Logout is stateless; clients drop their tokens.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func contractorAccount(c models.Contractor) AccountDTO {
	return AccountDTO{ID: c.ID, Email: c.Email, Name: c.Name, Role: services.RoleContractor}
}

func (s *Server) writeTokens(w http.ResponseWriter, account AccountDTO) {
	roles := []string{account.Role}
	access, exp, err := s.Tokens.CreateAccessToken(account.ID, account.Email, roles)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	refresh, err := s.Tokens.CreateRefreshToken(account.ID, roles)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		Account:      account,
	})
}
