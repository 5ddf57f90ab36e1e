package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/intima-health/backend/internal/auth"
	"github.com/intima-health/backend/internal/store"
)

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	if _, err := h.db.CreateUser(req.Email, hashedPassword); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		log.Printf("Error creating user %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error loading user %s: %v", req.Email, err)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	pair, err := auth.GenerateTokenPair(user.ID)
	if err != nil {
		log.Printf("Error generating tokens for user %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshHandler rotates a refresh token into a new access/refresh pair.
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	userID, err := auth.ValidateToken(req.Refresh, auth.TokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	pair, err := auth.GenerateTokenPair(userID)
	if err != nil {
		log.Printf("Error rotating tokens for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromRequest(r))
}

// UpdateProfileHandler serves both profile completion and profile update:
// either path replaces the profile attributes and sets profile_completed.
func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)

	var profile store.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.db.UpdateUserProfile(user.ID, &profile)
	if err != nil {
		log.Printf("Error updating profile for user %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
