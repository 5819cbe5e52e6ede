package server

import (
	"errors"
	"net/http"

	"StudySync/core/account"
	"StudySync/core/errs"
	"StudySync/model"
)

const maxAvatarSize = 5 << 20

// userResponse 注册、登录、资料接口的返回体
type userResponse struct {
	ID             int64              `json:"_id"`
	Username       string             `json:"username"`
	Email          string             `json:"email"`
	ProfilePicture string             `json:"profilePicture"`
	Bio            string             `json:"bio"`
	Settings       model.UserSettings `json:"settings"`
	Token          string             `json:"token,omitempty"`
}

func newUserResponse(user *model.User, token string) userResponse {
	return userResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ProfilePicture: user.ProfilePicture,
		Bio:            user.Bio,
		Settings:       user.Settings.Data(),
		Token:          token,
	}
}

// RegisterHandler POST /users
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var in account.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(result.User, result.Token))
}

// LoginHandler POST /users/login
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in account.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(result.User, result.Token))
}

// GetProfileHandler GET /users/profile
func (s *Server) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	user, err := s.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, ""))
}

// UpdateProfileHandler PUT /users/profile，返回新令牌
func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	var in account.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.accounts.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(result.User, result.Token))
}

// UploadProfilePictureHandler POST /users/profile/picture，multipart 字段 file
func (s *Server) UploadProfilePictureHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize+(1<<20))
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, errs.Validation("File too large, maximum size is 5MB"))
			return
		}
		writeError(w, r, errs.Validation("Invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errs.Validation("No file uploaded"))
		return
	}
	defer file.Close()

	if header.Size > maxAvatarSize {
		writeError(w, r, errs.Validation("File too large, maximum size is 5MB"))
		return
	}

	user, err := s.accounts.UploadAvatar(r.Context(), userID, header.Filename,
		header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, ""))
}

// DeleteAccountHandler DELETE /users/account
func (s *Server) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	if err := s.accounts.DeleteAccount(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Account and all associated data deleted successfully")
}

// ResetDataHandler POST /users/reset-data
func (s *Server) ResetDataHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	if err := s.accounts.ResetData(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "All user data has been reset successfully")
}
