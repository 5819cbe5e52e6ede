package server

import (
	"net/http"
	"strconv"

	"StudySync/core/errs"
	"StudySync/core/studyguide"

	"github.com/gorilla/mux"
)

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ListStudyGuidesHandler GET /study-guides?subject=&search=&sort=&page=&limit=
func (s *Server) ListStudyGuidesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.guides.List(r.Context(), studyguide.ListQuery{
		Subject: q.Get("subject"),
		Search:  q.Get("search"),
		Sort:    q.Get("sort"),
		Page:    queryInt(r, "page", 1),
		Limit:   queryInt(r, "limit", 10),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MyStudyGuidesHandler GET /study-guides/my-guides
func (s *Server) MyStudyGuidesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	views, err := s.guides.ListByCreator(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// CreateStudyGuideHandler POST /study-guides
func (s *Server) CreateStudyGuideHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	var in studyguide.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	guide, err := s.guides.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, guide)
}

// GetStudyGuideHandler GET /study-guides/{id}
func (s *Server) GetStudyGuideHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.guides.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateStudyGuideHandler PUT /study-guides/{id}
func (s *Server) UpdateStudyGuideHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	var in studyguide.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	guide, err := s.guides.Update(r.Context(), mux.Vars(r)["id"], userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guide)
}

// DeleteStudyGuideHandler DELETE /study-guides/{id}
func (s *Server) DeleteStudyGuideHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	if err := s.guides.Delete(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Study guide removed")
}

// UpvoteStudyGuideHandler PUT /study-guides/{id}/upvote
func (s *Server) UpvoteStudyGuideHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, errs.Unauthorized("Not authorized"))
		return
	}
	result, err := s.guides.ToggleUpvote(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
