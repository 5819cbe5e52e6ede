package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"StudySync/core/account"
	"StudySync/core/auth"
	"StudySync/core/notify"
	"StudySync/core/studyguide"
	"StudySync/internal/testdb"
	"StudySync/model"
	"StudySync/repository"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAvatars struct{}

func (memAvatars) UploadAvatar(ctx context.Context, userID int64, filename, contentType string, r io.Reader, size int64) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("http://cdn.local/avatars/%d/%s", userID, filename), nil
}

type testApp struct {
	ts     *httptest.Server
	hub    *notify.Hub
	guides *studyguide.Service
	repo   repository.StudyGuideRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gdb := testdb.Open(t)
	users := repository.NewGormUserRepository(gdb)
	guides := repository.NewGormStudyGuideRepository(gdb)

	hub := notify.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	guideSvc := studyguide.NewService(guides, users, nil, hub, nil)
	accountSvc := account.NewService(users, guides, auth.NewTokenManager("test-secret", time.Hour), account.Options{
		Notifier: hub,
		Avatars:  memAvatars{},
		Cache:    guideSvc,
	})

	srv := New(accountSvc, guideSvc, hub, Options{AvatarUploads: true})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testApp{ts: ts, hub: hub, guides: guideSvc, repo: guides}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type userBody struct {
	ID       int64  `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

func (a *testApp) register(t *testing.T, username string) userBody {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var u userBody
	require.NoError(t, json.Unmarshal(data, &u))
	require.NotEmpty(t, u.Token)
	return u
}

func (a *testApp) createGuide(t *testing.T, token, title string) model.StudyGuide {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/api/study-guides", token, map[string]interface{}{
		"title":    title,
		"content":  "Photosynthesis converts light energy into chemical energy.",
		"subjects": []string{"Biology"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var g model.StudyGuide
	require.NoError(t, json.Unmarshal(data, &g))
	return g
}

func message(t *testing.T, data []byte) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Message
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	resp, data := app.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "StudySync API is running", string(data))
}

func TestRegisterLoginProfile(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	assert.Equal(t, "alice@example.com", alice.Email)

	resp, data := app.do(t, http.MethodPost, "/users", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "User already exists", message(t, data))

	resp, data = app.do(t, http.MethodPost, "/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", message(t, data))

	resp, data = app.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var logged userBody
	require.NoError(t, json.Unmarshal(data, &logged))
	assert.Equal(t, alice.ID, logged.ID)

	resp, data = app.do(t, http.MethodGet, "/users/profile", logged.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile userResponse
	require.NoError(t, json.Unmarshal(data, &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.Empty(t, profile.Token)
	assert.Equal(t, "en", profile.Settings.Language)

	resp, data = app.do(t, http.MethodPut, "/users/profile", logged.Token, map[string]string{"bio": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &profile))
	assert.Equal(t, "hello", profile.Bio)
	assert.NotEmpty(t, profile.Token)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)
	resp, data := app.do(t, http.MethodPost, "/users", "", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Contains(t, body.Errors, "email")
	assert.Contains(t, body.Errors, "password")
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t)

	resp, data := app.do(t, http.MethodPost, "/study-guides", "", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authorized, no token", message(t, data))

	resp, data = app.do(t, http.MethodGet, "/users/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authorized, token failed", message(t, data))
}

func TestStudyGuideLifecycle(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	guide := app.createGuide(t, alice.Token, "Cell Biology")
	assert.Equal(t, alice.ID, guide.CreatorID)
	assert.Equal(t, []int64{alice.ID}, guide.Contributors)

	resp, data := app.do(t, http.MethodGet, "/study-guides/"+guide.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view model.StudyGuideView
	require.NoError(t, json.Unmarshal(data, &view))
	require.NotNil(t, view.Creator)
	assert.Equal(t, "alice", view.Creator.Username)

	resp, data = app.do(t, http.MethodPut, "/study-guides/"+guide.ID, alice.Token, map[string]string{"content": "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Content must be at least 10 characters long", message(t, data))

	resp, data = app.do(t, http.MethodPut, "/study-guides/"+guide.ID, bob.Token, map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not authorized to update this study guide", message(t, data))

	resp, data = app.do(t, http.MethodPut, "/api/study-guides/"+guide.ID, alice.Token, map[string]string{
		"content": "Photosynthesis converts light energy into chemical energy in chloroplasts.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var updated model.StudyGuide
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Len(t, updated.Versions, 1)

	resp, data = app.do(t, http.MethodPut, "/study-guides/"+guide.ID+"/upvote", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var up model.UpvoteResult
	require.NoError(t, json.Unmarshal(data, &up))
	assert.Equal(t, model.UpvoteResult{Upvotes: 1, Upvoted: true}, up)

	resp, data = app.do(t, http.MethodPut, "/study-guides/"+guide.ID+"/upvote", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &up))
	assert.Equal(t, model.UpvoteResult{Upvotes: 0, Upvoted: false}, up)

	resp, data = app.do(t, http.MethodGet, "/study-guides/my-guides", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []model.StudyGuideView
	require.NoError(t, json.Unmarshal(data, &mine))
	assert.Len(t, mine, 1)

	resp, _ = app.do(t, http.MethodDelete, "/study-guides/"+guide.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, data = app.do(t, http.MethodDelete, "/study-guides/"+guide.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Study guide removed", message(t, data))

	resp, data = app.do(t, http.MethodGet, "/study-guides/"+guide.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Study guide not found", message(t, data))
}

func TestListPagination(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")

	for i := 0; i < 25; i++ {
		_, err := app.guides.Create(context.Background(), alice.ID, studyguide.CreateInput{
			Title:    fmt.Sprintf("Guide %02d", i),
			Content:  "Some study content that is long enough.",
			Subjects: []string{"History"},
		})
		require.NoError(t, err)
	}

	resp, data := app.do(t, http.MethodGet, "/study-guides?limit=10&page=3", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list model.StudyGuideList
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list.StudyGuides, 5)
	assert.Equal(t, 3, list.Pages)
	assert.Equal(t, 3, list.Page)
	assert.EqualValues(t, 25, list.Total)

	resp, data = app.do(t, http.MethodGet, "/api/study-guides?subject=Math", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Empty(t, list.StudyGuides)
	assert.EqualValues(t, 0, list.Total)
}

func TestDeleteAccountCascade(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	aliceGuide := app.createGuide(t, alice.Token, "Alice Notes")
	bobGuide := app.createGuide(t, bob.Token, "Bob Notes")

	resp, _ := app.do(t, http.MethodPut, "/study-guides/"+bobGuide.ID+"/upvote", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := app.do(t, http.MethodDelete, "/users/account", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "Account and all associated data deleted successfully", message(t, data))

	gone, err := app.repo.FindByID(context.Background(), aliceGuide.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := app.repo.FindByID(context.Background(), bobGuide.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, 0, kept.Upvotes)
	assert.Empty(t, kept.UpvotedBy)

	resp, data = app.do(t, http.MethodGet, "/users/profile", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "User not found", message(t, data))
}

func TestResetData(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	guide := app.createGuide(t, alice.Token, "Alice Notes")

	resp, data := app.do(t, http.MethodPost, "/users/reset-data", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "All user data has been reset successfully", message(t, data))

	gone, err := app.repo.FindByID(context.Background(), guide.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	resp, _ = app.do(t, http.MethodGet, "/users/profile", alice.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadProfilePicture(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")

	upload := func(contentType string) (*http.Response, []byte) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, app.ts.URL+"/users/profile/picture", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice.Token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, data
	}

	resp, data := upload("text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Profile picture must be an image", message(t, data))

	resp, data = upload("image/png")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var profile userResponse
	require.NoError(t, json.Unmarshal(data, &profile))
	assert.Equal(t, fmt.Sprintf("http://cdn.local/avatars/%d/me.png", alice.ID), profile.ProfilePicture)
}

func TestWebSocketReceivesGuideEvents(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	guide := app.createGuide(t, alice.Token, "Realtime Notes")

	wsURL := "ws" + strings.TrimPrefix(app.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(notify.ClientMessage{Type: notify.ClientJoin, StudyGuideID: guide.ID}))
	require.Eventually(t, func() bool {
		return app.hub.SubscriberCount(guide.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, data := app.do(t, http.MethodPut, "/study-guides/"+guide.ID+"/upvote", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg notify.Message
	for msg.Type != "studyGuide:upvoted" {
		msg = notify.Message{}
		require.NoError(t, conn.ReadJSON(&msg))
	}
	assert.Equal(t, guide.ID, msg.StudyGuideID)
	payload, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, payload["upvotes"])
}
