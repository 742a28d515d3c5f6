package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"chatvault/internal/app"
	"chatvault/internal/storage"
	"chatvault/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	redis := miniredis.RunT(t)
	uploads := t.TempDir()
	avatars, err := storage.NewFileStore(uploads)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: store.NewRedisSessionStore(redis.Addr(), ""),
		Avatars:  avatars,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: appCore, UploadsDir: uploads}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func register(t *testing.T, base, username, password string) {
	t.Helper()
	resp := postJSON(t, base+"/register", map[string]string{
		"username": username,
		"password": password,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
}

func login(t *testing.T, base, username, password string) string {
	t.Helper()
	resp := postJSON(t, base+"/login", map[string]string{
		"username": username,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	var body struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	decodeBody(t, resp, &body)
	if body.Token == "" || body.Username != username {
		t.Fatalf("unexpected login body %+v", body)
	}
	return body.Token
}

func TestRegisterLoginSendReadFlow(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	token := login(t, srv.URL, "alice", "pw")

	resp := postJSON(t, srv.URL+"/groups", map[string]string{"groupName": "g1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group: status %d", resp.StatusCode)
	}

	for _, content := range []string{"hello", "world"} {
		resp = postJSON(t, srv.URL+"/message", map[string]string{
			"username": "alice",
			"token":    token,
			"group":    "g1",
			"content":  content,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("send %q: status %d", content, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/messages/g1")
	if err != nil {
		t.Fatalf("read messages: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read messages: status %d", resp.StatusCode)
	}
	var msgs []struct {
		Username  string    `json:"username"`
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	}
	decodeBody(t, resp, &msgs)
	if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Content != "world" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[0].Username != "alice" || msgs[1].Timestamp.Before(msgs[0].Timestamp) {
		t.Fatalf("unexpected author or timestamp order %+v", msgs)
	}
}

func TestRegisterDuplicateReturnsConflict(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	resp := postJSON(t, srv.URL+"/register", map[string]string{"username": "alice", "password": "other"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register expected 409, got %d", resp.StatusCode)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")

	read := func(payload map[string]string) (int, string) {
		resp := postJSON(t, srv.URL+"/login", payload)
		defer resp.Body.Close()
		var body map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body["error"]
	}

	wrongPwStatus, wrongPwMsg := read(map[string]string{"username": "alice", "password": "nope"})
	noUserStatus, noUserMsg := read(map[string]string{"username": "ghost", "password": "nope"})
	if wrongPwStatus != http.StatusUnauthorized || noUserStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPwStatus, noUserStatus)
	}
	if wrongPwMsg != noUserMsg {
		t.Fatalf("login failures must not reveal user existence: %q vs %q", wrongPwMsg, noUserMsg)
	}
}

func TestValidateTokenEndpoint(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	token := login(t, srv.URL, "alice", "pw")

	check := func(header string) bool {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/validate-token", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("validate-token: %v", err)
		}
		var body struct {
			Valid bool `json:"valid"`
		}
		decodeBody(t, resp, &body)
		return body.Valid
	}

	if !check("Bearer " + token) {
		t.Fatalf("fresh token must validate")
	}
	if check("Bearer forged") {
		t.Fatalf("forged token must not validate")
	}
	if check("") {
		t.Fatalf("missing header must not validate")
	}
}

func TestSendMessageAuthAndGroupChecks(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	token := login(t, srv.URL, "alice", "pw")

	resp := postJSON(t, srv.URL+"/message", map[string]string{
		"username": "alice", "token": token, "group": "missing", "content": "hi",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing group expected 404, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/groups", map[string]string{"groupName": "g1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/message", map[string]string{
		"username": "alice", "token": "forged", "group": "g1", "content": "hi",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("forged token expected 403, got %d", resp.StatusCode)
	}
}

func TestGroupEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/groups", map[string]string{"groupName": "g1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group: status %d", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/groups", map[string]string{"groupName": "g1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate group expected 409, got %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/groups")
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	var names []string
	decodeBody(t, resp, &names)
	if len(names) != 1 || names[0] != "g1" {
		t.Fatalf("unexpected groups %v", names)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/groups/g1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete group: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete group: status %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/groups/g1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/messages/g1")
	if err != nil {
		t.Fatalf("read deleted group: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("reading a deleted group expected 404, got %d", resp.StatusCode)
	}
}

func TestProfileAndAvatarUpload(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	token := login(t, srv.URL, "alice", "pw")

	resp, err := http.Get(srv.URL + "/profile/ghost")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing profile expected 404, got %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	form.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/avatar", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload avatar: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload avatar: status %d", resp.StatusCode)
	}
	var uploadBody struct {
		AvatarURL string `json:"avatarUrl"`
	}
	decodeBody(t, resp, &uploadBody)
	if !strings.HasPrefix(uploadBody.AvatarURL, "/uploads/") {
		t.Fatalf("unexpected avatar URL %q", uploadBody.AvatarURL)
	}

	resp, err = http.Get(srv.URL + "/profile/alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	var profile struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatarUrl"`
	}
	decodeBody(t, resp, &profile)
	if profile.Username != "alice" || profile.AvatarURL != uploadBody.AvatarURL {
		t.Fatalf("unexpected profile %+v", profile)
	}

	resp, err = http.Get(srv.URL + uploadBody.AvatarURL)
	if err != nil {
		t.Fatalf("fetch avatar: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch avatar: status %d", resp.StatusCode)
	}
}

func TestDeleteAccount(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	token := login(t, srv.URL, "alice", "pw")

	resp := postJSON(t, srv.URL+"/delete-account", map[string]string{
		"username": "alice", "token": "forged",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token expected 401, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/delete-account", map[string]string{
		"username": "alice", "token": token,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete account: status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/validate-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("validate-token: %v", err)
	}
	var body struct {
		Valid bool `json:"valid"`
	}
	decodeBody(t, resp, &body)
	if body.Valid {
		t.Fatalf("token must be invalid after account deletion")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/register", "/login", "/message", "/delete-account"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s expected 405, got %d", path, resp.StatusCode)
		}
	}
}

func TestLogoutEndpoint(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv.URL, "alice", "pw")
	token := login(t, srv.URL, "alice", "pw")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/logout", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("logout without token expected 401, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/message", map[string]string{
		"username": "alice", "token": token, "group": "g1", "content": "hi",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("revoked token expected 403, got %d", resp.StatusCode)
	}
}
