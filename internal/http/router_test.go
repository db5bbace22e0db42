package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"retroboard/internal/auth"
	"retroboard/internal/config"
	httpx "retroboard/internal/http"
	"retroboard/internal/realtime"
	"retroboard/internal/retro"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

type fixture struct {
	srv   *httptest.Server
	store *retro.MemStore
	jwt   *auth.JWT
}

func newFixture(t *testing.T, origins ...string) *fixture {
	t.Helper()
	logger := log.New(io.Discard)
	store := retro.NewMemStore()
	jwtSvc := auth.NewJWT("test-secret")
	sync := realtime.NewServer(store, realtime.WithCatalog(store), realtime.WithLogger(logger))

	cfg := config.Config{
		CORSAllowedOrigins: origins,
		WSSendBuffer:       64,
		WSPingInterval:     time.Second,
	}
	srv := httptest.NewServer(httpx.NewRouter(cfg, httpx.Deps{Store: store, Sync: sync, JWT: jwtSvc, Logger: logger}))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store, jwt: jwtSvc}
}

func (f *fixture) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := f.jwt.Sign(auth.Identity{Email: email, Name: "N", Image: "I"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	if res := f.do(t, http.MethodGet, "/health", "", ""); res.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", res.StatusCode)
	}
	if res := f.do(t, http.MethodGet, "/metrics", "", ""); res.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", res.StatusCode)
	}
}

func TestRetroEndpoints(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "owner@x.com")

	if res := f.do(t, http.MethodGet, "/retros", "", ""); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d", res.StatusCode)
	}

	res := f.do(t, http.MethodPost, "/retros", tok, `{"retroType":"kudos"}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid type = %d", res.StatusCode)
	}
	if b, _ := io.ReadAll(res.Body); !strings.Contains(string(b), "Invalid retro type") {
		t.Fatalf("body = %q", b)
	}

	res = f.do(t, http.MethodPost, "/retros", tok, `{"retroType":"Progress"}`)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d", res.StatusCode)
	}
	var created retro.Retro
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.RetroType != retro.RetroProgress || created.Stage != retro.StageLobby || created.CreatedBy != "owner@x.com" {
		t.Fatalf("unexpected retro %+v", created)
	}

	res = f.do(t, http.MethodGet, "/retros/"+created.ID, tok, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get = %d", res.StatusCode)
	}
	var raw map[string]json.RawMessage
	_ = json.NewDecoder(res.Body).Decode(&raw)
	if string(raw["ideas"]) != "[]" || string(raw["everJoined"]) != "[]" {
		t.Fatalf("collections should be empty arrays, got ideas=%s everJoined=%s", raw["ideas"], raw["everJoined"])
	}

	if res := f.do(t, http.MethodGet, "/retros/missing", tok, ""); res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing = %d", res.StatusCode)
	}

	res = f.do(t, http.MethodGet, "/retros", tok, "")
	var list struct {
		Retros []retro.Retro `json:"retros"`
	}
	_ = json.NewDecoder(res.Body).Decode(&list)
	if len(list.Retros) != 1 || list.Retros[0].ID != created.ID {
		t.Fatalf("list = %+v", list.Retros)
	}

	other := f.do(t, http.MethodGet, "/retros", f.token(t, "stranger@x.com"), "")
	_ = json.NewDecoder(other.Body).Decode(&list)
	if len(list.Retros) != 0 {
		t.Fatalf("stranger sees %d retros", len(list.Retros))
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/me", f.token(t, "a@x.com"), "")
	var id auth.Identity
	_ = json.NewDecoder(res.Body).Decode(&id)
	if id.Email != "a@x.com" {
		t.Fatalf("identity = %+v", id)
	}
}

func (f *fixture) dial(t *testing.T, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, header)
}

func send(t *testing.T, c *websocket.Conn, typ, requestID string, payload any) {
	t.Helper()
	b, _ := json.Marshal(payload)
	if err := c.WriteJSON(realtime.Frame{Type: typ, RequestID: requestID, Payload: b}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// next reads frames until one of type typ arrives.
func next(t *testing.T, c *websocket.Conn, typ string) realtime.Frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f realtime.Frame
		if err := c.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
}

func TestWebsocketSync(t *testing.T) {
	f := newFixture(t)
	r, err := f.store.CreateRetro(context.Background(), retro.User{Email: "alice@x.com", Name: "Alice", Image: "a.png"}, retro.RetroEmotions)
	if err != nil {
		t.Fatalf("create retro: %v", err)
	}

	if _, res, err := f.dial(t, "bogus", nil); err == nil || res == nil || res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without a valid token should fail with 401, got %v", err)
	}

	c1, _, err := f.dial(t, f.token(t, "alice@x.com"), nil)
	if err != nil {
		t.Fatalf("dial c1: %v", err)
	}
	defer c1.Close()
	c2, _, err := f.dial(t, f.token(t, "bob@x.com"), nil)
	if err != nil {
		t.Fatalf("dial c2: %v", err)
	}
	defer c2.Close()

	send(t, c1, realtime.EventUser, "", realtime.JoinInput{RetroID: r.ID, User: &realtime.UserData{Email: "alice@x.com", Name: "Alice", Image: "a.png"}})
	var users realtime.UsersSnapshot
	_ = json.Unmarshal(next(t, c1, realtime.EventUsers).Payload, &users)
	if len(users.Users) != 1 {
		t.Fatalf("users = %+v", users.Users)
	}

	send(t, c2, realtime.EventUser, "", realtime.JoinInput{RetroID: r.ID, User: &realtime.UserData{Email: "bob@x.com", Name: "Bob", Image: "b.png"}})
	next(t, c2, realtime.EventUsers)

	send(t, c1, realtime.EventChangeRetroStage, "s1", realtime.StageInput{RetroID: r.ID, Stage: "idea_generation"})
	ack := next(t, c1, realtime.EventAck)
	var a realtime.Ack
	_ = json.Unmarshal(ack.Payload, &a)
	if ack.RequestID != "s1" || a.Status != http.StatusOK || a.Retro == nil || a.Retro.Stage != retro.StageIdeaGeneration {
		t.Fatalf("unexpected ack %s %+v", ack.RequestID, a)
	}

	send(t, c1, realtime.EventIdea, "", realtime.IdeaInput{RetroID: r.ID, Category: "happy", Text: "shipped it"})
	for {
		var u realtime.RetroUpdated
		_ = json.Unmarshal(next(t, c2, realtime.EventRetroUpdated).Payload, &u)
		if len(u.Retro.Ideas) == 1 {
			if u.Retro.Ideas[0].Text != "shipped it" || u.Retro.Stage != retro.StageIdeaGeneration {
				t.Fatalf("unexpected aggregate %+v", u.Retro)
			}
			break
		}
	}

	if err := c1.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ep realtime.ErrorPayload
	_ = json.Unmarshal(next(t, c1, realtime.EventError).Payload, &ep)
	if ep.Code != "INVALID_ARGUMENT" {
		t.Fatalf("error payload = %+v", ep)
	}

	_ = c2.Close()
	_ = json.Unmarshal(next(t, c1, realtime.EventUsers).Payload, &users)
	if len(users.Users) != 1 {
		t.Fatalf("after bob left users = %+v", users.Users)
	}
}

func TestWebsocketOriginCheck(t *testing.T) {
	f := newFixture(t, "http://allowed.test")
	tok := f.token(t, "a@x.com")

	_, res, err := f.dial(t, tok, http.Header{"Origin": {"http://evil.test"}})
	if err == nil || res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin should be refused, got %v", err)
	}

	c, _, err := f.dial(t, tok, http.Header{"Origin": {"http://allowed.test"}})
	if err != nil {
		t.Fatalf("allowed origin refused: %v", err)
	}
	_ = c.Close()
}
