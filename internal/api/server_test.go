package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mathpad/internal/auth"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/quiz"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
)

type harness struct {
	srv    *httptest.Server
	client *http.Client
	events store.EventRepo
}

func smallCanvas() canvas.Settings {
	s := canvas.DefaultSettings()
	s.Width, s.Height = 64, 32
	return s
}

func newHarness(t *testing.T, provider llm.Provider) *harness {
	t.Helper()

	hash, err := auth.HashPassword("abc123")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	creds := fmt.Sprintf("credentials:\n  usernames:\n    jsmith:\n      email: jsmith@example.com\n      name: John Smith\n      password: %s\ncookie:\n  name: mathpad_test\n  key: test-key\n  expiry_days: 1\n", hash)
	require.NoError(t, os.WriteFile(path, []byte(creds), 0o600))

	fs, err := auth.OpenFileStore(path)
	require.NoError(t, err)
	gate, err := auth.NewGate(fs, "", nil)
	require.NoError(t, err)

	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var model session.Model
	if provider != nil {
		model = gateway.NewWithProvider(provider, nil)
	} else {
		model = gateway.New(llm.Config{Provider: "gemini"}, nil, nil)
	}

	s := NewServer(Deps{
		Gate:     gate,
		Sessions: session.NewManager(session.NewMemoryStore(time.Hour), smallCanvas(), nil),
		Model:    model,
		Events:   db.EventRepo(),
		Provider: "mock",
	})
	srv := httptest.NewServer(s.Routes(nil))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, client: &http.Client{Jar: jar}, events: db.EventRepo()}
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	code, body := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "jsmith", "password": "abc123"})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "success", body["status"])
}

func panel(body map[string]any) map[string]any {
	p, _ := body["panel"].(map[string]any)
	return p
}

func (h *harness) draw(t *testing.T) {
	t.Helper()
	code, body := h.do(t, http.MethodPost, "/api/canvas/events", map[string]any{"events": []canvas.PointerEvent{
		{Kind: canvas.PointerDown, X: 5, Y: 5},
		{Kind: canvas.PointerMove, X: 20, Y: 20},
		{Kind: canvas.PointerUp, X: 30, Y: 10},
	}})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, true, body["changed"])
	require.Equal(t, false, body["empty"])
}

func quizJSON(t *testing.T) string {
	t.Helper()
	set := make([]quiz.Question, quiz.QuestionCount)
	for i := range set {
		set[i] = quiz.Question{
			Question: fmt.Sprintf("What is %d + 1?", i),
			Options:  []string{fmt.Sprint(i), fmt.Sprint(i + 1), fmt.Sprint(i + 2), fmt.Sprint(i + 3)},
			Answer:   fmt.Sprint(i + 1),
		}
	}
	b, err := json.Marshal(set)
	require.NoError(t, err)
	return "```json\n" + string(b) + "\n```"
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	code, body := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["configured"])
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t, llm.NewMockProvider())

	code, body := h.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "pending", body["status"])

	code, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "jsmith", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "failure", body["status"])
	assert.Equal(t, auth.LoginFailedMessage, body["message"])

	code, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "pending", body["status"])

	h.login(t)

	code, body = h.do(t, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "John Smith", body["name"])

	code, body = h.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "draw", body["mode"])
	assert.Equal(t, "John Smith", body["display_name"])
	assert.Len(t, body["modes"], 5)

	code, _ = h.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	events, err := h.events.QueryActivity(context.Background(), store.QueryOpts{Username: "jsmith"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.ActivityLogout, events[0].Kind)
	assert.Equal(t, store.ActivityLogin, events[1].Kind)
}

func TestRegisterThenLogin(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.do(t, http.MethodPost, "/api/auth/register", auth.Registration{
		Email: "ada@example.com", Username: "ada", Name: "Ada", Password: "engine1",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "ada", body["username"])

	code, body = h.do(t, http.MethodPost, "/api/auth/register", auth.Registration{
		Email: "ada@example.com", Username: "ada", Name: "Ada", Password: "engine1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])

	code, body = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "ada", "password": "engine1"})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["token"])
}

func TestDrawSolveFeedbackContinue(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("Step 1: 2+2\n**Answer:** 4"))
	h := newHarness(t, mock)
	h.login(t)

	code, body := h.do(t, http.MethodPost, "/api/solve", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])
	assert.Equal(t, 0, mock.CallCount())

	h.draw(t)

	resp, err := h.client.Get(h.srv.URL + "/api/canvas.png")
	require.NoError(t, err)
	img, err := png.Decode(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())

	code, body = h.do(t, http.MethodPost, "/api/solve", nil)
	require.Equal(t, http.StatusOK, code, body)
	sol := panel(body)["solution"].(map[string]any)
	assert.Equal(t, "Step 1: 2+2\n**Answer:** 4", sol["text"])
	assert.Equal(t, false, sol["failed"])
	require.Equal(t, 1, mock.CallCount())
	assert.Equal(t, gateway.SolvePrompt, mock.Calls[0].Messages[0].Content)

	code, _ = h.do(t, http.MethodPost, "/api/solution/continue", nil)
	assert.Equal(t, http.StatusBadRequest, code, "continue requires a correct verdict")

	code, body = h.do(t, http.MethodPut, "/api/solution/feedback", map[string]string{"feedback": "correct"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "correct", panel(body)["solution"].(map[string]any)["feedback"])

	code, body = h.do(t, http.MethodPost, "/api/solution/continue", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["notice"])

	code, body = h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "chat"})
	require.Equal(t, http.StatusOK, code)
	msgs := panel(body)["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "I just solved this problem:\n\nStep 1: 2+2\n**Answer:** 4", msgs[0].(map[string]any)["content"])

	// Switching modes dropped the solution.
	code, body = h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "draw"})
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, panel(body)["solution"])

	events, err := h.events.QueryActivity(context.Background(), store.QueryOpts{Username: "jsmith"})
	require.NoError(t, err)
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []string{store.ActivityFeedback, store.ActivitySolve, store.ActivityLogin}, kinds)
}

func TestSolveFailureIsInline(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: io.ErrUnexpectedEOF}})
	h := newHarness(t, mock)
	h.login(t)
	h.draw(t)

	code, body := h.do(t, http.MethodPost, "/api/solve", nil)
	require.Equal(t, http.StatusOK, code)
	sol := panel(body)["solution"].(map[string]any)
	assert.Equal(t, true, sol["failed"])
	assert.True(t, strings.HasPrefix(sol["text"].(string), gateway.ErrorMarker))
}

func TestSolveWithoutCredential(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)
	h.draw(t)

	code, body := h.do(t, http.MethodPost, "/api/solve", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "configuration", body["kind"])
}

func TestUnknownModeRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)
	code, body := h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "paint"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])
}

func uploadPNG(t *testing.T, h *harness, filename string, data []byte) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestUpload(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("**Answer:** 1"))
	h := newHarness(t, mock)
	h.login(t)

	code, _ := h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "upload"})
	require.Equal(t, http.StatusOK, code)

	code, body := uploadPNG(t, h, "notes.txt", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])

	src := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	src.Set(2, 2, color.NRGBA{R: 200, A: 10})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	code, body = uploadPNG(t, h, "problem.png", buf.Bytes())
	require.Equal(t, http.StatusOK, code, body)
	up := panel(body)["upload"].(map[string]any)
	assert.Equal(t, "problem.png", up["filename"])
	assert.EqualValues(t, 8, up["width"])

	resp, err := h.client.Get(h.srv.URL + "/api/upload.png")
	require.NoError(t, err)
	img, err := png.Decode(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	_, _, _, a := img.At(2, 2).RGBA()
	assert.EqualValues(t, 0xffff, a)

	code, body = h.do(t, http.MethodPost, "/api/solve", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "**Answer:** 1", panel(body)["solution"].(map[string]any)["text"])
}

func TestQuizFlow(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText(quizJSON(t)))
	h := newHarness(t, mock)
	h.login(t)

	code, _ := h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "quiz"})
	require.Equal(t, http.StatusOK, code)

	code, body := h.do(t, http.MethodPost, "/api/quiz/start", map[string]string{"topic": "Algebra", "difficulty": "Easy"})
	require.Equal(t, http.StatusOK, code, body)
	p := panel(body)
	assert.Equal(t, "in_progress", p["phase"])
	assert.EqualValues(t, 5, p["total"])

	code, body = h.do(t, http.MethodPost, "/api/quiz/answer", map[string]string{"answer": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	for i := 0; i < quiz.QuestionCount; i++ {
		answer := fmt.Sprint(i + 1)
		if i == 4 {
			answer = fmt.Sprint(i)
		}
		code, body = h.do(t, http.MethodPost, "/api/quiz/answer", map[string]string{"answer": answer})
		require.Equal(t, http.StatusOK, code, body)
	}
	p = panel(body)
	assert.Equal(t, "complete", p["phase"])
	assert.EqualValues(t, 4, p["score"])
	assert.Len(t, p["review"], 5)

	events, err := h.events.QueryActivity(context.Background(), store.QueryOpts{Username: "jsmith", Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.ActivityQuizComplete, events[0].Kind)
	assert.Equal(t, "Algebra/Easy 4/5", events[0].Detail)

	code, body = h.do(t, http.MethodPost, "/api/quiz/restart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_started", panel(body)["phase"])
}

func TestQuizMalformedOutput(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText(`[{"question":"only one"}]`))
	h := newHarness(t, mock)
	h.login(t)
	h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "quiz"})

	code, body := h.do(t, http.MethodPost, "/api/quiz/start", map[string]string{"topic": "Algebra", "difficulty": "Easy"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "parse", body["kind"])
	assert.Contains(t, body["raw"], "only one")

	_, body = h.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, "not_started", panel(body)["phase"])
}

func TestChat(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("A derivative measures change."))
	h := newHarness(t, mock)
	h.login(t)
	h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "chat"})

	code, body := h.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 0, mock.CallCount())

	code, body = h.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "what is a derivative?"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "A derivative measures change.", body["reply"].(map[string]any)["content"])
	assert.Len(t, panel(body)["messages"], 2)

	code, body = h.do(t, http.MethodDelete, "/api/chat", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, panel(body)["messages"])
}

func TestClassify(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockText(`{"difficulty":"medium","required_concepts":["quadratics"]}`),
		llm.MockText(`not json`),
	)
	h := newHarness(t, mock)
	h.login(t)
	h.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "classifier"})

	code, body := h.do(t, http.MethodPost, "/api/classify", map[string]string{"problem": "x^2 - 5x + 6 = 0"})
	require.Equal(t, http.StatusOK, code, body)
	analysis := panel(body)["analysis"].(map[string]any)
	assert.Equal(t, "Medium", analysis["difficulty"])

	code, body = h.do(t, http.MethodPost, "/api/classify", map[string]string{"problem": "x^2 = 4"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "not json", body["raw"])

	// The failed call kept the previous analysis.
	_, body = h.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, "Medium", panel(body)["analysis"].(map[string]any)["difficulty"])
}

// blockingProvider holds every call until released.
type blockingProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &llm.Response{Content: json.RawMessage("**Answer:** 0")}, nil
}

func (b *blockingProvider) ModelID() string { return "blocking" }

func TestConcurrentActionIsBusy(t *testing.T) {
	bp := &blockingProvider{entered: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, bp)
	h.login(t)
	h.draw(t)

	done := make(chan int, 1)
	go func() {
		code, _ := h.do(t, http.MethodPost, "/api/solve", nil)
		done <- code
	}()
	<-bp.entered

	code, body := h.do(t, http.MethodPost, "/api/canvas/clear", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "busy", body["kind"])

	close(bp.release)
	assert.Equal(t, http.StatusOK, <-done)

	code, _ = h.do(t, http.MethodPost, "/api/canvas/clear", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCanvasSocket(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/canvas"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: h.client})
	require.NoError(t, err)
	defer conn.CloseNow()

	send := func(v any) {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, b))
	}
	recv := func() wsReply {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var r wsReply
		require.NoError(t, json.Unmarshal(data, &r))
		return r
	}

	send(wsMessage{Type: "pointer", Event: &canvas.PointerEvent{Kind: canvas.PointerDown, X: 1, Y: 1}})
	send(wsMessage{Type: "pointer", Event: &canvas.PointerEvent{Kind: canvas.PointerMove, X: 10, Y: 10}})
	send(wsMessage{Type: "pointer", Event: &canvas.PointerEvent{Kind: canvas.PointerUp, X: 12, Y: 4}})
	ack := recv()
	assert.Equal(t, "ack", ack.Type)
	assert.True(t, ack.Changed)
	assert.False(t, ack.Empty)

	send(wsMessage{Type: "clear"})
	ack = recv()
	assert.Equal(t, 1, ack.Generation)
	assert.True(t, ack.Empty)

	// Strokes drawn against the old generation are dropped.
	send(wsMessage{Type: "pointer", Event: &canvas.PointerEvent{Kind: canvas.PointerUp, X: 5, Y: 5, Generation: 0}})
	ack = recv()
	assert.False(t, ack.Changed)

	send(wsMessage{Type: "pointer", Event: &canvas.PointerEvent{Kind: "hover"}})
	assert.Equal(t, "validation", string(recv().Kind))

	send(wsMessage{Type: "ping"})
	assert.Equal(t, "pong", recv().Type)

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"localhost:5173", "*"}, originPatterns([]string{"http://localhost:5173", "*", "::bad"}))
}
