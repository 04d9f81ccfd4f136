package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"sheetsync/internal/grid"
	"sheetsync/internal/hub"
	"sheetsync/internal/identity"
	"sheetsync/internal/protocol"
	"sheetsync/internal/xlsx"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.New(hub.WithDimensions(10, 5))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	cfg := Config{Rows: 10, Cols: 5, SendBuffer: 16}
	users := identity.NewDirectory(identity.WithCost(bcrypt.MinCost))
	return SetupRouter(NewServer(cfg, zerolog.Nop(), h, users, identity.AllowAll{}))
}

func do(router http.Handler, method, path, token string, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, router http.Handler, name string) string {
	t.Helper()
	w := do(router, http.MethodPost, "/api/register", "", `{"username":"`+name+`","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/login", "", `{"username":"`+name+`","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_Health(t *testing.T) {
	router := setupTestRouter(t)
	w := do(router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = do(router, http.MethodOptions, "/api/login", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Auth(t *testing.T) {
	router := setupTestRouter(t)
	token := loginAs(t, router, "alice")

	t.Run("duplicate register", func(t *testing.T) {
		w := do(router, http.MethodPost, "/api/register", "", `{"username":"alice","password":"secret1"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := do(router, http.MethodPost, "/api/login", "", `{"username":"alice","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("validate", func(t *testing.T) {
		w := do(router, http.MethodGet, "/api/validate", token, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":"alice","displayName":"alice"}`, w.Body.String())

		w = do(router, http.MethodGet, "/api/validate", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout", func(t *testing.T) {
		w := do(router, http.MethodPost, "/api/logout", token, "")
		assert.Equal(t, http.StatusOK, w.Code)
		w = do(router, http.MethodGet, "/api/validate", token, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRouter_Documents(t *testing.T) {
	router := setupTestRouter(t)
	token := loginAs(t, router, "alice")

	w := do(router, http.MethodGet, "/api/documents/budget", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/api/documents/_users", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	src := grid.New("budget", 4, 4)
	src.SetCell(grid.Pos{Row: 0, Col: 0}, "20")
	src.SetCell(grid.Pos{Row: 1, Col: 0}, "22")
	src.SetCell(grid.Pos{Row: 2, Col: 0}, "=SUM(A1:A2)")
	var workbook bytes.Buffer
	require.NoError(t, xlsx.Export(&workbook, src))

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "budget.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req, _ := http.NewRequest(http.MethodPost, "/api/documents/budget/import", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":"budget","rows":10,"cols":5}`, w.Body.String())

	w = do(router, http.MethodGet, "/api/documents/budget", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Rows   int               `json:"rows"`
		Values map[string]string `json:"values"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, 10, doc.Rows)
	assert.Equal(t, "42", doc.Values["A3"])

	w = do(router, http.MethodGet, "/api/documents/budget/export", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	fx, err := f.GetCellFormula("Sheet1", "A3")
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1:A2)", fx)
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, typ protocol.Type, doc string, payload any) {
	t.Helper()
	msg, err := protocol.New(typ, doc, payload)
	require.NoError(t, err)
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, conn *websocket.Conn, typ protocol.Type) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	require.Equal(t, typ, msg.Type, string(data))
	return msg
}

func TestRouter_WebSocket(t *testing.T) {
	router := setupTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	aliceToken := loginAs(t, router, "alice")
	bobToken := loginAs(t, router, "bob")

	t.Run("unauthenticated", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	alice := dial(t, srv, aliceToken)
	bob := dial(t, srv, bobToken)

	write(t, alice, protocol.Join, "sheet", nil)
	read(t, alice, protocol.PresenceSnapshot)
	read(t, alice, protocol.DocumentSnapshot)

	write(t, bob, protocol.Join, "sheet", nil)
	read(t, bob, protocol.PresenceSnapshot)
	read(t, bob, protocol.DocumentSnapshot)
	read(t, alice, protocol.UserJoined)

	// garbage is skipped without closing the connection
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{")))

	write(t, alice, protocol.CellChange, "sheet", protocol.CellChangePayload{Row: 1, Col: 1, Value: "hi"})
	msg := read(t, bob, protocol.CellChange)
	assert.Equal(t, "alice", msg.User)

	require.NoError(t, alice.Close())
	var left protocol.UserLeftPayload
	require.NoError(t, read(t, bob, protocol.UserLeft).Bind(&left))
	assert.Equal(t, protocol.UserLeftPayload{UserID: "alice", Reason: protocol.ReasonDisconnect}, left)
}
