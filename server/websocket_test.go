package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/state"
	"github.com/gorilla/websocket"
)

func TestStream(t *testing.T) {
	a := newTestAPI(t, nil)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?access_token=" + token(t, "u1")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() unexpected error = %v (response %v)", err, resp)
	}
	defer conn.Close()

	await := func(what string, ok func(state.View) bool) {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var v state.View
			if err := conn.ReadJSON(&v); err != nil {
				t.Fatalf("waiting for %s: ReadJSON() error = %v", what, err)
			}
			if ok(v) {
				return
			}
		}
	}
	await("ready", func(v state.View) bool { return v.Status == state.Ready && v.UserID == "u1" })

	a.store.InsertTransaction(t.Context(), finntra.Transaction{UserID: "u1", Amount: 12, Category: "Other", Type: finntra.Expense})
	await("the pushed transaction", func(v state.View) bool {
		return v.Status == state.Ready && len(v.Snapshot.Transactions) == 1
	})

	go a.registry.Remove("u1")
	await("sign-out", func(v state.View) bool { return v.Status == state.Unauthenticated })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want a normal close", err)
	}
}

func TestStream_RejectsOrigin(t *testing.T) {
	a := newTestAPI(t, nil)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?access_token=" + token(t, "u1")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Dial() expected an error")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Dial() response = %v, want 403", resp)
	}
}
