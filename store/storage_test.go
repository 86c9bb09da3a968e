package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPStorage_Upload(t *testing.T) {
	var gotPath, gotType, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"Key":"profile-photos/u1/a.png"}`))
	}))
	defer srv.Close()

	s := NewHTTPStorage(srv.URL+"/", "secret")
	u, err := s.Upload(context.Background(), "profile-photos", "u1/a.png", "image/png", strings.NewReader("png"), 3)
	if err != nil {
		t.Fatalf("Upload() unexpected error = %v", err)
	}
	if gotPath != "/storage/v1/object/profile-photos/u1/a.png" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "image/png" || gotAuth != "Bearer secret" || gotBody != "png" {
		t.Errorf("request = %q %q %q", gotType, gotAuth, gotBody)
	}
	if want := srv.URL + "/storage/v1/object/public/profile-photos/u1/a.png"; u != want {
		t.Errorf("Upload() = %q, want %q", u, want)
	}
}

func TestHTTPStorage_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bucket not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPStorage(srv.URL, "secret")
	_, err := s.Upload(context.Background(), "nope", "u1/a.png", "image/png", strings.NewReader("png"), 3)
	if err == nil || !strings.Contains(err.Error(), "bucket not found") {
		t.Errorf("Upload() error = %v, want the provider message", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage()
	u, err := m.Upload(context.Background(), "b", "k.png", "image/png", strings.NewReader("data"), 4)
	if err != nil {
		t.Fatal(err)
	}
	if u != "memory://b/k.png" {
		t.Errorf("Upload() = %q", u)
	}
	data, ct, ok := m.Object("b", "k.png")
	if !ok || string(data) != "data" || ct != "image/png" {
		t.Errorf("Object() = %q %q %v", data, ct, ok)
	}
}
