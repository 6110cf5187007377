package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestVirusTotalScanURL(t *testing.T) {
	var submitted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-apikey") != "key" {
			t.Errorf("missing api key header")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/urls":
			_ = r.ParseForm()
			submitted = r.PostForm.Get("url")
			w.Write([]byte(`{"data":{"id":"analysis-1"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/analyses/analysis-1":
			w.Write([]byte(`{"data":{"attributes":{"stats":{"malicious":2,"suspicious":1,"harmless":60}}}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	vt := NewVirusTotal("key", zap.NewNop())
	vt.baseURL = server.URL
	vt.pollDelay = time.Millisecond

	verdict, err := vt.ScanURL(context.Background(), "https://evil.example")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if submitted != "https://evil.example" {
		t.Fatalf("submitted %q", submitted)
	}
	if verdict.Safe() {
		t.Fatalf("expected unsafe verdict, got %+v", verdict)
	}
	if verdict.Malicious != 2 || verdict.Suspicious != 1 {
		t.Fatalf("unexpected stats %+v", verdict)
	}
}

func TestVirusTotalDisabledWithoutKey(t *testing.T) {
	vt := NewVirusTotal("", zap.NewNop())
	if vt.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if _, err := vt.ScanURL(context.Background(), "https://example.com"); !errors.Is(err, ErrScanUnavailable) {
		t.Fatalf("expected ErrScanUnavailable, got %v", err)
	}
}

func TestImgurUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Client-ID cid" {
			t.Errorf("missing client id header")
		}
		if r.URL.Path != "/image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("image") == "" {
			t.Errorf("missing image field")
		}
		w.Write([]byte(`{"success":true,"data":{"link":"https://i.imgur.com/abc.png"}}`))
	}))
	defer server.Close()

	im := NewImgur("cid", zap.NewNop())
	im.baseURL = server.URL

	link, err := im.Upload(context.Background(), "https://cdn.example/pic.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if link != "https://i.imgur.com/abc.png" {
		t.Fatalf("unexpected link %q", link)
	}
}

func TestImgurRejectedUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"data":{}}`))
	}))
	defer server.Close()

	im := NewImgur("cid", zap.NewNop())
	im.baseURL = server.URL

	if _, err := im.Upload(context.Background(), "https://cdn.example/pic.png"); !errors.Is(err, ErrUploadUnavailable) {
		t.Fatalf("expected ErrUploadUnavailable, got %v", err)
	}
}
