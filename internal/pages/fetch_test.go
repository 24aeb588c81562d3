package pages

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/job", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(AllowPrivateAddresses(), WithMaxBytes(32), WithTimeout(5*time.Second), WithUserAgent("test-agent"))

	body, err := f.Fetch(context.Background(), srv.URL+"/job")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != "<html><body>ok</body></html>" {
		t.Errorf("Fetch() = %q", body)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q, want test-agent", gotUA)
	}

	tests := []struct {
		path string
		want error
	}{
		{"/missing", ErrFetchFailed},
		{"/big", ErrTooLarge},
		{"/loop", ErrFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if _, err := f.Fetch(context.Background(), srv.URL+tt.path); !errors.Is(err, tt.want) {
				t.Errorf("Fetch(%s) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestFetch_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := NewFetcher()
	tests := []struct {
		name string
		url  string
	}{
		{"loopback", srv.URL},
		{"metadata", "http://169.254.169.254/latest/meta-data"},
		{"scheme", "file:///etc/passwd"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Fetch(context.Background(), tt.url); !errors.Is(err, ErrFetchBlocked) {
				t.Errorf("Fetch(%q) error = %v, want ErrFetchBlocked", tt.url, err)
			}
		})
	}
}

func TestFetch_RedirectToPrivateBlocked(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secret"))
	}))
	defer target.Close()

	f := NewFetcher()
	err := f.client.CheckRedirect(httptest.NewRequest(http.MethodGet, target.URL, nil), nil)
	if !errors.Is(err, ErrFetchBlocked) {
		t.Errorf("CheckRedirect() error = %v, want ErrFetchBlocked", err)
	}
}
