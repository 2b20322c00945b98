package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionResponse(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerate_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("the reply")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "test-model"}, 5*time.Second)
	out, err := c.Generate(context.Background(), []Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "question"},
	})
	if err != nil || out != "the reply" {
		t.Fatalf("Generate: %v %q", err, out)
	}

	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "test-model" || gotBody["stream"] != false {
		t.Fatalf("request body = %v", gotBody)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages", len(msgs))
	}
}

func TestGenerate_TrailingSlashBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(completionResponse("ok")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1/", Model: "m"}, 5*time.Second)
	if _, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "q"}}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerate_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, 5*time.Second)
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "q"}})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, 5*time.Second)
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "q"}})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestGenerate_MalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "<html>nope</html>"},
		{"empty choices", `{"choices":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, 5*time.Second)
			_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "q"}})
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestGenerate_ContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
		_, _ = w.Write([]byte(completionResponse("late")))
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, 30*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, []Message{{Role: "user", Content: "q"}})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerateTitle_TrimsWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionResponse("  Contract Review Basics \n")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, 5*time.Second)
	title, err := c.GenerateTitle(context.Background(), "long seed text")
	if err != nil || title != "Contract Review Basics" {
		t.Fatalf("GenerateTitle: %v %q", err, title)
	}
}

func TestTruncateBody(t *testing.T) {
	short := []byte("short")
	if got := truncateBody(short); got != "short" {
		t.Fatalf("short body altered: %q", got)
	}
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateBody(long)
	if len(got) != 512+3 || got[len(got)-3:] != "..." {
		t.Fatalf("long body not truncated: len=%d", len(got))
	}
}
