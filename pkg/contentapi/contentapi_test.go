package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwhitby/lingoduel/internal/logger"
)

func TestFetchQuestions_OK(t *testing.T) {
	var gotAuth, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/questions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotLanguage = r.URL.Query().Get("language")
		json.NewEncoder(w).Encode(QuestionListResponse{Questions: []QuestionItem{
			{ID: "q1", Language: "spanish", Difficulty: "EASY", Prompt: "hola?", Options: []string{"hello", "bye"}, CorrectIndex: 0},
			{ID: "q2", Language: "spanish", Difficulty: "MEDIUM", Prompt: "adios?", Options: []string{"hello", "bye"}, CorrectIndex: 1},
		}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret-key", logger.New())
	items, err := client.FetchQuestions(context.Background(), "spanish")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(items))
	}
	if items[0].ID != "q1" || items[1].CorrectIndex != 1 {
		t.Errorf("unexpected items: %+v", items)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if gotLanguage != "spanish" {
		t.Errorf("expected language param spanish, got %q", gotLanguage)
	}
}

func TestFetchQuestions_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(QuestionListResponse{})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", logger.New())
	if _, err := client.FetchQuestions(context.Background(), "spanish"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no auth header, got %q", gotAuth)
	}
}

func TestFetchQuestions_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", logger.New())
	_, err := client.FetchQuestions(context.Background(), "spanish")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestFetchQuestions_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", logger.New())
	if _, err := client.FetchQuestions(context.Background(), "spanish"); err == nil {
		t.Fatal("expected error for malformed response")
	}
}

func TestFetchQuestions_ConnectionRefused(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", "", logger.New())
	if _, err := client.FetchQuestions(context.Background(), "spanish"); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestFetchLanguages_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/languages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(LanguageListResponse{Languages: []string{"spanish", "french"}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", logger.New())
	languages, err := client.FetchLanguages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(languages) != 2 || languages[0] != "spanish" {
		t.Errorf("unexpected languages: %v", languages)
	}
}

func TestSetBaseURL(t *testing.T) {
	client := NewHTTPClient("http://old.test", "", logger.New())
	client.SetBaseURL("http://new.test")
	if client.BaseURL() != "http://new.test" {
		t.Errorf("expected updated base URL, got %s", client.BaseURL())
	}
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient(
		WithQuestions("spanish", []QuestionItem{{ID: "q1"}}),
		WithLanguages([]string{"spanish"}),
	)

	items, err := mock.FetchQuestions(context.Background(), "spanish")
	if err != nil || len(items) != 1 {
		t.Errorf("unexpected result: %v, %v", items, err)
	}
	if items, _ := mock.FetchQuestions(context.Background(), "french"); len(items) != 0 {
		t.Errorf("expected no french questions, got %v", items)
	}
	languages, err := mock.FetchLanguages(context.Background())
	if err != nil || len(languages) != 1 {
		t.Errorf("unexpected languages: %v, %v", languages, err)
	}
}

func TestMockClient_Errors(t *testing.T) {
	wantErr := errors.New("content service down")
	mock := NewMockClient(WithQuestionsError(wantErr), WithLanguagesError(wantErr))

	if _, err := mock.FetchQuestions(context.Background(), "spanish"); err != wantErr {
		t.Errorf("expected injected error, got %v", err)
	}
	if _, err := mock.FetchLanguages(context.Background()); err != wantErr {
		t.Errorf("expected injected error, got %v", err)
	}
}
