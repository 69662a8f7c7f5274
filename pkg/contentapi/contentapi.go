// Package contentapi provides a client for the language content service
// that hosts the shared question banks.
package contentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mwhitby/lingoduel/internal/logger"
)

// QuestionItem is one question as served by the content API
type QuestionItem struct {
	ID           string   `json:"id"`
	Language     string   `json:"language"`
	Difficulty   string   `json:"difficulty"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// QuestionListResponse is the response from the question listing endpoint
type QuestionListResponse struct {
	Questions []QuestionItem `json:"questions"`
}

// LanguageListResponse is the response from the language listing endpoint
type LanguageListResponse struct {
	Languages []string `json:"languages"`
}

// Client defines the interface for content service operations
type Client interface {
	// FetchQuestions retrieves the question bank for a language
	FetchQuestions(ctx context.Context, language string) ([]QuestionItem, error)
	// FetchLanguages retrieves the list of supported languages
	FetchLanguages(ctx context.Context) ([]string, error)
	// BaseURL returns the configured content service base URL
	BaseURL() string
	// SetBaseURL updates the content service base URL
	SetBaseURL(url string)
}

// HTTPClient is a real HTTP client for the content service
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new content service HTTP client
func NewHTTPClient(baseURL, apiKey string, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// NewHTTPClientWithHTTPClient creates a new content service client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured content service base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// SetBaseURL updates the content service base URL
func (c *HTTPClient) SetBaseURL(url string) {
	c.baseURL = url
}

// doRequest executes an HTTP GET against the content service and decodes
// the JSON response into response.
func (c *HTTPClient) doRequest(ctx context.Context, path string, params url.Values, response interface{}) error {
	apiURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	c.log.Debug("content API request", "method", "GET", "url", apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to content service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("content API response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("content service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// FetchQuestions retrieves the question bank for a language
func (c *HTTPClient) FetchQuestions(ctx context.Context, language string) ([]QuestionItem, error) {
	params := url.Values{}
	params.Set("language", language)

	var resp QuestionListResponse
	if err := c.doRequest(ctx, "/api/v1/questions", params, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// FetchLanguages retrieves the list of supported languages
func (c *HTTPClient) FetchLanguages(ctx context.Context) ([]string, error) {
	var resp LanguageListResponse
	if err := c.doRequest(ctx, "/api/v1/languages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Languages, nil
}
