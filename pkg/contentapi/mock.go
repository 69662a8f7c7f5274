package contentapi

import "context"

// MockClient is a mock content service client for testing
type MockClient struct {
	questions    map[string][]QuestionItem // language -> items
	languages    []string
	baseURL      string
	questionsErr error
	languagesErr error
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithQuestions sets the questions to return for a language
func WithQuestions(language string, items []QuestionItem) MockOption {
	return func(m *MockClient) {
		m.questions[language] = items
	}
}

// WithLanguages sets the languages to return
func WithLanguages(languages []string) MockOption {
	return func(m *MockClient) {
		m.languages = languages
	}
}

// WithQuestionsError sets an error to return from FetchQuestions
func WithQuestionsError(err error) MockOption {
	return func(m *MockClient) {
		m.questionsErr = err
	}
}

// WithLanguagesError sets an error to return from FetchLanguages
func WithLanguagesError(err error) MockOption {
	return func(m *MockClient) {
		m.languagesErr = err
	}
}

// NewMockClient creates a new mock content service client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		questions: make(map[string][]QuestionItem),
		baseURL:   "http://content.test",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchQuestions returns the configured questions for a language
func (m *MockClient) FetchQuestions(ctx context.Context, language string) ([]QuestionItem, error) {
	if m.questionsErr != nil {
		return nil, m.questionsErr
	}
	return m.questions[language], nil
}

// FetchLanguages returns the configured languages
func (m *MockClient) FetchLanguages(ctx context.Context) ([]string, error) {
	if m.languagesErr != nil {
		return nil, m.languagesErr
	}
	return m.languages, nil
}

// BaseURL returns the mock base URL
func (m *MockClient) BaseURL() string {
	return m.baseURL
}

// SetBaseURL updates the mock base URL
func (m *MockClient) SetBaseURL(url string) {
	m.baseURL = url
}
