package testutils

import (
	"context"
	"sync"
)

// MockSender records outbound notifications instead of delivering them.
type MockSender struct {
	mu    sync.Mutex
	Links []SentLink
	Codes []SentCode
	Err   error
}

type SentLink struct {
	Recipient string
	URL       string
	Template  string
}

type SentCode struct {
	Recipient string
	Code      string
}

func (m *MockSender) SendLink(ctx context.Context, recipient, url, template string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Links = append(m.Links, SentLink{Recipient: recipient, URL: url, Template: template})
	return nil
}

func (m *MockSender) SendCode(ctx context.Context, recipient, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Codes = append(m.Codes, SentCode{Recipient: recipient, Code: code})
	return nil
}

func (m *MockSender) SentLinks() []SentLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentLink(nil), m.Links...)
}

func (m *MockSender) SentCodes() []SentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentCode(nil), m.Codes...)
}
