package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderNotificationTemplate(t *testing.T) {
	data := NotificationData{
		AppName:         "Archive",
		CollectionTitle: "Yuletide",
		Message:         "A new member has applied to join.",
	}

	html, err := renderTemplate(notificationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Archive") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Yuletide") {
		t.Error("template should contain collection title")
	}
	if !strings.Contains(html, "A new member has applied to join.") {
		t.Error("template should contain the message")
	}
}

func TestRenderRevealTemplates(t *testing.T) {
	data := RevealData{
		AppName:         "Archive",
		ItemTitle:       "A Study in Winter",
		CollectionTitle: "Yuletide",
	}

	html, err := renderTemplate(revealEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "A Study in Winter") {
		t.Error("reveal template should contain item title")
	}
	if !strings.Contains(html, "Yuletide") {
		t.Error("reveal template should contain collection title")
	}

	html, err = renderTemplate(authorRevealEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "no longer anonymous") {
		t.Error("author reveal template should mention anonymity")
	}
	if !strings.Contains(html, "A Study in Winter") {
		t.Error("author reveal template should contain item title")
	}
}

func TestTemplateEscapesMessage(t *testing.T) {
	data := NotificationData{
		AppName:         "Archive",
		CollectionTitle: "Yuletide",
		Message:         `<script>alert("x")</script>`,
	}

	html, err := renderTemplate(notificationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("message must be escaped")
	}
}
