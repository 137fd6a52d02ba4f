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

func TestRenderStatusChangeTemplate(t *testing.T) {
	data := StatusChangeData{
		AppName:      "Galley",
		UserName:     "Ines",
		ChapterTitle: "The Long Rain",
		ChapterCode:  "ch-03",
		Status:       "reviewed",
		ActorName:    "Marta",
	}

	html, err := renderTemplate(statusChangeEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Galley") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Ines") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "The Long Rain") {
		t.Error("template should contain chapter title")
	}
	if !strings.Contains(html, "reviewed") {
		t.Error("template should contain the new status")
	}
	if !strings.Contains(html, "Marta") {
		t.Error("template should contain the actor name")
	}
}
