package export

import (
	"strings"
	"testing"
	"time"
)

func TestBodyToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty body",
			input:    "",
			expected: "",
		},
		{
			name:     "single paragraph",
			input:    "The rain had not stopped for three days.",
			expected: "<p>The rain had not stopped for three days.</p>",
		},
		{
			name:     "two paragraphs",
			input:    "First paragraph.\n\nSecond paragraph.",
			expected: "<p>First paragraph.</p>\n<p>Second paragraph.</p>",
		},
		{
			name:     "line break within paragraph",
			input:    "Line one\nline two",
			expected: "<p>Line one<br>\nline two</p>",
		},
		{
			name:     "html is escaped",
			input:    "a <b>bold</b> claim",
			expected: "<p>a &lt;b&gt;bold&lt;/b&gt; claim</p>",
		},
		{
			name:     "windows line endings",
			input:    "First.\r\n\r\nSecond.",
			expected: "<p>First.</p>\n<p>Second.</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strings.TrimSpace(BodyToHTML(tt.input))
			if result != tt.expected {
				t.Errorf("BodyToHTML(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"The Long Rain", "The-Long-Rain"},
		{"Chapter 3: Arrival", "Chapter-3-Arrival"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "chapter"},
		{"A Very Long Chapter Title That Exceeds Fifty Character Limit", "A-Very-Long-Chapter-Title-That-Exceeds-Fifty-Chara"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderChapterHTML(t *testing.T) {
	data := TemplateData{
		OrderNumber: 3,
		Code:        "ch-03",
		Title:       "The Long Rain",
		Status:      "reviewed",
		WriterName:  "Ines Navarro",
		BodyHTML:    "<p>This is the body.</p>",
		UpdatedAt:   time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC),
	}

	html, err := RenderChapterHTML(data)
	if err != nil {
		t.Fatalf("RenderChapterHTML() error = %v", err)
	}

	if !strings.Contains(html, "The Long Rain") {
		t.Error("HTML missing title")
	}
	if !strings.Contains(html, "ch-03") {
		t.Error("HTML missing chapter code")
	}
	if !strings.Contains(html, "Ines Navarro") {
		t.Error("HTML missing writer name")
	}
	if !strings.Contains(html, "May 14, 2026") {
		t.Error("HTML missing formatted date")
	}

	// Body HTML must be rendered raw, not escaped
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("body content was escaped - should be rendered as raw HTML")
	}
	if !strings.Contains(html, "<p>This is the body.</p>") {
		t.Error("HTML should contain unescaped body markup")
	}
}
