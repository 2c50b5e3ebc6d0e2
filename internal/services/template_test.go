package services

import (
	"strings"
	"testing"
)

func TestRenderTemplate(t *testing.T) {
	values := map[string]string{
		"user_name":  "Alice",
		"eval_title": "Intro to Go",
	}

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "plain substitution",
			text:     "Dear {{user_name}},",
			expected: "Dear Alice,",
		},
		{
			name:     "whitespace inside braces",
			text:     "Dear {{ user_name }},",
			expected: "Dear Alice,",
		},
		{
			name:     "multiple placeholders",
			text:     "{{user_name}}: {{eval_title}}",
			expected: "Alice: Intro to Go",
		},
		{
			name:     "repeated placeholder",
			text:     "{{user_name}} and {{user_name}}",
			expected: "Alice and Alice",
		},
		{
			name:     "no placeholders",
			text:     "Nothing to do here",
			expected: "Nothing to do here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.text, values)
			if err != nil {
				t.Fatalf("RenderTemplate: %v", err)
			}
			if got != tt.expected {
				t.Errorf("RenderTemplate() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestRenderTemplateUnresolved(t *testing.T) {
	_, err := RenderTemplate("Hello {{user_name}}, due {{due_date}}", map[string]string{
		"user_name": "Alice",
	})
	if err == nil {
		t.Fatal("expected error for unresolved placeholder")
	}
	if !strings.Contains(err.Error(), "due_date") {
		t.Errorf("error should name the missing placeholder, got %q", err.Error())
	}
}
