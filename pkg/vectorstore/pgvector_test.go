package vectorstore

import "testing"

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Valid standard", "research_findings", true},
		{"Valid with underscore", "my_collection", true},
		{"Valid with numbers", "findings2025", true},
		{"Valid short", "a", true},
		{"Valid max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true}, // 63 chars
		{"Invalid start with number", "1findings", false},
		{"Invalid special chars", "research-findings", false},
		{"Invalid space", "research findings", false},
		{"Invalid SQL injection", "findings; DROP TABLE research_jobs", false},
		{"Invalid empty", "", false},
		{"Invalid too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false}, // 64 chars
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidTableName(tt.input); got != tt.expected {
				t.Errorf("isValidTableName(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewPGVectorStoreRejectsBadName(t *testing.T) {
	if _, err := NewPGVectorStore(nil, "bad-name"); err == nil {
		t.Fatal("expected error for invalid table name")
	}
	vs, err := NewPGVectorStore(nil, "research_findings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vs.TableName() != "research_findings" {
		t.Errorf("TableName() = %q", vs.TableName())
	}
}

func TestContainmentFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]string
		want   string
	}{
		{"Nil matches everything", nil, `{}`},
		{"Single key", map[string]string{"job_id": "42"}, `{"job_id":"42"}`},
		{"Keys sorted", map[string]string{"source": "finding", "job_id": "42"}, `{"job_id":"42","source":"finding"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := containmentFilter(tt.filter)
			if err != nil {
				t.Fatalf("containmentFilter() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("containmentFilter() = %s, want %s", got, tt.want)
			}
		})
	}
}
