package config

import (
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONTENT_ROOT", dir)
	t.Setenv("QDRANT_VECTOR_SIZE", "768")
	t.Setenv("HASH_DB_PATH", filepath.Join(dir, "data", "storyrag.db"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.QdrantURL != "http://localhost:6333" {
		t.Errorf("QdrantURL = %q, want default", cfg.QdrantURL)
	}
	if cfg.QdrantCollection != "story_knowledge" {
		t.Errorf("QdrantCollection = %q, want story_knowledge", cfg.QdrantCollection)
	}
	if cfg.QdrantVectorSize != 768 {
		t.Errorf("QdrantVectorSize = %d, want 768", cfg.QdrantVectorSize)
	}
	if cfg.IndexWorkers != 4 {
		t.Errorf("IndexWorkers = %d, want 4", cfg.IndexWorkers)
	}
	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q, want 9000", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QDRANT_COLLECTION", "custom")
	t.Setenv("INDEX_WORKERS", "8")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QdrantCollection != "custom" {
		t.Errorf("QdrantCollection = %q, want custom", cfg.QdrantCollection)
	}
	if cfg.IndexWorkers != 8 {
		t.Errorf("IndexWorkers = %d, want 8", cfg.IndexWorkers)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
	}{
		{
			name: "missing content root",
			setup: func(t *testing.T) {
				t.Setenv("CONTENT_ROOT", "")
				t.Setenv("QDRANT_VECTOR_SIZE", "768")
			},
		},
		{
			name: "missing vector size",
			setup: func(t *testing.T) {
				t.Setenv("CONTENT_ROOT", t.TempDir())
				t.Setenv("QDRANT_VECTOR_SIZE", "")
			},
		},
		{
			name: "non-numeric vector size",
			setup: func(t *testing.T) {
				t.Setenv("CONTENT_ROOT", t.TempDir())
				t.Setenv("QDRANT_VECTOR_SIZE", "large")
			},
		},
		{
			name: "negative vector size",
			setup: func(t *testing.T) {
				t.Setenv("CONTENT_ROOT", t.TempDir())
				t.Setenv("QDRANT_VECTOR_SIZE", "-1")
			},
		},
		{
			name: "zero workers",
			setup: func(t *testing.T) {
				t.Setenv("CONTENT_ROOT", t.TempDir())
				t.Setenv("QDRANT_VECTOR_SIZE", "768")
				t.Setenv("INDEX_WORKERS", "0")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("HASH_DB_PATH", filepath.Join(dir, "data", "test.db"))
			tt.setup(t)

			if _, err := Load(); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}
