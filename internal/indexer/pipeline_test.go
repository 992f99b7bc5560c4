package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"storyrag/internal/corpus"
	llmmocks "storyrag/internal/llm/mocks"
	"storyrag/internal/storage"
	storagemocks "storyrag/internal/storage/mocks"
	"storyrag/internal/vectorstore"
	vsmocks "storyrag/internal/vectorstore/mocks"
)

const testCollection = "story_knowledge"

type testDeps struct {
	hashes   *storagemocks.MockHashStore
	embedder *llmmocks.MockEmbedder
	store    *vsmocks.MockVectorStore
}

func newTestPipeline(t *testing.T, root string) (*Pipeline, testDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := testDeps{
		hashes:   storagemocks.NewMockHashStore(ctrl),
		embedder: llmmocks.NewMockEmbedder(ctrl),
		store:    vsmocks.NewMockVectorStore(ctrl),
	}

	loader := corpus.NewLoader(root, corpus.DefaultLayout())
	// Single worker keeps call ordering deterministic in tests
	pipeline := NewPipeline(loader, deps.hashes, deps.embedder, deps.store, testCollection, 1)
	return pipeline, deps
}

func writeDoc(t *testing.T, root, relPath, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

func embeddingsFor(texts []string) [][]float32 {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs
}

func TestPipeline_IndexAll_NewDocument(t *testing.T) {
	root := t.TempDir()
	hash := writeDoc(t, root, "设定/人物.md", "# 人物\n\n人物设定内容。")
	pipeline, deps := newTestPipeline(t, root)
	ctx := context.Background()

	deps.hashes.EXPECT().Get(gomock.Any(), "设定/人物.md").Return("", storage.ErrNotFound)
	deps.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, texts []string) ([][]float32, error) {
			return embeddingsFor(texts), nil
		})

	gomock.InOrder(
		deps.store.EXPECT().DeleteBySourcePath(gomock.Any(), testCollection, "设定/人物.md").Return(nil),
		deps.store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, points []vectorstore.Point) error {
				if len(points) == 0 {
					t.Error("Upsert() called with no points")
				}
				for _, p := range points {
					if p.Meta.SourcePath != "设定/人物.md" {
						t.Errorf("point SourcePath = %q", p.Meta.SourcePath)
					}
					if p.Meta.Category != "setting" {
						t.Errorf("point Category = %q, want setting", p.Meta.Category)
					}
				}
				return nil
			}),
		deps.hashes.EXPECT().Set(gomock.Any(), "设定/人物.md", hash).Return(nil),
	)

	summary, err := pipeline.IndexAll(ctx, false)
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if summary.Indexed != 1 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Errorf("IndexAll() summary = %+v, want 1 indexed", summary)
	}
}

func TestPipeline_IndexAll_SkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	hash := writeDoc(t, root, "Vol1/第1章.md", "章节正文内容，足够成为一个段落。")
	pipeline, deps := newTestPipeline(t, root)

	// Matching hash: no embedding calls, no store writes
	deps.hashes.EXPECT().Get(gomock.Any(), "Vol1/第1章.md").Return(hash, nil)

	summary, err := pipeline.IndexAll(context.Background(), false)
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if summary.Skipped != 1 || summary.Indexed != 0 {
		t.Errorf("IndexAll() summary = %+v, want 1 skipped", summary)
	}
}

func TestPipeline_IndexAll_ReindexesChanged(t *testing.T) {
	root := t.TempDir()
	hash := writeDoc(t, root, "Vol1/第1章.md", "修改后的章节正文内容。")
	pipeline, deps := newTestPipeline(t, root)

	deps.hashes.EXPECT().Get(gomock.Any(), "Vol1/第1章.md").Return("stale-hash", nil)
	deps.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, texts []string) ([][]float32, error) {
			return embeddingsFor(texts), nil
		})
	deps.store.EXPECT().DeleteBySourcePath(gomock.Any(), testCollection, "Vol1/第1章.md").Return(nil)
	deps.store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).Return(nil)
	deps.hashes.EXPECT().Set(gomock.Any(), "Vol1/第1章.md", hash).Return(nil)

	summary, err := pipeline.IndexAll(context.Background(), false)
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if summary.Indexed != 1 {
		t.Errorf("IndexAll() summary = %+v, want 1 indexed", summary)
	}
}

func TestPipeline_IndexAll_ForceIgnoresHashes(t *testing.T) {
	root := t.TempDir()
	hash := writeDoc(t, root, "Vol1/第1章.md", "未修改的章节正文内容。")
	pipeline, deps := newTestPipeline(t, root)

	// No Get expectation: force must not consult recorded hashes
	deps.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, texts []string) ([][]float32, error) {
			return embeddingsFor(texts), nil
		})
	deps.store.EXPECT().DeleteBySourcePath(gomock.Any(), testCollection, "Vol1/第1章.md").Return(nil)
	deps.store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).Return(nil)
	deps.hashes.EXPECT().Set(gomock.Any(), "Vol1/第1章.md", hash).Return(nil)

	summary, err := pipeline.IndexAll(context.Background(), true)
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if summary.Indexed != 1 {
		t.Errorf("IndexAll() summary = %+v, want 1 indexed", summary)
	}
}

func TestPipeline_IndexAll_FailureDoesNotStopPass(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Vol1/第1章.md", "第一章正文。")
	okHash := writeDoc(t, root, "Vol1/第2章.md", "第二章正文。")
	pipeline, deps := newTestPipeline(t, root)

	// First document fails at embedding, second still gets indexed and
	// the failed document's hash record is left untouched.
	deps.hashes.EXPECT().Get(gomock.Any(), "Vol1/第1章.md").Return("", storage.ErrNotFound)
	deps.embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"第一章正文。"}).Return(nil, errors.New("connection refused"))

	deps.hashes.EXPECT().Get(gomock.Any(), "Vol1/第2章.md").Return("", storage.ErrNotFound)
	deps.embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"第二章正文。"}).DoAndReturn(
		func(_ context.Context, texts []string) ([][]float32, error) {
			return embeddingsFor(texts), nil
		})
	deps.store.EXPECT().DeleteBySourcePath(gomock.Any(), testCollection, "Vol1/第2章.md").Return(nil)
	deps.store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).Return(nil)
	deps.hashes.EXPECT().Set(gomock.Any(), "Vol1/第2章.md", okHash).Return(nil)

	summary, err := pipeline.IndexAll(context.Background(), false)
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if summary.Indexed != 1 || summary.Failed != 1 {
		t.Errorf("IndexAll() summary = %+v, want 1 indexed and 1 failed", summary)
	}
}

func TestPipeline_IndexAll_MissingRootIsFatal(t *testing.T) {
	pipeline, _ := newTestPipeline(t, filepath.Join(t.TempDir(), "absent"))

	if _, err := pipeline.IndexAll(context.Background(), false); err == nil {
		t.Error("IndexAll() expected error for missing content root, got nil")
	}
}
