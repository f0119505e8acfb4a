package vision_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/vision"
)

var pngImage = vision.Image{Name: "tree.png", MediaType: "image/png", Data: []byte("\x89PNG fake")}

const recordsReply = `[{"full_name":"محمد","parent_name":null,"branch_name":"Salem"},{"full_name":"علي","parent_name":"محمد","branch_name":"Salem"}]`

type fakeModel struct {
	srv  *httptest.Server
	hits atomic.Int32

	mu   sync.Mutex
	body map[string]any
	hdr  http.Header
}

func (f *fakeModel) request() (map[string]any, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, f.hdr
}

func newFakeModel(t *testing.T, path string, status int, reply any) *fakeModel {
	t.Helper()
	f := &fakeModel{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if raw, err := io.ReadAll(r.Body); err == nil {
			_ = json.Unmarshal(raw, &body)
		}
		f.mu.Lock()
		f.body, f.hdr = body, r.Header.Clone()
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "%T", v)
	return m
}

func asList(t *testing.T, v any) []any {
	t.Helper()
	l, ok := v.([]any)
	require.True(t, ok, "%T", v)
	return l
}

func wantRecords() []member.ExtractedRecord {
	return []member.ExtractedRecord{
		{FullName: "محمد", BranchName: "Salem"},
		{FullName: "علي", ParentName: "محمد", BranchName: "Salem"},
	}
}

func TestOpenAIExtractor_SendsImageAndParsesReply(t *testing.T) {
	fake := newFakeModel(t, "/chat/completions", http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": "```json\n" + recordsReply + "\n```"},
		}},
	})
	ex, err := vision.NewOpenAIExtractor(vision.OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    fake.srv.URL + "/",
		MaxElapsed: time.Second,
	})
	require.NoError(t, err)

	got, err := ex.Extract(context.Background(), pngImage, "Salem")
	require.NoError(t, err)
	assert.Equal(t, wantRecords(), got)
	assert.Equal(t, int32(1), fake.hits.Load())
	body, hdr := fake.request()
	assert.Equal(t, "Bearer test-key", hdr.Get("Authorization"))

	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, float64(0), body["temperature"])
	messages := asList(t, body["messages"])
	require.Len(t, messages, 2)
	assert.Equal(t, "system", asMap(t, messages[0])["role"])

	parts := asList(t, asMap(t, messages[1])["content"])
	require.Len(t, parts, 2)
	img := asMap(t, parts[0])
	assert.Equal(t, "image_url", img["type"])
	imageURL := asMap(t, img["image_url"])
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngImage.Data), imageURL["url"])
	assert.Equal(t, "high", imageURL["detail"])
	text := asMap(t, parts[1])
	assert.Equal(t, "text", text["type"])
	assert.Contains(t, text["text"], `"Salem"`)
}

func TestOpenAIExtractor_NoChoicesFailsWithoutRetry(t *testing.T) {
	fake := newFakeModel(t, "/chat/completions", http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []any{},
	})
	ex, err := vision.NewOpenAIExtractor(vision.OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    fake.srv.URL + "/",
		MaxElapsed: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = ex.Extract(context.Background(), pngImage, "Salem")
	require.ErrorIs(t, err, vision.ErrEmptyResponse)
	assert.Equal(t, int32(1), fake.hits.Load())
}

func TestOpenAIExtractor_ClientErrorIsNotRetried(t *testing.T) {
	fake := newFakeModel(t, "/chat/completions", http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "bad image", "type": "invalid_request_error"},
	})
	ex, err := vision.NewOpenAIExtractor(vision.OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    fake.srv.URL + "/",
		MaxElapsed: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = ex.Extract(context.Background(), pngImage, "Salem")
	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), fake.hits.Load())
}

func TestAnthropicExtractor_PicksTextBlock(t *testing.T) {
	fake := newFakeModel(t, "/v1/messages", http.StatusOK, map[string]any{
		"id":    "msg_1",
		"type":  "message",
		"role":  "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": []any{
			map[string]any{"type": "thinking", "thinking": "reading the diagram", "signature": "sig"},
			map[string]any{"type": "text", "text": recordsReply},
		},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
	})
	ex, err := vision.NewAnthropicExtractor(vision.AnthropicConfig{
		APIKey:     "test-key",
		BaseURL:    fake.srv.URL + "/",
		MaxElapsed: time.Second,
	})
	require.NoError(t, err)

	got, err := ex.Extract(context.Background(), pngImage, "Salem")
	require.NoError(t, err)
	assert.Equal(t, wantRecords(), got)
	body, hdr := fake.request()
	assert.Equal(t, "test-key", hdr.Get("X-Api-Key"))

	system := asList(t, body["system"])
	require.NotEmpty(t, system)
	assert.NotEmpty(t, asMap(t, system[0])["text"])

	messages := asList(t, body["messages"])
	require.Len(t, messages, 1)
	blocks := asList(t, asMap(t, messages[0])["content"])
	require.Len(t, blocks, 2)
	img := asMap(t, blocks[0])
	assert.Equal(t, "image", img["type"])
	src := asMap(t, img["source"])
	assert.Equal(t, "base64", src["type"])
	assert.Equal(t, "image/png", src["media_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngImage.Data), src["data"])
	assert.Contains(t, asMap(t, blocks[1])["text"], `"Salem"`)
}

func TestAnthropicExtractor_NoTextBlockIsEmptyResponse(t *testing.T) {
	fake := newFakeModel(t, "/v1/messages", http.StatusOK, map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-3-5-sonnet-20241022",
		"content":     []any{},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 0},
	})
	ex, err := vision.NewAnthropicExtractor(vision.AnthropicConfig{
		APIKey:     "test-key",
		BaseURL:    fake.srv.URL + "/",
		MaxElapsed: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = ex.Extract(context.Background(), pngImage, "Salem")
	require.ErrorIs(t, err, vision.ErrEmptyResponse)
	assert.Equal(t, int32(1), fake.hits.Load())
}
