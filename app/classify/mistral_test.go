package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, hits *int32, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(server.Close)
	return server
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
}

func TestClassifySuccessWithFences(t *testing.T) {
	var hits int32
	server := chatServer(t, &hits, func(w http.ResponseWriter, req chatRequest) {
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, 0.3, req.Temperature)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Environnement & Énergie")
		assert.Contains(t, req.Messages[0].Content, "Titre : Loi climat")

		reply(w, "```json\n"+`{"theme":"Environnement & Énergie","abstract":"Réduire les émissions.","summary":"La loi réduit les émissions.","pour":["Climat"],"contre":"Coût","concerne":["Entreprises","Ménages"],"confidence":0.92}`+"\n```")
	})

	c := NewMistralClassifier(Options{APIKey: "test-key", Endpoint: server.URL})
	result, err := c.Classify(context.Background(), Input{Title: "Loi climat", Summary: "Résumé", FullText: strings.Repeat("x", 5000)})
	require.NoError(t, err)

	assert.Equal(t, "Environnement & Énergie", result.Theme)
	assert.Equal(t, "La loi réduit les émissions.", result.Summary)
	assert.Equal(t, "Réduire les émissions.", result.Abstract)
	assert.Equal(t, []string{"Climat"}, result.Pros)
	assert.Equal(t, []string{"Coût"}, result.Cons)
	assert.Equal(t, []string{"Entreprises", "Ménages"}, result.Affected)
	assert.InDelta(t, 0.92, result.Confidence, 0.0001)
	assert.False(t, result.Fallback)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClassifyUnknownThemeBecomesSentinel(t *testing.T) {
	var hits int32
	server := chatServer(t, &hits, func(w http.ResponseWriter, req chatRequest) {
		reply(w, `{"theme":"Sport","summary":"Un texte sur le sport."}`)
	})

	c := NewMistralClassifier(Options{APIKey: "test-key", Endpoint: server.URL})
	result, err := c.Classify(context.Background(), Input{Title: "Loi", Summary: "Résumé"})
	require.NoError(t, err)

	assert.Equal(t, bill.SentinelTheme, result.Theme)
	assert.Equal(t, defaultConfidence, result.Confidence)
}

func TestClassifyRetriesThenFallsBack(t *testing.T) {
	var hits int32
	server := chatServer(t, &hits, func(w http.ResponseWriter, req chatRequest) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	c := NewMistralClassifier(Options{APIKey: "test-key", Endpoint: server.URL, Attempts: 4})
	result, err := c.Classify(context.Background(), Input{Title: "Loi", Summary: "Résumé humain"})
	require.Error(t, err)

	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
	assert.Equal(t, bill.SentinelTheme, result.Theme)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, "Résumé humain", result.Summary)
	assert.True(t, result.Fallback)
}

func TestClassifyUsesSharedClient(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		reply(w, `{"theme":"Santé","summary":"Remboursement des soins."}`)
	}))
	t.Cleanup(server.Close)

	client := fetch.NewClient(fetch.Options{UserAgent: "Constituant-Test"})
	c := NewMistralClassifier(Options{APIKey: "test-key", Endpoint: server.URL, Client: client})
	result, err := c.Classify(context.Background(), Input{Title: "Loi", Summary: "Résumé"})
	require.NoError(t, err)

	assert.Equal(t, "Santé", result.Theme)
	assert.Equal(t, "Constituant-Test", gotUA)
}

func TestClassifyErrorCarriesModelPayload(t *testing.T) {
	var hits int32
	server := chatServer(t, &hits, func(w http.ResponseWriter, req chatRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	})

	c := NewMistralClassifier(Options{APIKey: "test-key", Endpoint: server.URL, Attempts: 1})
	_, err := c.Classify(context.Background(), Input{Title: "Loi", Summary: "Résumé"})
	require.Error(t, err)

	assert.True(t, fetch.IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "invalid key")
}

func TestClassifyRetriesOnMalformedReply(t *testing.T) {
	var hits int32
	server := chatServer(t, &hits, func(w http.ResponseWriter, req chatRequest) {
		if atomic.LoadInt32(&hits) == 1 {
			reply(w, "Voici ma réponse : pas de JSON")
			return
		}
		reply(w, `{"theme":"Santé","summary":"Remboursement des soins."}`)
	})

	c := NewMistralClassifier(Options{APIKey: "test-key", Endpoint: server.URL})
	result, err := c.Classify(context.Background(), Input{Title: "Loi", Summary: "Résumé"})
	require.NoError(t, err)

	assert.Equal(t, "Santé", result.Theme)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClassifyDisabled(t *testing.T) {
	c := NewMistralClassifier(Options{})
	result, err := c.Classify(context.Background(), Input{Title: "Loi", Summary: "Résumé"})

	assert.True(t, errors.Is(err, ErrDisabled))
	assert.Equal(t, bill.SentinelTheme, result.Theme)
	assert.Equal(t, "Résumé", result.Summary)
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		theme   string
		conf    float64
	}{
		{"plain", `{"theme":"Justice","summary":"s","confidence":0.7}`, false, "Justice", 0.7},
		{"bare fence", "```\n{\"theme\":\"Numérique\",\"summary\":\"s\"}\n```", false, "Numérique", defaultConfidence},
		{"clamped", `{"theme":"Justice","summary":"s","confidence":7}`, false, "Justice", 1},
		{"missing summary", `{"theme":"Justice"}`, true, "", 0},
		{"missing theme", `{"summary":"s"}`, true, "", 0},
		{"not json", `theme: Justice`, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseReply(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.theme, result.Theme)
			assert.InDelta(t, tt.conf, result.Confidence, 0.0001)
		})
	}
}

func TestBuildPromptTruncatesFullText(t *testing.T) {
	prompt := buildPrompt(Input{Title: "T", Summary: "S", FullText: strings.Repeat("Z", 4000)})

	assert.Equal(t, promptFullTextLimit, strings.Count(prompt, "Z"))
}
