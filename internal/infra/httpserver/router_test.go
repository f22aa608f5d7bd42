package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apprec "github.com/bryanwahyu/naturelens/internal/application/recognition"
	domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
	"github.com/bryanwahyu/naturelens/internal/middleware"
)

type stubSigner struct{ err error }

func (s stubSigner) IssueRead(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://signed.example/get/" + key, nil
}

func (s stubSigner) IssueWrite(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://signed.example/put/" + key, nil
}

type stubClassifier struct {
	cls domain.Classification
	err error
}

func (s stubClassifier) Classify(context.Context, string) (domain.Classification, error) {
	return s.cls, s.err
}

type stubRepo struct {
	recs []*domain.Record
	puts int
}

func (s *stubRepo) Put(context.Context, *domain.Record) error { s.puts++; return nil }
func (s *stubRepo) Query(context.Context, string, int) ([]*domain.Record, error) {
	return s.recs, nil
}

func newTestServer(repo *stubRepo, signer domain.Signer, cls domain.Classifier) http.Handler {
	svc := &apprec.Service{
		Repo:       repo,
		Signer:     signer,
		Classifier: cls,
		Clock:      apprec.SystemClock{},
	}
	// same composition as cmd/api: CORS outside auth
	tokens := map[string]string{"tok-u1": "u1"}
	return CORS()(middleware.SubjectAuth(tokens)(NewRouter(svc)))
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	return w, out
}

func TestMissingIdentity(t *testing.T) {
	h := newTestServer(&stubRepo{}, stubSigner{}, stubClassifier{})

	for _, ep := range []struct{ method, path string }{
		{http.MethodPost, "/v1/uploads"},
		{http.MethodPost, "/v1/recognitions"},
		{http.MethodGet, "/v1/recognitions/history"},
	} {
		w, out := doJSON(t, h, ep.method, ep.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, ep.path)
		assert.Equal(t, "Unauthorized", out["error"], ep.path)
	}
}

func TestCrossOriginAllowance(t *testing.T) {
	h := newTestServer(&stubRepo{}, stubSigner{}, stubClassifier{})

	t.Run("preflight is answered without credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/uploads", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("unauthorized envelope still carries the allowance", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/uploads", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

		var out map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "Unauthorized", out["error"])
	})

	t.Run("success responses carry the allowance", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/recognitions/history", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Authorization", "Bearer tok-u1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestUploadSlotEndpoint(t *testing.T) {
	h := newTestServer(&stubRepo{}, stubSigner{}, stubClassifier{})

	w, out := doJSON(t, h, http.MethodPost, "/v1/uploads", "tok-u1", `{"fileExtension":".png"}`)
	require.Equal(t, http.StatusOK, w.Code)

	key, _ := out["imageKey"].(string)
	assert.True(t, strings.HasPrefix(key, "users/u1/image-"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Equal(t, float64(900), out["expiresIn"])
	assert.Equal(t, "https://signed.example/put/"+key, out["uploadUrl"])
}

func TestUploadSlotEndpointWithoutBody(t *testing.T) {
	h := newTestServer(&stubRepo{}, stubSigner{}, stubClassifier{})

	w, out := doJSON(t, h, http.MethodPost, "/v1/uploads", "tok-u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasSuffix(out["imageKey"].(string), ".jpg"))
}

func TestRecognizeEndpoint(t *testing.T) {
	cls := domain.Classification{
		Type:           domain.SpeciesPlant,
		ScientificName: "Rosa damascena",
		CommonName:     "Damask rose",
		Description:    "A fragrant shrub.",
		Confidence:     0.87,
	}
	repo := &stubRepo{}
	h := newTestServer(repo, stubSigner{}, stubClassifier{cls: cls})

	w, out := doJSON(t, h, http.MethodPost, "/v1/recognitions", "tok-u1",
		`{"imageKey":"users/u1/image-1700000000123.png"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, true, out["success"])
	rec := out["recognition"].(map[string]any)
	assert.Equal(t, "plant", rec["type"])
	assert.Equal(t, "Rosa damascena", rec["scientificName"])
	assert.Equal(t, 0.87, rec["confidence"])
	assert.Equal(t, "users/u1/image-1700000000123.png", rec["imageKey"])
	// presigned URLs never leak into the response
	for _, v := range rec {
		s, ok := v.(string)
		if ok {
			assert.NotContains(t, s, "signed.example")
		}
	}
	assert.Equal(t, 1, repo.puts)
}

func TestRecognizeEndpointFailures(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		classifier stubClassifier
		signer     stubSigner
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing imageKey",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "BadRequest",
		},
		{
			name:       "foreign imageKey",
			body:       `{"imageKey":"users/u2/image-1.jpg"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "BadRequest",
		},
		{
			name:       "model output malformed",
			body:       `{"imageKey":"users/u1/image-1.jpg"}`,
			classifier: stubClassifier{err: fmt.Errorf("%w: unexpected token", domain.ErrClassificationParse)},
			wantStatus: http.StatusBadGateway,
			wantError:  "ClassificationParseFailure",
		},
		{
			name:       "model output out of contract",
			body:       `{"imageKey":"users/u1/image-1.jpg"}`,
			classifier: stubClassifier{err: fmt.Errorf("%w: confidence 1.2", domain.ErrClassificationInvalid)},
			wantStatus: http.StatusBadGateway,
			wantError:  "ClassificationValidationFailure",
		},
		{
			name:       "signer down",
			body:       `{"imageKey":"users/u1/image-1.jpg"}`,
			signer:     stubSigner{err: fmt.Errorf("%w: dial tcp", domain.ErrSigningFailure)},
			wantStatus: http.StatusBadGateway,
			wantError:  "SigningFailure",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{}
			h := newTestServer(repo, tc.signer, tc.classifier)
			w, out := doJSON(t, h, http.MethodPost, "/v1/recognitions", "tok-u1", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantError, out["error"])
			assert.NotEmpty(t, out["message"])
			assert.Equal(t, 0, repo.puts)
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		h := newTestServer(&stubRepo{}, stubSigner{}, stubClassifier{})
		w, out := doJSON(t, h, http.MethodGet, "/v1/recognitions/history", "tok-u1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, out["success"])
		assert.Equal(t, float64(0), out["count"])
		assert.Equal(t, []any{}, out["history"])
	})

	t.Run("records enriched with fresh urls", func(t *testing.T) {
		repo := &stubRepo{recs: []*domain.Record{
			{
				SubjectID:     "u1",
				Timestamp:     2000,
				RecognitionID: "rec-b",
				ImageKey:      "users/u1/image-2000.jpg",
				Classification: domain.Classification{
					Type: domain.SpeciesAnimal, ScientificName: "Vulpes vulpes",
					CommonName: "Red fox", Description: "A canid.", Confidence: 0.92,
				},
				CreatedAt: time.UnixMilli(2000).UTC(),
			},
			{
				SubjectID:     "u1",
				Timestamp:     1000,
				RecognitionID: "rec-a",
				ImageKey:      "users/u1/image-1000.jpg",
				Classification: domain.Classification{
					Type: domain.SpeciesPlant, ScientificName: "Rosa damascena",
					CommonName: "Damask rose", Description: "A shrub.", Confidence: 0.87,
				},
				CreatedAt: time.UnixMilli(1000).UTC(),
			},
		}}
		h := newTestServer(repo, stubSigner{}, stubClassifier{})

		w, out := doJSON(t, h, http.MethodGet, "/v1/recognitions/history", "tok-u1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), out["count"])

		history := out["history"].([]any)
		first := history[0].(map[string]any)
		second := history[1].(map[string]any)
		assert.Equal(t, "rec-b", first["recognitionId"])
		assert.Equal(t, "rec-a", second["recognitionId"])
		assert.Equal(t, "https://signed.example/get/users/u1/image-2000.jpg", first["imageUrl"])
		assert.Equal(t, "users/u1/image-2000.jpg", first["imageKey"])
	})

	t.Run("enrichment failure is all-or-nothing", func(t *testing.T) {
		repo := &stubRepo{recs: []*domain.Record{{
			SubjectID: "u1", Timestamp: 1000, RecognitionID: "rec-a",
			ImageKey: "users/u1/image-1000.jpg",
		}}}
		h := newTestServer(repo, stubSigner{err: fmt.Errorf("%w: down", domain.ErrSigningFailure)}, stubClassifier{})

		w, out := doJSON(t, h, http.MethodGet, "/v1/recognitions/history", "tok-u1", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "EnrichmentFailure", out["error"])
	})
}
