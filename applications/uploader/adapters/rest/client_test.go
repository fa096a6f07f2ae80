package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
	"github.com/donmikel/mediaupload/pkg/uploadapi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequestIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/uploads/product-image/intents", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req uploadapi.IntentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image/png", req.ContentType)

		writeJSON(w, http.StatusOK, uploadapi.IntentResponse{
			Key:     "k1",
			URL:     "https://store/k1",
			Headers: http.Header{"Content-Type": []string{"image/png"}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL+"/api/", WithHeaders(http.Header{"Authorization": []string{"Bearer secret"}}))
	require.NoError(t, err)

	intent, err := c.RequestIntent(context.Background(), domain.PurposeProductImage, "image/png")

	require.NoError(t, err)
	assert.Equal(t, domain.UploadIntent{
		Key:         "k1",
		Destination: "https://store/k1",
		Headers:     http.Header{"Content-Type": []string{"image/png"}},
	}, intent)
}

func TestRequestIntentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, uploadapi.ErrorResponse{Error: "content type application/x-msdownload is not allowed"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = c.RequestIntent(context.Background(), domain.PurposeProductImage, "application/x-msdownload")

	assert.ErrorIs(t, err, domain.ErrIntentRejected)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestRequestIntentServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = c.RequestIntent(context.Background(), domain.PurposeVideo, "video/mp4")

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "502")
}

func TestRequestIntentLocalChecks(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = c.RequestIntent(context.Background(), domain.PurposeVideo, "")
	assert.ErrorIs(t, err, domain.ErrIntentRejected)

	_, err = c.RequestIntent(context.Background(), "poster", "image/png")
	assert.ErrorIs(t, err, domain.ErrIntentRejected)

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestRequestIntentCustomPurposePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/shops/logo/intents", r.URL.Path)
		writeJSON(w, http.StatusOK, uploadapi.IntentResponse{Key: "shops/k", URL: "https://store/shops/k"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, WithPurposePaths(map[domain.Purpose]string{"shop-logo": "/v1/shops/logo/intents"}))
	require.NoError(t, err)

	intent, err := c.RequestIntent(context.Background(), "shop-logo", "image/svg+xml")

	require.NoError(t, err)
	assert.Equal(t, "shops/k", intent.Key)
	assert.NotNil(t, intent.Headers)
}

func TestRequestIntentMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, uploadapi.IntentResponse{Key: "k1"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = c.RequestIntent(context.Background(), domain.PurposeAvatar, "image/jpeg")

	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestGetStatus(t *testing.T) {
	answers := []uploadapi.StatusResponse{
		{Status: uploadapi.StatusWaiting},
		{Status: uploadapi.StatusSucceeded, URL: "https://cdn/k1"},
	}
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, uploadapi.StatusPath, r.URL.Path)

		var req uploadapi.StatusRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "k1", req.Key)

		i := atomic.AddInt32(&n, 1) - 1
		writeJSON(w, http.StatusOK, answers[i])
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	first, err := c.GetStatus(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResult{Status: domain.StatusWaiting}, first)

	second, err := c.GetStatus(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResult{Status: domain.StatusSucceeded, URL: "https://cdn/k1"}, second)
}

func TestGetStatusMalformed(t *testing.T) {
	tests := []struct {
		name string
		resp uploadapi.StatusResponse
	}{
		{name: "unknown status", resp: uploadapi.StatusResponse{Status: "DONE"}},
		{name: "succeeded without url", resp: uploadapi.StatusResponse{Status: uploadapi.StatusSucceeded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.resp)
			}))
			defer srv.Close()

			c, err := NewClient(srv.Client(), srv.URL)
			require.NoError(t, err)

			_, err = c.GetStatus(context.Background(), "k1")
			assert.ErrorIs(t, err, domain.ErrTransport)
		})
	}
}

func TestGetStatusNotFoundIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, uploadapi.ErrorResponse{Error: "upload not found"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	_, err = c.GetStatus(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "upload not found")
}

func TestWriterSendsExactlyIntentHeaders(t *testing.T) {
	var got http.Header
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		got = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		body = string(data)
	}))
	defer srv.Close()

	w := NewWriter(srv.Client(), nil)
	intent := domain.UploadIntent{
		Key:         "k1",
		Destination: srv.URL + "/storage/k1",
		Headers: http.Header{
			"Content-Type":   []string{"image/png"},
			"X-Upload-Token": []string{"t1"},
		},
	}

	err := w.Write(context.Background(), intent, strings.NewReader("payload"), 7)

	require.NoError(t, err)
	assert.Equal(t, "payload", body)
	assert.Equal(t, "image/png", got.Get("Content-Type"))
	assert.Equal(t, "t1", got.Get("X-Upload-Token"))
	assert.Empty(t, got.Get("Authorization"))
}

func TestWriterNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	w := NewWriter(srv.Client(), nil)

	err := w.Write(context.Background(), domain.UploadIntent{Key: "k1", Destination: srv.URL}, strings.NewReader("x"), 1)

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "403")
}

func TestWriterNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	w := NewWriter(http.DefaultClient, nil)

	err := w.Write(context.Background(), domain.UploadIntent{Key: "k1", Destination: target}, strings.NewReader("x"), 1)

	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient(http.DefaultClient, "backend.local/api")
	assert.Error(t, err)

	_, err = NewClient(nil, "https://backend.local")
	assert.Error(t, err)
}
