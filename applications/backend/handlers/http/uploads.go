package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/donmikel/mediaupload/applications/backend"
	"github.com/donmikel/mediaupload/applications/backend/domain"
	"github.com/donmikel/mediaupload/pkg/uploadapi"
)

const maxJSONBody = 64 << 10

func NewRouter(svc backend.UploadService, token string, metrics http.Handler, logger log.Logger) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(bearerAuth(token))
	api.HandleFunc("/uploads/status", StatusHandler(svc, logger)).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{purpose}/intents", IssueIntentHandler(svc, logger)).Methods(http.MethodPost)

	r.HandleFunc("/storage/{key:.+}", StoreHandler(svc, logger)).Methods(http.MethodPut)
	r.HandleFunc("/assets/{key:.+}", AssetHandler(svc, logger)).Methods(http.MethodGet, http.MethodHead)

	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	return r
}

func IssueIntentHandler(svc backend.UploadService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purpose := mux.Vars(r)["purpose"]

		var req uploadapi.IntentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err, http.StatusBadRequest)
			return
		}
		if req.ContentType == "" {
			writeErr(w, errors.New("contentType is required"), http.StatusBadRequest)
			return
		}

		intent, err := svc.IssueIntent(r.Context(), purpose, req.ContentType)
		if err != nil {
			status := errStatus(err)
			if status >= http.StatusInternalServerError {
				level.Error(logger).Log("msg", "IssueIntent error",
					"purpose", purpose,
					"err", err,
				)
			}
			writeErr(w, err, status)
			return
		}

		writeJSON(w, http.StatusOK, uploadapi.IntentResponse{
			Key:     intent.Key,
			URL:     intent.URL,
			Headers: intent.Headers,
		})
	}
}

func StatusHandler(svc backend.UploadService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadapi.StatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err, http.StatusBadRequest)
			return
		}
		if req.Key == "" {
			writeErr(w, errors.New("key is required"), http.StatusBadRequest)
			return
		}

		asset, err := svc.Status(r.Context(), req.Key)
		if err != nil {
			writeErr(w, err, errStatus(err))
			return
		}

		resp := uploadapi.StatusResponse{Status: string(asset.Status)}
		if asset.Status == domain.StatusSucceeded {
			resp.URL = asset.PublicURL
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func StoreHandler(svc backend.UploadService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		defer r.Body.Close()

		err := svc.Store(r.Context(), key, r.Header.Get(uploadapi.UploadTokenHeader), r.Header.Get("Content-Type"), r.Body)
		if err != nil {
			level.Error(logger).Log("msg", "Store error",
				"key", key,
				"err", err,
			)
			writeErr(w, err, errStatus(err))
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func AssetHandler(svc backend.UploadService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]

		body, asset, err := svc.Open(r.Context(), key)
		if err != nil {
			writeErr(w, err, errStatus(err))
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", asset.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(asset.ContentLength, 10))
		if r.Method == http.MethodHead {
			return
		}

		if _, err = io.Copy(w, body); err != nil {
			level.Error(logger).Log("msg", "error body copy", "key", key, "err", err)
			return
		}
	}
}

func bearerAuth(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := "Bearer " + token
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != want {
				writeErr(w, errors.New("unauthorized"), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrRejected):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotReady):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIntentUsed), errors.Is(err, domain.ErrAlreadyResolved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("can't write response ", err)
	}
}

func writeErr(w http.ResponseWriter, err error, status int) {
	writeJSON(w, status, uploadapi.ErrorResponse{Error: err.Error()})
}
