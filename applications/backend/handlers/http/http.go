package http

import (
	"net/http"

	"github.com/go-kit/log"

	"github.com/donmikel/mediaupload/applications/backend"
	"github.com/donmikel/mediaupload/applications/backend/config"
)

func NewHTTPServer(conf config.Api, uploadService backend.UploadService, metrics http.Handler, logger log.Logger) *http.Server {
	mux := NewRouter(uploadService, conf.Token, metrics, logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}
}
