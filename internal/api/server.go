// Package api serves stored diagnostics over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/formprobe/internal/artifacts"
	"github.com/dgnsrekt/formprobe/internal/relay"
)

// Store is the read/delete side of artifacts.Store.
type Store interface {
	List() ([]artifacts.Meta, error)
	Get(id string) (artifacts.Meta, error)
	ReadFile(id, name string) ([]byte, error)
	Delete(id string) error
}

var _ Store = (*artifacts.Store)(nil)

type artifactIDInput struct {
	ArtifactID string `path:"artifact_id" doc:"Artifact set id (uuid)"`
}

type artifactFileInput struct {
	ArtifactID string `path:"artifact_id" doc:"Artifact set id (uuid)"`
	Name       string `path:"name" doc:"File name as listed in the metadata"`
}

// Option adds optional routes to the server.
type Option func(chi.Router)

// WithLiveFeed streams run events from b at GET /api/v1/live.
func WithLiveFeed(b *relay.Broker) Option {
	return func(r chi.Router) {
		r.Get("/api/v1/live", relay.SSEHandler(b))
	}
}

func NewServer(store Store, opts ...Option) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("formprobe artifacts API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerHealthHandlers(api)
	registerArtifactHandlers(api, store)
	for _, opt := range opts {
		opt(router)
	}

	return router
}

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func registerArtifactHandlers(api huma.API, store Store) {
	type listArtifactsOutput struct {
		Body struct {
			Artifacts []artifacts.Meta `json:"artifacts"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-artifacts", Method: http.MethodGet, Path: "/api/v1/artifacts", Summary: "List artifact sets", Tags: []string{"Artifacts"}},
		func(ctx context.Context, input *struct{}) (*listArtifactsOutput, error) {
			metas, err := store.List()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listArtifactsOutput{}
			out.Body.Artifacts = metas
			if out.Body.Artifacts == nil {
				out.Body.Artifacts = []artifacts.Meta{}
			}
			return out, nil
		})

	type getArtifactOutput struct {
		Body artifacts.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-artifact", Method: http.MethodGet, Path: "/api/v1/artifacts/{artifact_id}", Summary: "Get artifact metadata", Tags: []string{"Artifacts"}},
		func(ctx context.Context, input *artifactIDInput) (*getArtifactOutput, error) {
			meta, err := store.Get(input.ArtifactID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getArtifactOutput{Body: meta}, nil
		})

	type artifactFileOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-artifact-file",
		Method:      http.MethodGet,
		Path:        "/api/v1/artifacts/{artifact_id}/files/{name}",
		Summary:     "Download an artifact file",
		Tags:        []string{"Artifacts"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Raw file bytes",
				Content: map[string]*huma.MediaType{
					"application/octet-stream": {
						Schema: &huma.Schema{Type: "string", Format: "binary"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *artifactFileInput) (*artifactFileOutput, error) {
		data, err := store.ReadFile(input.ArtifactID, input.Name)
		if err != nil {
			return nil, mapErr(err)
		}
		return &artifactFileOutput{ContentType: contentType(input.Name), Body: data}, nil
	})

	type deleteArtifactOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-artifact", Method: http.MethodDelete, Path: "/api/v1/artifacts/{artifact_id}", Summary: "Delete an artifact set", Tags: []string{"Artifacts"}},
		func(ctx context.Context, input *artifactIDInput) (*deleteArtifactOutput, error) {
			if err := store.Delete(input.ArtifactID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteArtifactOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}

func contentType(name string) string {
	switch ext := filepath.Ext(name); ext {
	case ".jsonl":
		return "application/x-ndjson"
	case "":
		return "application/octet-stream"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, artifacts.ErrInvalidID):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, artifacts.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
