package cli

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	slidepreview "github.com/VantageDataChat/SlidePreview"
)

// maxUploadSize bounds uploaded decks.
const maxUploadSize = 200 << 20

func newServeCmd() *cobra.Command {
	addr := ":8080"
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve slide previews over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(newPipeline(loadEnv(), logger), logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()
			logger.Info("listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", addr, "listen address")
	return cmd
}

type server struct {
	pipeline *pipeline
	logger   *log.Logger
}

// newServer returns the preview API:
//
//	GET  /api/health
//	POST /api/render  multipart field "file"; query: quality, scale, width, height, fallbacks
func newServer(p *pipeline, logger *log.Logger) http.Handler {
	s := &server{pipeline: p, logger: logger}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/api/health", s.health)
	r.Post("/api/render", s.render)
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": slidepreview.Version})
}

type renderResponse struct {
	Title  string                        `json:"title"`
	Author string                        `json:"author"`
	Slides []*slidepreview.RenderedSlide `json:"slides"`
}

func (s *server) render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	opts, err := queryOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := slidepreview.WithLogger(r.Context(), s.logger.With("request", middleware.GetReqID(r.Context())))
	doc, err := s.pipeline.decode(ctx, header.Filename, data)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if slidepreview.CodeOf(err) == slidepreview.CodeService {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	slides, err := s.pipeline.renderer.RenderPresentation(ctx, doc, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, sl := range slides {
		sl.EmbedDataURI()
	}
	writeJSON(w, http.StatusOK, renderResponse{Title: doc.Title, Author: doc.Author, Slides: slides})
}

func queryOptions(r *http.Request) (slidepreview.RenderOptions, error) {
	opts := slidepreview.DefaultRenderOptions()
	q := r.URL.Query()
	if v := q.Get("quality"); v != "" {
		opts.Quality = slidepreview.Quality(v)
	}
	for key, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, errors.New("invalid " + key)
			}
			*dst = n
			opts.Scale = 0
		}
	}
	if v := q.Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, errors.New("invalid scale")
		}
		opts.Scale = f
	}
	if v := q.Get("fallbacks"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("invalid fallbacks")
		}
		opts.EnableFallbacks = b
	}
	return opts, opts.Validate()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
