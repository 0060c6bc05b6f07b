package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	slidepreview "github.com/VantageDataChat/SlidePreview"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string  // output directory
	config      string  // TOML render options file
	scale       float64 // geometry multiplier
	width       int     // target width
	height      int     // target height
	quality     string  // low, medium, high, ultra
	noFallbacks bool    // disable the fallback renderer
	noRasterize bool    // disable fallback rasterization
	maxRaster   int     // longest side of fallback snapshots
	concurrency int     // slides rendered in parallel
	serviceURL  string  // external parsing service
	manifest    string  // manifest format: json, yaml or none
}

func newRenderCmd() *cobra.Command {
	opts := renderOpts{output: ".", manifest: "json"}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render every slide of a deck to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ropts, err := opts.renderOptions(cmd)
			if err != nil {
				return err
			}
			return runRender(cmd, args[0], &opts, ropts)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

func (o *renderOpts) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", o.output, "output directory")
	f.StringVar(&o.config, "config", "", "TOML file with render options")
	f.Float64Var(&o.scale, "scale", 0, "scale applied to slide geometry")
	f.IntVar(&o.width, "width", 0, "target width in pixels")
	f.IntVar(&o.height, "height", 0, "target height in pixels")
	f.StringVar(&o.quality, "quality", "", "output quality: low, medium, high (default), ultra")
	f.BoolVar(&o.noFallbacks, "no-fallbacks", false, "omit unsupported elements instead of substituting them")
	f.BoolVar(&o.noRasterize, "no-rasterize", false, "never rasterize unsupported elements")
	f.IntVar(&o.maxRaster, "max-raster", 0, "longest side of fallback snapshots")
	f.IntVar(&o.concurrency, "concurrency", 0, "slides rendered in parallel")
	f.StringVar(&o.serviceURL, "service-url", "", "delegate decoding to a parsing service at this URL")
	f.StringVar(&o.manifest, "manifest", o.manifest, "manifest format: json, yaml, none")
}

// renderOptions layers the defaults, the config file, the environment and
// explicitly set flags, in that order.
func (o *renderOpts) renderOptions(cmd *cobra.Command) (slidepreview.RenderOptions, error) {
	ropts := slidepreview.DefaultRenderOptions()
	if o.config != "" {
		var err error
		if ropts, err = slidepreview.LoadRenderOptions(o.config); err != nil {
			return ropts, err
		}
	}
	if n := getEnvInt(envConcurrency, 0); n > 0 {
		ropts.Concurrency = n
	}
	flags := cmd.Flags()
	if flags.Changed("scale") {
		ropts.Scale = o.scale
	}
	if flags.Changed("width") || flags.Changed("height") {
		ropts.Width, ropts.Height = o.width, o.height
		if !flags.Changed("scale") {
			ropts.Scale = 0
		}
	}
	if flags.Changed("quality") {
		ropts.Quality = slidepreview.Quality(o.quality)
	}
	if o.noFallbacks {
		ropts.EnableFallbacks = false
	}
	if o.noRasterize {
		ropts.Fallback.EnableRasterization = false
	}
	if flags.Changed("max-raster") {
		ropts.Fallback.MaxRasterizationSize = o.maxRaster
	}
	if flags.Changed("concurrency") {
		ropts.Concurrency = o.concurrency
	}
	switch o.manifest {
	case "json", "yaml", "none":
	default:
		return ropts, fmt.Errorf("invalid manifest format: %s (must be json, yaml or none)", o.manifest)
	}
	return ropts, ropts.Validate()
}

// manifest is the document-level summary written next to the images.
type manifest struct {
	Source string                        `json:"source" yaml:"source"`
	Title  string                        `json:"title" yaml:"title"`
	Author string                        `json:"author" yaml:"author"`
	Slides []*slidepreview.RenderedSlide `json:"slides" yaml:"slides"`
	Files  []string                      `json:"files" yaml:"files"`
}

func runRender(cmd *cobra.Command, input string, opts *renderOpts, ropts slidepreview.RenderOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	e := loadEnv()
	if opts.serviceURL != "" {
		e.ServiceURL = opts.serviceURL
	}
	p := newPipeline(e, logger)

	doc, err := readDeck(ctx, p, input)
	if err != nil {
		return err
	}
	logger.Debug("decoded", "slides", doc.SlideCount(), "fonts", len(doc.Fonts))

	slides, err := p.renderer.RenderPresentation(ctx, doc, ropts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := os.MkdirAll(opts.output, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	files, err := writeSlides(opts.output, slides)
	if err != nil {
		return err
	}
	if opts.manifest != "none" {
		m := manifest{Source: filepath.Base(input), Title: doc.Title, Author: doc.Author, Slides: slides, Files: files}
		path, err := writeManifest(opts.output, opts.manifest, m)
		if err != nil {
			return err
		}
		logger.Debug("wrote manifest", "path", path)
	}
	prog.done(fmt.Sprintf("Rendered %d slides", len(slides)))

	out := cmd.OutOrStdout()
	printSuccess(out, "Rendered %s slides to %s", styleNumber.Render(fmt.Sprint(len(slides))), opts.output)
	printWarnings(out, slides)
	return nil
}

func readDeck(ctx context.Context, p *pipeline, input string) (*slidepreview.Document, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	doc, err := p.decode(ctx, input, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", input, err)
	}
	return doc, nil
}

// writeSlides writes slide-NN.{png,jpg} files and returns their names.
func writeSlides(dir string, slides []*slidepreview.RenderedSlide) ([]string, error) {
	files := make([]string, 0, len(slides))
	for i, s := range slides {
		ext := ".png"
		if s.MIME == "image/jpeg" {
			ext = ".jpg"
		}
		name := fmt.Sprintf("slide-%02d%s", i+1, ext)
		if err := os.WriteFile(filepath.Join(dir, name), s.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

func writeManifest(dir, format string, m manifest) (string, error) {
	var (
		data []byte
		err  error
	)
	if format == "yaml" {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest."+format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}
