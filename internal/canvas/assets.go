package canvas

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/srwiley/oksvg"
	"golang.org/x/sync/errgroup"
)

const (
	assetCacheSize   = 128
	assetFetchLimit  = 4
	assetFetchWindow = 15 * time.Second
	maxImageBytes    = 16 << 20
)

var fillAttrRe = regexp.MustCompile(`fill="[^"]*"`)

// Assets fetches and caches the external resources a design references:
// decoded images keyed by source URL and parsed SVG icons keyed by markup
// plus recolor fill.
type Assets struct {
	httpClient *http.Client
	images     *lru.Cache[string, image.Image]
	icons      *lru.Cache[string, *oksvg.SvgIcon]
	log        zerolog.Logger
}

func NewAssets(log zerolog.Logger) (*Assets, error) {
	images, err := lru.New[string, image.Image](assetCacheSize)
	if err != nil {
		return nil, err
	}
	icons, err := lru.New[string, *oksvg.SvgIcon](assetCacheSize)
	if err != nil {
		return nil, err
	}
	return &Assets{
		httpClient: &http.Client{Timeout: assetFetchWindow},
		images:     images,
		icons:      icons,
		log:        log,
	}, nil
}

// Resolved holds every asset a scene needs, loaded up front. A source that
// failed to load is simply absent; the renderer skips its node.
type Resolved struct {
	Images map[string]image.Image
	Icons  map[string]*oksvg.SvgIcon
}

// Resolve loads every image and SVG icon the scene references before any
// rendering starts. Failures are logged and the asset skipped; the rest of
// the scene still renders.
func (a *Assets) Resolve(ctx context.Context, s *Scene) *Resolved {
	out := &Resolved{
		Images: make(map[string]image.Image),
		Icons:  make(map[string]*oksvg.SvgIcon),
	}

	type imageJob struct{ src string }
	type iconJob struct{ markup, fill string }
	var (
		imageJobs []imageJob
		iconJobs  []iconJob
		seen      = make(map[string]bool)
	)
	for _, n := range s.Nodes {
		switch {
		case n.Object.Src != "":
			if !seen["img:"+n.Object.Src] {
				seen["img:"+n.Object.Src] = true
				imageJobs = append(imageJobs, imageJob{src: n.Object.Src})
			}
		case n.Object.SVGData != "":
			key := iconKey(n.Object.SVGData, n.Object.Fill)
			if !seen["svg:"+key] {
				seen["svg:"+key] = true
				iconJobs = append(iconJobs, iconJob{markup: n.Object.SVGData, fill: n.Object.Fill})
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(assetFetchLimit)

	results := make(chan func(*Resolved), len(imageJobs)+len(iconJobs))
	for _, job := range imageJobs {
		job := job
		g.Go(func() error {
			img, err := a.loadImage(ctx, job.src)
			if err != nil {
				a.log.Warn().Err(err).Str("src", job.src).Msg("skipping unloadable image")
				return nil
			}
			results <- func(r *Resolved) { r.Images[job.src] = img }
			return nil
		})
	}
	for _, job := range iconJobs {
		job := job
		g.Go(func() error {
			icon, err := a.loadIcon(job.markup, job.fill)
			if err != nil {
				a.log.Warn().Err(err).Msg("skipping unparsable svg")
				return nil
			}
			results <- func(r *Resolved) { r.Icons[iconKey(job.markup, job.fill)] = icon }
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	for apply := range results {
		apply(out)
	}
	return out
}

func (a *Assets) loadImage(ctx context.Context, src string) (image.Image, error) {
	if img, ok := a.images.Get(src); ok {
		return img, nil
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err = decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		data, err = a.fetch(ctx, src)
	default:
		err = fmt.Errorf("unsupported image source scheme")
	}
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	a.images.Add(src, img)
	return img, nil
}

func (a *Assets) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

func (a *Assets) loadIcon(markup, fill string) (*oksvg.SvgIcon, error) {
	key := iconKey(markup, fill)
	if icon, ok := a.icons.Get(key); ok {
		return icon, nil
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(recolorSVG(markup, fill)))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	a.icons.Add(key, icon)
	return icon, nil
}

func iconKey(markup, fill string) string {
	return fill + "\x00" + markup
}

// recolorSVG rewrites the icon's fill color. currentColor always resolves to
// the node fill; explicit fill attributes are overridden only when a recolor
// fill is set.
func recolorSVG(markup, fill string) string {
	if fill == "" {
		return markup
	}
	out := strings.ReplaceAll(markup, "currentColor", fill)
	return fillAttrRe.ReplaceAllString(out, `fill="`+fill+`"`)
}

func decodeDataURI(src string) ([]byte, error) {
	idx := strings.Index(src, ",")
	if idx < 0 {
		return nil, fmt.Errorf("malformed data uri")
	}
	meta, payload := src[:idx], src[idx+1:]
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}
