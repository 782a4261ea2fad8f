package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/swissutil/engine"
	"github.com/hazyhaar/swissutil/fetcher"
	"github.com/hazyhaar/swissutil/kit"
	"github.com/hazyhaar/swissutil/prefs"
	"github.com/hazyhaar/swissutil/reader"
)

var errHostRequired = errors.New("host is required")

type defaultsRequest struct {
	Selection *bool `json:"selection"`
	Reading   *bool `json:"reading"`
}

type siteRequest struct {
	Host string `json:"host"`
}

// setSiteRequest with a nil Enabled clears the override.
type setSiteRequest struct {
	Host    string `json:"host"`
	Utility string `json:"utility"`
	Enabled *bool  `json:"enabled"`
}

type customRequest struct {
	Host string `json:"host"`
	prefs.CustomState
}

type readerRequest struct {
	Patch json.RawMessage
}

type readRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Acquire string `json:"acquire"`
}

// SiteView is the resolved state of one host.
type SiteView struct {
	Host string `json:"host"`
	prefs.Effective
	// Overridden lists the utilities with a site entry.
	Overridden []prefs.Utility `json:"overridden"`
}

func normalizeHost(h string) (string, error) {
	h = strings.ToLower(strings.TrimSpace(h))
	if h == "" {
		return "", kit.Error(http.StatusBadRequest, errHostRequired)
	}
	return h, nil
}

func (s *Server) load(ctx context.Context) (prefs.Preferences, error) {
	p, err := prefs.Load(ctx, s.store)
	if err != nil {
		return p, fmt.Errorf("server: load prefs: %w", err)
	}
	return p, nil
}

func (s *Server) showPrefs(ctx context.Context, _ any) (any, error) {
	return s.load(ctx)
}

func (s *Server) setDefaults(ctx context.Context, req any) (any, error) {
	r := req.(*defaultsRequest)
	values := map[string]any{}
	if r.Selection != nil {
		values[prefs.KeyDefaultSelection] = *r.Selection
	}
	if r.Reading != nil {
		values[prefs.KeyDefaultReading] = *r.Reading
	}
	if len(values) > 0 {
		if err := s.store.Set(ctx, values); err != nil {
			return nil, err
		}
	}
	return s.load(ctx)
}

func (s *Server) site(ctx context.Context, host string) (*SiteView, error) {
	p, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	v := &SiteView{Host: host, Effective: p.Resolve(host), Overridden: []prefs.Utility{}}
	if _, ok := p.SiteSelection[host]; ok {
		v.Overridden = append(v.Overridden, prefs.Selection)
	}
	if _, ok := p.SiteReading[host]; ok {
		v.Overridden = append(v.Overridden, prefs.Reading)
	}
	return v, nil
}

func (s *Server) siteSettings(ctx context.Context, req any) (any, error) {
	host, err := normalizeHost(req.(*siteRequest).Host)
	if err != nil {
		return nil, err
	}
	return s.site(ctx, host)
}

func (s *Server) setSite(ctx context.Context, req any) (any, error) {
	r := req.(*setSiteRequest)
	host, err := normalizeHost(r.Host)
	if err != nil {
		return nil, err
	}
	u, err := prefs.ParseUtility(r.Utility)
	if err != nil {
		return nil, kit.Error(http.StatusBadRequest, err)
	}
	if r.Enabled == nil {
		err = prefs.ClearSite(ctx, s.store, u, host)
	} else {
		err = prefs.SetSite(ctx, s.store, u, host, *r.Enabled)
	}
	if err != nil {
		return nil, err
	}
	return s.site(ctx, host)
}

func (s *Server) setCustom(ctx context.Context, req any) (any, error) {
	r := req.(*customRequest)
	host, err := normalizeHost(r.Host)
	if err != nil {
		return nil, err
	}
	if err := prefs.SetSiteCustom(ctx, s.store, host, r.CustomState); err != nil {
		return nil, err
	}
	return s.site(ctx, host)
}

func (s *Server) clearCustom(ctx context.Context, req any) (any, error) {
	host, err := normalizeHost(req.(*siteRequest).Host)
	if err != nil {
		return nil, err
	}
	if err := prefs.ClearSiteCustom(ctx, s.store, host); err != nil {
		return nil, err
	}
	return s.site(ctx, host)
}

// setReader applies a partial settings object over the stored settings.
func (s *Server) setReader(ctx context.Context, req any) (any, error) {
	p, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	rs := p.Reader
	if err := json.Unmarshal(req.(*readerRequest).Patch, &rs); err != nil {
		return nil, kit.Error(http.StatusBadRequest, fmt.Errorf("reader settings: %w", err))
	}
	if err := rs.Validate(); err != nil {
		return nil, kit.Error(http.StatusUnprocessableEntity, err)
	}
	if err := prefs.SetReader(ctx, s.store, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *Server) reset(ctx context.Context, _ any) (any, error) {
	if err := prefs.Reset(ctx, s.store); err != nil {
		return nil, err
	}
	if err := s.eng.Install(ctx); err != nil {
		return nil, err
	}
	return s.load(ctx)
}

func (s *Server) read(ctx context.Context, req any) (any, error) {
	r := req.(*readRequest)
	if strings.TrimSpace(r.URL) == "" {
		return nil, kit.Error(http.StatusBadRequest, errors.New("url is required"))
	}
	mode, err := engine.ParseAcquire(r.Acquire)
	if err != nil {
		return nil, kit.Error(http.StatusBadRequest, err)
	}
	p, err := s.eng.Open(ctx, r.URL, engine.OpenOptions{Acquire: mode})
	if err != nil {
		switch {
		case errors.Is(err, fetcher.ErrStatus):
			return nil, kit.Error(http.StatusBadGateway, err)
		case errors.Is(err, engine.ErrNoBrowser), errors.Is(err, fetcher.ErrUnsafeScheme):
			return nil, kit.Error(http.StatusBadRequest, err)
		case errors.Is(err, fetcher.ErrPrivateHost):
			return nil, kit.Error(http.StatusForbidden, err)
		}
		return nil, err
	}
	defer p.Close()
	art, err := p.Read(ctx)
	if errors.Is(err, reader.ErrNotReady) {
		return nil, kit.Error(http.StatusUnprocessableEntity, err)
	}
	return art, err
}

// Render formats an article: markdown (default), html, text or json.
func Render(art *reader.Article, format string) (body, contentType string, err error) {
	switch format {
	case "", "markdown", "md":
		return art.Markdown, "text/markdown; charset=utf-8", nil
	case "html":
		return art.HTML, "text/html; charset=utf-8", nil
	case "text":
		return art.Text, "text/plain; charset=utf-8", nil
	case "json":
		b, err := json.Marshal(art)
		return string(b), "application/json", err
	}
	return "", "", fmt.Errorf("unknown format %q (want markdown, html, text or json)", format)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &readRequest{URL: q.Get("url"), Format: q.Get("format"), Acquire: q.Get("acquire")}
	if _, _, err := Render(&reader.Article{}, req.Format); err != nil {
		kit.WriteError(w, http.StatusBadRequest, err)
		return
	}
	ctx := kit.WithTransport(r.Context(), "http")
	resp, err := s.endpoint("read", s.read)(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		var se *kit.StatusError
		if errors.As(err, &se) {
			status = se.Status
		}
		kit.WriteError(w, status, err)
		return
	}
	body, ct, err := Render(resp.(*reader.Article), req.Format)
	if err != nil {
		kit.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Write([]byte(body))
}

// --- decoders ---

func noRequest(*http.Request) (any, error) { return nil, nil }

func decodeBody[T any](r *http.Request) (any, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &v, nil
}

func decodeReader(r *http.Request) (any, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &readerRequest{Patch: raw}, nil
}

func decodeSite(r *http.Request) (any, error) {
	return &siteRequest{Host: chi.URLParam(r, "host")}, nil
}

func decodeSetSite(r *http.Request) (any, error) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if body.Enabled == nil {
		return nil, errors.New(`"enabled" is required`)
	}
	return &setSiteRequest{Host: chi.URLParam(r, "host"), Utility: chi.URLParam(r, "utility"), Enabled: body.Enabled}, nil
}

func decodeClearSite(r *http.Request) (any, error) {
	return &setSiteRequest{Host: chi.URLParam(r, "host"), Utility: chi.URLParam(r, "utility")}, nil
}

func decodeCustom(r *http.Request) (any, error) {
	var cs prefs.CustomState
	if err := json.NewDecoder(r.Body).Decode(&cs); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &customRequest{Host: chi.URLParam(r, "host"), CustomState: cs}, nil
}
