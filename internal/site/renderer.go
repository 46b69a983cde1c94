// Package site renders the public pages of the Old School website from the
// content model. Templates and static assets are embedded in the binary.
package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"oldschool-site/internal/content"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ErrNotFound is returned for legal pages that do not exist.
var ErrNotFound = errors.New("site: page not found")

// Renderer turns a validated site into HTML. It is safe for concurrent use.
type Renderer struct {
	site     *content.Site
	home     *template.Template
	legal    *template.Template
	services []serviceView
}

type serviceView struct {
	content.Service
	Body template.HTML
}

type kpiView struct {
	Label  string
	Value  string
	Suffix string
}

type milestoneView struct {
	content.Milestone
	Amount string
}

type pageView struct {
	Site  *content.Site
	Title string
	Year  int
}

type homeView struct {
	pageView
	Services []serviceView
	KPIs     []kpiView
	Timeline []milestoneView
}

type legalView struct {
	pageView
	Page content.LegalPage
}

// NewRenderer parses the embedded templates and pre-renders the Markdown in
// service copy.
func NewRenderer(s *content.Site) (*Renderer, error) {
	if s == nil {
		return nil, errors.New("site: content must not be nil")
	}

	home, err := parsePage("templates/home.html")
	if err != nil {
		return nil, err
	}
	legal, err := parsePage("templates/legal.html")
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	services := make([]serviceView, 0, len(s.Services.Items))
	for _, svc := range s.Services.Items {
		var buf bytes.Buffer
		if err := md.Convert([]byte(strings.Join(svc.Copy, "\n\n")), &buf); err != nil {
			return nil, fmt.Errorf("site: render service %s: %w", svc.ID, err)
		}
		// goldmark escapes raw HTML unless WithUnsafe is set.
		services = append(services, serviceView{Service: svc, Body: template.HTML(buf.String())})
	}

	return &Renderer{site: s, home: home, legal: legal, services: services}, nil
}

func parsePage(page string) (*template.Template, error) {
	tmpl, err := template.New("layout.html").Funcs(template.FuncMap{
		"mailto": func(addr string) template.URL {
			return template.URL("mailto:" + addr)
		},
	}).ParseFS(templateFS, "templates/layout.html", page)
	if err != nil {
		return nil, fmt.Errorf("site: parse %s: %w", page, err)
	}
	return tmpl, nil
}

// RenderHome writes the landing page. Nothing is written if rendering fails.
func (r *Renderer) RenderHome(w io.Writer, now time.Time) error {
	view := homeView{
		pageView: pageView{Site: r.site, Title: r.site.Meta.Title, Year: now.Year()},
		Services: r.services,
	}
	for _, k := range r.site.Founder.KPIs {
		view.KPIs = append(view.KPIs, kpiView{
			Label:  k.Label,
			Value:  groupThousands(int64(k.Display(now))),
			Suffix: k.Suffix,
		})
	}
	for _, m := range r.site.Founder.Timeline {
		mv := milestoneView{Milestone: m}
		if m.ETH != nil {
			mv.Amount = formatAmount(*m.ETH)
		}
		view.Timeline = append(view.Timeline, mv)
	}
	return execute(w, r.home, view)
}

// RenderLegal writes the legal page with the given slug, or returns
// ErrNotFound.
func (r *Renderer) RenderLegal(w io.Writer, slug string, now time.Time) error {
	page, ok := r.site.LegalPage(slug)
	if !ok {
		return ErrNotFound
	}
	view := legalView{
		pageView: pageView{
			Site:  r.site,
			Title: page.Title + " – " + r.site.Meta.Company,
			Year:  now.Year(),
		},
		Page: page,
	}
	return execute(w, r.legal, view)
}

func execute(w io.Writer, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("site: execute %s: %w", tmpl.Name(), err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("site: write page: %w", err)
	}
	return nil
}

// Assets returns the stylesheet, chat script and logos rooted at "/".
func Assets() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The directory is embedded at build time.
		panic(err)
	}
	return sub
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatAmount(v float64) string {
	whole := int64(v)
	if float64(whole) == v {
		return groupThousands(whole)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
