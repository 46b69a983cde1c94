package site

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oldschool-site/internal/content"
)

var renderTime = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

func defaultSite(t *testing.T) *content.Site {
	t.Helper()
	s, err := content.Default()
	require.NoError(t, err)
	return s
}

func renderHome(t *testing.T, s *content.Site) string {
	t.Helper()
	r, err := NewRenderer(s)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.RenderHome(&buf, renderTime))
	return buf.String()
}

func TestNewRenderer_NilContent(t *testing.T) {
	_, err := NewRenderer(nil)
	require.ErrorContains(t, err, "content must not be nil")
}

func TestRenderHome_Sections(t *testing.T) {
	s := defaultSite(t)
	page := renderHome(t, s)

	require.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	require.Contains(t, page, `<html lang="de">`)
	require.Contains(t, page, `<h1 class="hero__title">OLDSCHOOL</h1>`)
	require.Contains(t, page, "New Tech | Traditional Values")
	for _, id := range []string{"hero", "services", "founder", "references", "contact"} {
		require.Contains(t, page, `id="`+id+`"`)
	}
	for _, svc := range s.Services.Items {
		require.Contains(t, page, `id="service-`+svc.ID+`"`)
		require.Contains(t, page, template.HTMLEscapeString(svc.Title))
	}
	for _, ref := range s.References.Items {
		require.Contains(t, page, `src="`+ref.Image+`"`)
	}
	for _, m := range s.Founder.Timeline {
		require.Contains(t, page, `id="milestone-`+m.ID+`"`)
	}
	require.Contains(t, page, `href="mailto:bernd@oldschool.ag"`)
	require.Contains(t, page, `href="/impressum"`)
	require.Contains(t, page, `href="/privacy"`)
	require.Contains(t, page, "&copy; 2026 Old School GmbH. All rights reserved.")
	require.Contains(t, page, `<script src="/static/chat.js" defer></script>`)
}

func TestRenderHome_ServiceMarkdown(t *testing.T) {
	page := renderHome(t, defaultSite(t))
	require.Contains(t, page, "<strong>Technical Due Diligence:</strong>")
	require.Contains(t, page, "<em>Go</em>")
}

func TestRenderHome_ServiceRawHTMLIsDropped(t *testing.T) {
	s := defaultSite(t)
	s.Services.Items[0].Copy = []string{"Hello <script>alert(1)</script> world"}
	page := renderHome(t, s)
	require.NotContains(t, page, "<script>alert(1)</script>")
}

func TestRenderHome_KPIs(t *testing.T) {
	page := renderHome(t, defaultSite(t))
	require.Contains(t, page, `<span class="kpi__value">12</span> years`)
	require.Contains(t, page, `<span class="kpi__value">77,000</span> ETH`)
	require.Contains(t, page, `<span class="kpi__value">3</span>+`)
}

func TestRenderHome_MilestoneAmount(t *testing.T) {
	s := defaultSite(t)
	page := renderHome(t, s)
	require.NotContains(t, page, "milestone__eth")

	eth := 77000.0
	s.Founder.Timeline[1].ETH = &eth
	page = renderHome(t, s)
	require.Contains(t, page, "<strong>77,000 ETH</strong>")
}

func TestRenderHome_SingleClosedChatPanel(t *testing.T) {
	page := renderHome(t, defaultSite(t))
	require.Equal(t, 1, strings.Count(page, `id="chat-panel"`))
	require.Contains(t, page, `aria-labelledby="chat-title" hidden>`)
	require.Contains(t, page, `aria-expanded="false"`)
	require.Contains(t, page, "Old School AI Assistant")
	require.Contains(t, page, "Press ESC to close")
}

func TestRenderHome_Repeatable(t *testing.T) {
	r, err := NewRenderer(defaultSite(t))
	require.NoError(t, err)

	var first, second bytes.Buffer
	require.NoError(t, r.RenderHome(&first, renderTime))
	require.NoError(t, r.RenderHome(&second, renderTime))
	require.Equal(t, first.String(), second.String())
}

func TestRenderLegal(t *testing.T) {
	r, err := NewRenderer(defaultSite(t))
	require.NoError(t, err)

	for _, slug := range []string{"impressum", "privacy"} {
		t.Run(slug, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.RenderLegal(&buf, slug, renderTime))
			require.Contains(t, buf.String(), `<article class="legal">`)
			require.Contains(t, buf.String(), "&copy; 2026")
			require.NotContains(t, buf.String(), `id="chat-panel"`)
		})
	}

	var buf bytes.Buffer
	err = r.RenderLegal(&buf, "cookies", renderTime)
	require.True(t, errors.Is(err, ErrNotFound))
	require.Zero(t, buf.Len())
}

func TestExecute_FailureWritesNothing(t *testing.T) {
	tmpl := template.Must(template.New("broken").Parse(`{{define "layout"}}<p>partial</p>{{.Missing}}{{end}}`))
	var buf bytes.Buffer
	err := execute(&buf, tmpl, struct{}{})
	require.ErrorContains(t, err, "site: execute")
	require.Zero(t, buf.Len())
}

func TestAssets(t *testing.T) {
	assets := Assets()

	css, err := fs.ReadFile(assets, "site.css")
	require.NoError(t, err)
	require.Contains(t, string(css), ".chat[hidden]")

	js, err := fs.ReadFile(assets, "chat.js")
	require.NoError(t, err)
	require.Contains(t, string(js), "function setOpen(open)")
	require.Contains(t, string(js), `"/api/chat"`)

	for _, ref := range defaultSite(t).References.Items {
		name := strings.TrimPrefix(ref.Image, "/static/")
		_, err := fs.Stat(assets, name)
		require.NoError(t, err, "missing logo %s", name)
	}
}

func TestGroupThousands(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		3:        "3",
		999:      "999",
		1000:     "1,000",
		77000:    "77,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for in, want := range tests {
		require.Equal(t, want, groupThousands(in), "input %d", in)
	}
	require.Equal(t, "12.5", formatAmount(12.5))
	require.Equal(t, "1,500", formatAmount(1500))
}
