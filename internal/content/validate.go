package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that every content array is non-empty and every entry is
// well formed. All problems are reported together.
func (s *Site) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if blank(s.Meta.Title) {
		fail("meta.title is required")
	}
	if blank(s.Hero.Title) {
		fail("hero.title is required")
	}

	if len(s.Nav) == 0 {
		fail("nav must not be empty")
	}
	for i, n := range s.Nav {
		if blank(n.Label) {
			fail("nav[%d].label is required", i)
		}
		if !validHref(n.Href) {
			fail("nav[%d].href %q is not a valid link", i, n.Href)
		}
	}

	if len(s.Services.Items) == 0 {
		fail("services.items must not be empty")
	}
	seen := map[string]bool{}
	for i, svc := range s.Services.Items {
		switch {
		case blank(svc.ID):
			fail("services.items[%d].id is required", i)
		case seen[svc.ID]:
			fail("services.items[%d].id %q is duplicated", i, svc.ID)
		}
		seen[svc.ID] = true
		if blank(svc.Title) {
			fail("services.items[%d].title is required", i)
		}
		if blank(svc.Image) || blank(svc.Alt) {
			fail("services.items[%d] needs image and alt", i)
		}
		if len(svc.Copy) == 0 {
			fail("services.items[%d].copy must not be empty", i)
		}
		for j, p := range svc.Copy {
			if blank(p) {
				fail("services.items[%d].copy[%d] is empty", i, j)
			}
		}
		if svc.CTA != nil && (blank(svc.CTA.Label) || !validHref(svc.CTA.Href)) {
			fail("services.items[%d].cta needs a label and a valid href", i)
		}
	}

	if blank(s.Founder.Name) {
		fail("founder.name is required")
	}
	if len(s.Founder.KPIs) == 0 {
		fail("founder.kpis must not be empty")
	}
	for i, k := range s.Founder.KPIs {
		if blank(k.Label) {
			fail("founder.kpis[%d].label is required", i)
		}
		if (k.Value == nil) == (k.Since == nil) {
			fail("founder.kpis[%d] must set exactly one of value or since", i)
		}
	}
	if len(s.Founder.Timeline) == 0 {
		fail("founder.timeline must not be empty")
	}
	seen = map[string]bool{}
	for i, m := range s.Founder.Timeline {
		switch {
		case blank(m.ID):
			fail("founder.timeline[%d].id is required", i)
		case seen[m.ID]:
			fail("founder.timeline[%d].id %q is duplicated", i, m.ID)
		}
		seen[m.ID] = true
		if blank(m.Date) || blank(m.Title) || blank(m.Body) {
			fail("founder.timeline[%d] needs date, title and body", i)
		}
		if m.ETH != nil && *m.ETH < 0 {
			fail("founder.timeline[%d].eth must not be negative", i)
		}
	}

	if len(s.References.Items) == 0 {
		fail("references.items must not be empty")
	}
	for i, r := range s.References.Items {
		if blank(r.Name) {
			fail("references.items[%d].name is required", i)
		}
		if !validHref(r.Href) {
			fail("references.items[%d].href %q is not a valid link", i, r.Href)
		}
	}

	if blank(s.Footer.Email) || !strings.Contains(s.Footer.Email, "@") {
		fail("footer.email %q is not an address", s.Footer.Email)
	}
	for i, l := range s.Footer.Links {
		if blank(l.Label) || !validHref(l.Href) {
			fail("footer.links[%d] needs a label and a valid href", i)
		}
	}

	seen = map[string]bool{}
	for i, p := range s.Legal {
		switch {
		case blank(p.Slug) || strings.ContainsAny(p.Slug, "/?# "):
			fail("legal[%d].slug %q is invalid", i, p.Slug)
		case seen[p.Slug]:
			fail("legal[%d].slug %q is duplicated", i, p.Slug)
		}
		seen[p.Slug] = true
		if blank(p.Title) || len(p.Paragraphs) == 0 {
			fail("legal[%d] needs a title and paragraphs", i)
		}
	}

	if blank(s.Chat.Title) || blank(s.Chat.Placeholder) {
		fail("chat needs title and placeholder")
	}

	if len(errs) > 0 {
		return fmt.Errorf("content: invalid site: %w", errors.Join(errs...))
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// validHref accepts in-page anchors, site paths, mailto links and absolute
// http(s) URLs.
func validHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "/") {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "mailto":
		return u.Opaque != ""
	case "http", "https":
		return u.Host != ""
	}
	return false
}
