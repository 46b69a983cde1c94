// Package content holds the immutable copy of the site: services, founder
// timeline, references, footer and chat widget text. It is decoded from YAML
// once at startup and validated before anything is rendered.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var embeddedSite []byte

type Site struct {
	Meta       Meta        `yaml:"meta"`
	Nav        []NavLink   `yaml:"nav"`
	Hero       Hero        `yaml:"hero"`
	Services   Services    `yaml:"services"`
	Founder    Founder     `yaml:"founder"`
	References References  `yaml:"references"`
	Footer     Footer      `yaml:"footer"`
	Legal      []LegalPage `yaml:"legal"`
	Chat       Chat        `yaml:"chat"`
}

type Meta struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Language    string `yaml:"language"`
	Company     string `yaml:"company"`
}

type NavLink struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
}

type Hero struct {
	Title string `yaml:"title"`
	Motto string `yaml:"motto"`
}

type Services struct {
	Heading string    `yaml:"heading"`
	Lead    string    `yaml:"lead"`
	Items   []Service `yaml:"items"`
}

// Service is one advisory offering. Copy paragraphs may carry inline Markdown.
type Service struct {
	ID    string   `yaml:"id"`
	Title string   `yaml:"title"`
	Image string   `yaml:"image"`
	Alt   string   `yaml:"alt"`
	Copy  []string `yaml:"copy"`
	CTA   *Link    `yaml:"cta,omitempty"`
}

type Link struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
}

type Founder struct {
	Name          string      `yaml:"name"`
	Eyebrow       string      `yaml:"eyebrow"`
	Lead          string      `yaml:"lead"`
	Portrait      string      `yaml:"portrait"`
	PortraitAlt   string      `yaml:"portrait_alt"`
	KPIs          []KPI       `yaml:"kpis"`
	TimelineTitle string      `yaml:"timeline_title"`
	Timeline      []Milestone `yaml:"timeline"`
}

// KPI is either a fixed Value or a count of years Since a given year.
type KPI struct {
	Label  string `yaml:"label"`
	Value  *int   `yaml:"value,omitempty"`
	Since  *int   `yaml:"since,omitempty"`
	Suffix string `yaml:"suffix,omitempty"`
}

// Display returns the number shown for the KPI at time now.
func (k KPI) Display(now time.Time) int {
	if k.Since != nil {
		return now.Year() - *k.Since
	}
	if k.Value != nil {
		return *k.Value
	}
	return 0
}

type Milestone struct {
	ID    string   `yaml:"id"`
	Date  string   `yaml:"date"`
	Title string   `yaml:"title"`
	Body  string   `yaml:"body"`
	ETH   *float64 `yaml:"eth,omitempty"`
}

type References struct {
	Heading string      `yaml:"heading"`
	Items   []Reference `yaml:"items"`
}

type Reference struct {
	Name  string `yaml:"name"`
	Href  string `yaml:"href"`
	Image string `yaml:"image"`
}

type Footer struct {
	Heading string `yaml:"heading"`
	Quote   string `yaml:"quote"`
	Author  string `yaml:"author"`
	Email   string `yaml:"email"`
	Links   []Link `yaml:"links"`
}

type LegalPage struct {
	Slug       string   `yaml:"slug"`
	Label      string   `yaml:"label"`
	Title      string   `yaml:"title"`
	Paragraphs []string `yaml:"paragraphs"`
}

type Chat struct {
	Button      string `yaml:"button"`
	Title       string `yaml:"title"`
	Subtitle    string `yaml:"subtitle"`
	Greeting    string `yaml:"greeting"`
	Hint        string `yaml:"hint"`
	Placeholder string `yaml:"placeholder"`
	Note        string `yaml:"note"`
}

// Default returns the copy embedded in the binary.
func Default() (*Site, error) {
	return Parse(embeddedSite)
}

// LoadFile reads a site file with the same shape as the embedded one.
func LoadFile(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates site content. Unknown keys are rejected.
func Parse(data []byte) (*Site, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Site
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("content: empty document")
		}
		return nil, fmt.Errorf("content: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LegalPage returns the legal page with the given slug.
func (s *Site) LegalPage(slug string) (LegalPage, bool) {
	for _, p := range s.Legal {
		if p.Slug == slug {
			return p, true
		}
	}
	return LegalPage{}, false
}
