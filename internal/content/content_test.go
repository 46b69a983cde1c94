package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	require.Len(t, s.Services.Items, 4)
	require.Equal(t, "Blockchain Investment Evaluation", s.Services.Items[0].Title)
	require.Len(t, s.Founder.Timeline, 4)
	require.Len(t, s.References.Items, 6)
	require.Equal(t, "bernd@oldschool.ag", s.Footer.Email)

	_, ok := s.LegalPage("impressum")
	require.True(t, ok)
	_, ok = s.LegalPage("missing")
	require.False(t, ok)
}

func TestKPI_Display(t *testing.T) {
	since, value := 2014, 77000
	now := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

	require.Equal(t, 12, KPI{Since: &since}.Display(now))
	require.Equal(t, 77000, KPI{Value: &value}.Display(now))
	require.Zero(t, KPI{}.Display(now))
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	data := strings.Replace(string(embeddedSite), "hero:\n", "hero:\n  subtitle: nope\n", 1)
	_, err := Parse([]byte(data))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := Parse(nil)
	require.ErrorContains(t, err, "empty document")
}

func TestValidate_ReportsProblems(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *Site)
		want   string
	}{
		{name: "no services", mutate: func(s *Site) { s.Services.Items = nil }, want: "services.items must not be empty"},
		{name: "duplicate service id", mutate: func(s *Site) { s.Services.Items[1].ID = s.Services.Items[0].ID }, want: "is duplicated"},
		{name: "empty copy paragraph", mutate: func(s *Site) { s.Services.Items[0].Copy[0] = " " }, want: "copy[0] is empty"},
		{name: "no timeline", mutate: func(s *Site) { s.Founder.Timeline = nil }, want: "founder.timeline must not be empty"},
		{name: "negative eth", mutate: func(s *Site) {
			eth := -1.0
			s.Founder.Timeline[1].ETH = &eth
		}, want: "eth must not be negative"},
		{name: "kpi both set", mutate: func(s *Site) {
			v := 1
			s.Founder.KPIs[0].Value = &v
		}, want: "exactly one of value or since"},
		{name: "no references", mutate: func(s *Site) { s.References.Items = nil }, want: "references.items must not be empty"},
		{name: "bad reference href", mutate: func(s *Site) { s.References.Items[0].Href = "ftp://x" }, want: "is not a valid link"},
		{name: "no nav", mutate: func(s *Site) { s.Nav = nil }, want: "nav must not be empty"},
		{name: "bad email", mutate: func(s *Site) { s.Footer.Email = "nobody" }, want: "is not an address"},
		{name: "legal slug", mutate: func(s *Site) { s.Legal[0].Slug = "a/b" }, want: "slug \"a/b\" is invalid"},
		{name: "chat copy", mutate: func(s *Site) { s.Chat.Placeholder = "" }, want: "chat needs title and placeholder"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Default()
			require.NoError(t, err)
			tc.mutate(s)
			err = s.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidHref(t *testing.T) {
	for _, ok := range []string{"#services", "/privacy", "https://near.org/", "mailto:bernd@oldschool.ag"} {
		require.True(t, validHref(ok), ok)
	}
	for _, bad := range []string{"", " ", "near.org", "https://", "javascript:alert(1)", "mailto:"} {
		require.False(t, validHref(bad), bad)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, embeddedSite, 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "OLDSCHOOL", s.Hero.Title)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "content: read")
}
