package intake

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/discovery"
)

func TestSplitOCIChartRef(t *testing.T) {
	cases := []struct {
		name       string
		repoURL    string
		chart      string
		wantHost   string
		wantRepo   string
	}{
		{
			name:     "chart appended",
			repoURL:  "oci://registry.example.com/charts",
			chart:    "myapp",
			wantHost: "registry.example.com",
			wantRepo: "charts/myapp",
		},
		{
			name:     "chart already part of path",
			repoURL:  "oci://registry.example.com/charts/myapp",
			chart:    "myapp",
			wantHost: "registry.example.com",
			wantRepo: "charts/myapp",
		},
		{
			name:     "no chart name given",
			repoURL:  "oci://registry.example.com/charts/myapp",
			chart:    "",
			wantHost: "registry.example.com",
			wantRepo: "charts/myapp",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			host, repo := splitOCIChartRef(tc.repoURL, tc.chart)
			require.Equal(t, tc.wantHost, host)
			require.Equal(t, tc.wantRepo, repo)
		})
	}
}

func TestMatchesAny(t *testing.T) {
	slots := []corereconcile.Slot{
		{
			Name:   "app",
			Source: discovery.Source{Kind: discovery.SourceOCIImage, ImageRepo: "registry.example.com/myteam/myapp"},
		},
		{
			Name: "chart",
			Source: discovery.Source{
				Kind:        discovery.SourceHelmOCI,
				HelmRepoURL: "oci://registry.example.com/charts",
				HelmChart:   "myapp",
			},
		},
	}

	require.True(t, matchesAny(slots, Event{Registry: "registry.example.com", Repository: "myteam/myapp"}))
	require.True(t, matchesAny(slots, Event{Registry: "registry.example.com", Repository: "charts/myapp"}))
	require.False(t, matchesAny(slots, Event{Registry: "docker.io", Repository: "library/nginx"}))
}
