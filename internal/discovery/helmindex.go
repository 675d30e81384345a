package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"helm.sh/helm/v3/pkg/repo"
	"sigs.k8s.io/yaml"
)

// helmIndexTimeout bounds an index.yaml fetch, per spec §5's 30s
// registry/Helm fetch timeout.
const helmIndexTimeout = 30 * time.Second

// concurrentIndexFetch deduplicates identical concurrent index.yaml
// fetches, grounded on bundlereader/charturl.go's concurrentIndexFetch
// (golang.org/x/sync/singleflight), keyed the same way: auth + URL.
var concurrentIndexFetch singleflight.Group

var httpClientOnce sync.Once
var httpClient *http.Client

func sharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		httpClient = &http.Client{Timeout: helmIndexTimeout}
	})
	return httpClient
}

// ListHelmChartVersions fetches repoURL's index.yaml and returns every
// version published for chartName. Grounded on
// bundlereader/charturl.go's getHelmRepoIndex, adapted to the stock
// helm.sh/helm/v3/pkg/repo.IndexFile instead of fleet's forked repo
// type.
func ListHelmChartVersions(ctx context.Context, repoURL, chartName string, creds *Credentials) ([]string, error) {
	key := repoURL
	if creds != nil {
		key = creds.Username + "@" + repoURL
	}

	idx, err, _ := concurrentIndexFetch.Do(key, func() (any, error) {
		return fetchHelmIndex(ctx, repoURL, creds)
	})
	if err != nil {
		return nil, err
	}

	index := idx.(*repo.IndexFile)
	versions, ok := index.Entries[chartName]
	if !ok {
		return nil, fmt.Errorf("chart %q not found in index at %s", chartName, repoURL)
	}

	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Version)
	}
	return out, nil
}

func fetchHelmIndex(ctx context.Context, repoURL string, creds *Credentials) (*repo.IndexFile, error) {
	indexURL, err := url.JoinPath(repoURL, "index.yaml")
	if err != nil {
		return nil, fmt.Errorf("building index URL from %q: %w", repoURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, err
	}
	if creds != nil && creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := sharedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", indexURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %q: HTTP %d", indexURL, resp.StatusCode)
	}

	index := &repo.IndexFile{}
	if err := yaml.Unmarshal(body, index); err != nil {
		return nil, fmt.Errorf("parsing index.yaml from %q: %w", indexURL, err)
	}
	index.SortEntries()
	return index, nil
}
