package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLFetchesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main>Go engineer wanted</main></body></html>"))
	}))
	defer srv.Close()

	result, err := URL(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.HTML, "Go engineer wanted")
	assert.Contains(t, result.ContentType, "text/html")
}

func TestURLNon200ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result, err := URL(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, srv.URL, fetchErr.URL)
}

func TestURLRejectsInvalidURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "/relative/path"} {
		_, err := URL(context.Background(), bad, nil)
		assert.Error(t, err, bad)
	}
}

func TestExtractMainTextPrefersSelectors(t *testing.T) {
	html := `<html><body>
		<nav>Home | Jobs</nav>
		<div class="job-description">Design and build Go services.</div>
		<footer>All rights reserved</footer>
	</body></html>`

	text, err := ExtractMainText(html, []string{".job-description"})
	require.NoError(t, err)
	assert.Equal(t, "Design and build Go services.", text)
}

func TestExtractMainTextFallsBackToBody(t *testing.T) {
	html := `<html><body><p>Join our platform team.</p><script>track()</script></body></html>`

	text, err := ExtractMainText(html, []string{".does-not-exist"})
	require.NoError(t, err)
	assert.Equal(t, "Join our platform team.", text)
}

func TestExtractMainTextStripsNoiseSelectors(t *testing.T) {
	html := `<html><body><main>
		<p>Build distributed systems.</p>
		<div class="apply-widget">Apply now!</div>
	</main></body></html>`

	text, err := ExtractMainText(html, []string{"main"}, ".apply-widget")
	require.NoError(t, err)
	assert.Equal(t, "Build distributed systems.", text)
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Senior Go Engineer - Acme",
		PageTitle(`<html><head><title> Senior Go Engineer - Acme </title></head></html>`))
	assert.Equal(t, "", PageTitle(`<html><head></head></html>`))
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://boards.greenhouse.io/acme/jobs/123", PlatformGreenhouse},
		{"https://jobs.lever.co/acme/abc-def", PlatformLever},
		{"https://acme.wd1.myworkdayjobs.com/careers/job/123", PlatformWorkday},
		{"https://jobs.ashbyhq.com/acme/123", PlatformAshby},
		{"https://careers.example.com/jobs/123", PlatformUnknown},
		{"://broken", PlatformUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPlatform(tt.url), tt.url)
	}
}

func TestContentSelectorsAlwaysHaveGenericFallback(t *testing.T) {
	for _, p := range []Platform{PlatformGreenhouse, PlatformLever, PlatformWorkday, PlatformAshby, PlatformUnknown} {
		selectors := ContentSelectors(p)
		assert.Contains(t, selectors, "main", p)
		assert.Contains(t, selectors, ".job-description", p)
	}
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser(""))
	assert.True(t, ShouldUseBrowser("   short page   "))
	long := make([]byte, MinContentLength)
	for i := range long {
		long[i] = 'x'
	}
	assert.False(t, ShouldUseBrowser(string(long)))
}
