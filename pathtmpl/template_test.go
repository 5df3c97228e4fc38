package pathtmpl_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/httplog/pathtmpl"
)

var errNoHost = errors.New("no such host")

type fakeResolver map[string]string

func (f fakeResolver) LookupCNAME(_ context.Context, host string) (string, error) {
	if cname, ok := f[host]; ok {
		return cname, nil
	}

	return "", errNoHost
}

func TestLookupHost(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	resolver := fakeResolver{"web01": "web01.example.com.", "solo": "solo."}

	host := pathtmpl.LookupHost(context.Background(), resolver, "web01")
	assert.Equal(pathtmpl.Host{Short: "web01", Domain: "example.com", FQDN: "web01.example.com"}, host)

	host = pathtmpl.LookupHost(context.Background(), resolver, "solo")
	assert.Equal(pathtmpl.Host{Short: "solo", Domain: "solo", FQDN: "solo"}, host,
		"a name without a dot is its own domain")

	host = pathtmpl.LookupHost(context.Background(), resolver, "missing")
	assert.Equal(pathtmpl.UnknownHost(), host)
}

func TestExpandTags(t *testing.T) {
	t.Parallel()

	host := pathtmpl.NewHost("web01.example.com")
	tests := map[string]string{
		"/var/log/%1/access.log":  "/var/log/web01/access.log",
		"%2-%3":                   "example.com-web01.example.com",
		"ex%Y%m%d.log":            "ex%Y%m%d.log",
		"%q%1":                    "%qweb01",
		"100%%-%1":                "100%%-web01",
		"trailing%":               "trailing%",
		"no tags at all":          "no tags at all",
		"%1%1":                    "web01web01",
		"/logs/%3/%Y/%m/%d/x.log": "/logs/web01.example.com/%Y/%m/%d/x.log",
	}

	for raw, want := range tests {
		assert.Equal(t, want, pathtmpl.ExpandTags(raw, host), raw)
	}

	assert.Equal(t, "odd%%host", pathtmpl.ExpandTags("%1", pathtmpl.NewHost("odd%host")),
		"percent signs in host names must not become directives")

	assert.True(t, pathtmpl.HasTags("/var/log/%3/x.log"))
	assert.False(t, pathtmpl.HasTags("/var/log/100%%1/%Y.log"), "%%1 is an escaped percent and a 1")
}

func TestUnresolvedHost(t *testing.T) {
	t.Parallel()

	tmpl, err := pathtmpl.New("%1-access.log", pathtmpl.UnknownHost())
	require.NoError(t, err)

	name, err := tmpl.Filename(time.Now())
	assert.NoError(t, err)
	assert.Equal(t, "none-access.log", name)
}

func TestFilenameDays(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	tmpl, err := pathtmpl.New("log-%Y%m%d.txt", pathtmpl.UnknownHost(), pathtmpl.WithUTC(true))
	require.NoError(t, err)

	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	name1, err := tmpl.Filename(first)
	assert.NoError(err)
	assert.Equal("log-20240101.txt", name1)

	name2, _ := tmpl.Filename(first.Add(time.Minute))
	assert.Equal(name1, name2, "a minute later on the same day is the same file")

	name3, _ := tmpl.Filename(time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC))
	assert.Equal("log-20240102.txt", name3)
}

func TestFilenameLocal(t *testing.T) {
	t.Parallel()

	tmpl, err := pathtmpl.New("%H", pathtmpl.UnknownHost())
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.Local)
	name, err := tmpl.Filename(now.UTC())
	assert.NoError(t, err)
	assert.Equal(t, "07", name, "local time is the default")
}

func TestFilenameNoDirectives(t *testing.T) {
	t.Parallel()

	tmpl, err := pathtmpl.New("/var/log/static.log", pathtmpl.UnknownHost())
	require.NoError(t, err)

	now := time.Now()
	for range 5 {
		name, err := tmpl.Filename(now)
		assert.NoError(t, err)
		assert.Equal(t, "/var/log/static.log", name)
	}
}

func TestFilenameEpoch(t *testing.T) {
	t.Parallel()

	tmpl, err := pathtmpl.New("log.%s", pathtmpl.UnknownHost(), pathtmpl.WithUTC(true))
	require.NoError(t, err)

	name, err := tmpl.Filename(time.Unix(1704067200, 0))
	assert.NoError(t, err)
	assert.Equal(t, "log.1704067200", name)
}

func TestFilenameTooLong(t *testing.T) {
	t.Parallel()

	tmpl, err := pathtmpl.New(strings.Repeat("a", 20)+"%Y", pathtmpl.UnknownHost(), pathtmpl.WithMaxLength(22))
	require.NoError(t, err)

	name, err := tmpl.Filename(time.Now())
	assert.ErrorIs(t, err, pathtmpl.ErrPathTooLong)
	assert.Empty(t, name, "a path that is too long is never truncated")
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "bad-%Q.log", "stray%"} {
		tmpl, err := pathtmpl.New(raw, pathtmpl.UnknownHost())
		assert.ErrorIs(t, err, pathtmpl.ErrBadTemplate, raw)
		assert.Nil(t, tmpl)
	}
}

func TestGlob(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	tmpl, err := pathtmpl.New("/var/log/%1/ex%Y%m%d-%%[x].log", pathtmpl.NewHost("web01.example.com"))
	require.NoError(t, err)
	assert.Equal(`/var/log/web01/ex*-%\[x].log`, tmpl.Glob())
	assert.Equal("/var/log/%1/ex%Y%m%d-%%[x].log", tmpl.Raw())
	assert.Equal("/var/log/web01/ex%Y%m%d-%%[x].log", tmpl.Pattern())

	name, err := tmpl.Filename(time.Now())
	require.NoError(t, err)

	ok, err := filepath.Match(tmpl.Glob(), name)
	assert.NoError(err)
	assert.True(ok, "the glob must match the names the template produces")
}

func TestMatch(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	tmpl, err := pathtmpl.New("/var/log/www/%Y%m%d.log", pathtmpl.UnknownHost())
	require.NoError(t, err)

	name, err := tmpl.Filename(time.Now())
	require.NoError(t, err)

	assert.True(tmpl.Match(name))
	assert.True(tmpl.Match("/var/log/www/./20240101.log"), "paths are cleaned before matching")
	assert.True(tmpl.Match("/var/log//www/20240101.log"))
	assert.False(tmpl.Match("/var/log/www/error.log"), "the glob matches this, the template never wrote it")
	assert.False(tmpl.Match("/var/log/www/www2-20240101.log"))
	assert.False(tmpl.Match("/var/log/www/2024010.log"))
	assert.False(tmpl.Match("/var/log/www/20240101.log.gz"))

	tmpl, err = pathtmpl.New("./logs/%1-%F_%H%P.[%%].log", pathtmpl.NewHost("web01.example.com"))
	require.NoError(t, err)

	name, err = tmpl.Filename(time.Date(2024, 1, 1, 15, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Equal("./logs/web01-2024-01-01_15pm.[%].log", name)
	assert.True(tmpl.Match(name))
	assert.True(tmpl.Match("logs/web01-2024-12-31_03am.[%].log"))
	assert.False(tmpl.Match("logs/web02-2024-12-31_03am.[%].log"))
}

func TestGlibcDirectives(t *testing.T) {
	t.Parallel()

	// 2024-12-30 is in ISO week 1 of 2025.
	tmpl, err := pathtmpl.New("%G-%g-%V-%P", pathtmpl.UnknownHost(), pathtmpl.WithUTC(true))
	require.NoError(t, err)

	name, err := tmpl.Filename(time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, "2025-25-01-am", name)
}
