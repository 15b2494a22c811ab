package extract

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/primarysources/internal/models"
)

// fakeFetcher serves canned bodies keyed by URL and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	requests []models.FetchRequest
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req models.FetchRequest) (*models.RawContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if err, ok := f.errs[req.URL]; ok {
		return nil, err
	}
	body, ok := f.bodies[req.URL]
	if !ok {
		return nil, &models.TransportError{URL: req.URL, StatusCode: 404}
	}
	return &models.RawContent{Source: req.Source, URL: req.URL, Body: []byte(body)}, nil
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		out = append(out, r.URL)
	}
	return out
}

func testConfig() Config {
	return Config{
		LaunchURL:        "https://mission.test/voyager-1/",
		RFCInfoURL:       "https://rfc.test/info/rfc1149",
		RFCTextURL:       "https://rfc.test/rfc/rfc1149.txt",
		EmojiTableURL:    "https://unicode.test/emoji-test.txt",
		GenesisSourceURL: "https://code.test/chainparams.cpp",
		SearchURL:        "https://books.test/search.json",
	}
}

func TestFirstMatchOrder(t *testing.T) {
	build := func(value string) func([]string) (models.Fact, error) {
		return func([]string) (models.Fact, error) {
			return models.NewFact(models.KindISBN10, value)
		}
	}
	rules := []rule{
		{name: "first", pattern: regexp.MustCompile(`alpha`), build: build("1111111111")},
		{name: "second", pattern: regexp.MustCompile(`beta`), build: build("2222222222")},
	}

	fact, name, ok, err := firstMatch("beta alpha", rules)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", name)
	assert.Equal(t, "1111111111", fact.Value())

	fact, name, ok, err = firstMatch("only beta", rules)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", name)
	assert.Equal(t, "2222222222", fact.Value())

	_, _, ok, err = firstMatch("gamma", rules)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLaunchExtract(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "label in definition list",
			page: `<html><body><dl><dt>Launch Date and Time</dt><dd>Sept. 5, 1977 / 12:56:00 UTC</dd></dl></body></html>`,
			want: "19770905",
		},
		{
			name: "label with colon",
			page: `<html><body><p><strong>Launch Date and Time:</strong> September 5, 1977</p></body></html>`,
			want: "19770905",
		},
		{
			name: "label matched but date has no comma",
			page: `<html><body><p>launch date and time, Sep 5 1977 at the cape</p><p>Sep 5, 1977</p></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			f := newFakeFetcher(map[string]string{config.LaunchURL: tt.page})

			outcome := NewLaunch(f, config).Extract(context.Background())
			if tt.want == "" {
				assert.Equal(t, models.StatusFailed, outcome.Status)
				var parseErr *models.ParseError
				assert.True(t, errors.As(outcome.Err, &parseErr))
				return
			}
			require.NoError(t, outcome.Err)
			assert.Equal(t, models.StatusVerified, outcome.Status)
			assert.Equal(t, tt.want, outcome.Fact.Value())
			assert.Equal(t, "launch-label", outcome.Rule)
		})
	}
}

func TestLaunchExtractMissingLabel(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(map[string]string{
		config.LaunchURL: `<html><body><p>Launched September 5, 1977</p></body></html>`,
	})

	outcome := NewLaunch(f, config).Extract(context.Background())
	assert.Equal(t, models.StatusFailed, outcome.Status)

	var notFound *models.NotFoundError
	assert.True(t, errors.As(outcome.Err, &notFound))
}

func TestRFCExtractInfoPageMarker(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(map[string]string{
		config.RFCInfoURL: `<html><body><td>Date</td><td>April 1 1990</td></body></html>`,
	})

	outcome := NewRFC(f, config).Extract(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, "19900401", outcome.Fact.Value())
	assert.Equal(t, "info-page-marker", outcome.Rule)
	assert.Equal(t, []string{config.RFCInfoURL}, f.urls())
}

func TestRFCExtractTextFallback(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(map[string]string{
		config.RFCInfoURL: `<html><body>RFC 1149, published 1990-04-01</body></html>`,
		config.RFCTextURL: "Network Working Group                                        D. Waitzman\n" +
			"Request for Comments: 1149                                           BBN STC\n" +
			"                                                              1 April 1990\n\n" +
			"   A Standard for the Transmission of IP Datagrams on Avian Carriers\n",
	})

	outcome := NewRFC(f, config).Extract(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, "19900401", outcome.Fact.Value())
	assert.Equal(t, "text-document-date", outcome.Rule)
	assert.Equal(t, []string{config.RFCInfoURL, config.RFCTextURL}, f.urls())
}

func TestRFCStagesAgree(t *testing.T) {
	config := testConfig()
	marker := newFakeFetcher(map[string]string{
		config.RFCInfoURL: "... April 1 1990 ...",
	})
	text := newFakeFetcher(map[string]string{
		config.RFCInfoURL: "no marker here",
		config.RFCTextURL: "Request for Comments: 1149\n1 April 1990\n",
	})

	fromMarker := NewRFC(marker, config).Extract(context.Background())
	fromText := NewRFC(text, config).Extract(context.Background())

	require.True(t, fromMarker.OK())
	require.True(t, fromText.OK())
	assert.Equal(t, fromText.Fact, fromMarker.Fact)
	assert.NotEqual(t, fromText.Rule, fromMarker.Rule)
}

func TestRFCExtractFailures(t *testing.T) {
	config := testConfig()

	t.Run("no date anywhere", func(t *testing.T) {
		f := newFakeFetcher(map[string]string{
			config.RFCInfoURL: "nothing",
			config.RFCTextURL: "still nothing",
		})
		outcome := NewRFC(f, config).Extract(context.Background())
		var notFound *models.NotFoundError
		assert.True(t, errors.As(outcome.Err, &notFound))
	})

	t.Run("info page unreachable", func(t *testing.T) {
		f := newFakeFetcher(map[string]string{config.RFCTextURL: "1 April 1990"})
		f.errs[config.RFCInfoURL] = &models.TransportError{URL: config.RFCInfoURL, StatusCode: 503}

		outcome := NewRFC(f, config).Extract(context.Background())
		var transportErr *models.TransportError
		assert.True(t, errors.As(outcome.Err, &transportErr))
		assert.Equal(t, []string{config.RFCInfoURL}, f.urls())
	})

	t.Run("first date does not parse", func(t *testing.T) {
		f := newFakeFetcher(map[string]string{
			config.RFCInfoURL: "nothing",
			config.RFCTextURL: "revision 12 Foo 1990, then 1 April 1990",
		})
		outcome := NewRFC(f, config).Extract(context.Background())
		var parseErr *models.ParseError
		require.True(t, errors.As(outcome.Err, &parseErr))
		assert.Equal(t, "12 Foo 1990", parseErr.Text)
	})
}

func TestCodepointExtract(t *testing.T) {
	config := testConfig()
	table := "# group: Smileys & Emotion\n" +
		"1F9E1 ; fully-qualified # 🧡 E5.0 orange heart\n" +
		"1f9e0 ; fully-qualified # (name)  E5.0 brain\n"
	f := newFakeFetcher(map[string]string{config.EmojiTableURL: table})

	outcome := NewCodepoint(f, config).Extract(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, "1F9E0", outcome.Fact.Value())
	assert.Equal(t, models.KindHexCodepoint, outcome.Fact.Kind())
}

func TestCodepointSyntheticTable(t *testing.T) {
	config := testConfig()
	config.CodepointKeyword = "fully-qualified"
	table := "# comment mentioning fully-qualified\n" +
		"1F600 ; component # grinning face\n" +
		"1F9E0 ; fully-qualified # (name)\n"
	f := newFakeFetcher(map[string]string{config.EmojiTableURL: table})

	outcome := NewCodepoint(f, config).Extract(context.Background())
	require.NoError(t, outcome.Err)
	assert.Equal(t, "1F9E0", outcome.Fact.Value())
}

func TestScanTable(t *testing.T) {
	tests := []struct {
		name  string
		table string
		want  string
		found bool
	}{
		{"comment skipped", "# 1F9E0 brain\n", "", false},
		{"sequence skipped", "1F9E0 200D 1F525 ; fully-qualified # brain on fire\n1F9E0 ; fully-qualified # brain\n", "1F9E0", true},
		{"case insensitive keyword", "1F9E0 ; fully-qualified # BRAIN\n", "1F9E0", true},
		{"short hex skipped", "AB ; brain\n", "", false},
		{"no match", "1F600 ; fully-qualified # grinning face\n", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := scanTable([]byte(tt.table), "brain")
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodepointNotFound(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(map[string]string{config.EmojiTableURL: "1F600 ; fully-qualified # grinning\n"})

	outcome := NewCodepoint(f, config).Extract(context.Background())
	var notFound *models.NotFoundError
	assert.True(t, errors.As(outcome.Err, &notFound))
}

func TestGenesisExtract(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
		rule   string
		status models.Status
	}{
		{
			name:   "constructor call",
			source: `genesis = CreateGenesisBlock(1231006505, 2083236893, 0x1d00ffff, 1, 50 * COIN);`,
			want:   "20090103",
			rule:   "create-genesis-block",
			status: models.StatusVerified,
		},
		{
			name:   "field assignment",
			source: "    genesis.nTime    = 1296688602;\n",
			want:   "20110202",
			rule:   "genesis-ntime",
			status: models.StatusVerified,
		},
		{
			name: "constructor wins over field",
			source: "genesis.nTime = 1296688602;\n" +
				"genesis = CreateGenesisBlock( 1231006505 , 2083236893, 0x1d00ffff, 1, 50 * COIN);\n",
			want:   "20090103",
			rule:   "create-genesis-block",
			status: models.StatusVerified,
		},
		{
			name:   "neither pattern",
			source: "int main() { return 0; }",
			want:   "20090103",
			rule:   "default",
			status: models.StatusDefaulted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			f := newFakeFetcher(map[string]string{config.GenesisSourceURL: tt.source})

			outcome := NewGenesis(f, config).Extract(context.Background())
			require.NoError(t, outcome.Err)
			assert.Equal(t, tt.status, outcome.Status)
			assert.Equal(t, tt.want, outcome.Fact.Value())
			assert.Equal(t, tt.rule, outcome.Rule)
		})
	}
}

func TestGenesisTransportErrorIsNotDefaulted(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(nil)

	outcome := NewGenesis(f, config).Extract(context.Background())
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.True(t, outcome.Fact.IsZero())
}

func TestISBNExtract(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		status models.Status
	}{
		{
			name: "second edition",
			body: `{"numFound": 3, "docs": [
				{"title": "The C Programming Language", "isbn": ["9780131101630", "0131101633"]},
				{"title": "The C Programming Language", "edition_name": "2nd ed.", "isbn": ["9780131103627", "0131103628"]}
			]}`,
			want:   "0131103628",
			status: models.StatusVerified,
		},
		{
			name: "spelled out edition",
			body: `{"docs": [
				{"edition_name": "Second Edition", "isbn": ["0131103709"]}
			]}`,
			want:   "0131103709",
			status: models.StatusVerified,
		},
		{
			name: "second edition without isbn10 keeps looking",
			body: `{"docs": [
				{"edition_name": "2nd", "isbn": ["9780131103627"]},
				{"edition_name": "second", "isbn": ["013110370X", "0131103709"]}
			]}`,
			want:   "0131103709",
			status: models.StatusVerified,
		},
		{
			name:   "no second edition",
			body:   `{"docs": [{"edition_name": "1st", "isbn": ["0131101633"]}]}`,
			want:   DefaultISBN10,
			status: models.StatusDefaulted,
		},
		{
			name:   "no docs",
			body:   `{"numFound": 0}`,
			want:   DefaultISBN10,
			status: models.StatusDefaulted,
		},
		{
			name:   "numeric edition label",
			body:   `{"docs": [{"edition_name": 2, "isbn": ["0131103628"]}]}`,
			want:   "0131103628",
			status: models.StatusVerified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			f := newFakeFetcher(map[string]string{config.SearchURL: tt.body})

			outcome := NewISBN(f, config).Extract(context.Background())
			require.NoError(t, outcome.Err)
			assert.Equal(t, tt.status, outcome.Status)
			assert.Equal(t, tt.want, outcome.Fact.Value())
			assert.Regexp(t, `^\d{10}$`, outcome.Fact.Value())
		})
	}
}

func TestISBNQuery(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(map[string]string{config.SearchURL: `{"docs": []}`})

	NewISBN(f, config).Extract(context.Background())

	require.Len(t, f.requests, 1)
	assert.Equal(t, url.Values{
		"title":  {"The C Programming Language"},
		"author": {"Kernighan"},
		"limit":  {"20"},
	}, f.requests[0].Query)
}

func TestISBNBadJSON(t *testing.T) {
	config := testConfig()
	f := newFakeFetcher(map[string]string{config.SearchURL: `<html>rate limited</html>`})

	outcome := NewISBN(f, config).Extract(context.Background())
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Err.Error(), "decode search response")
}

func TestAllOrder(t *testing.T) {
	extractors := All(newFakeFetcher(nil), Config{})
	var sources []models.SourceID
	for _, e := range extractors {
		sources = append(sources, e.Source())
	}
	assert.Equal(t, []models.SourceID{
		models.SourceLaunch,
		models.SourceRFC,
		models.SourceCodepoint,
		models.SourceGenesis,
		models.SourceISBN,
	}, sources)
}
