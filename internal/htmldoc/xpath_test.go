package htmldoc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "article", want: ".//article"},
		{in: "H1", want: ".//h1"},
		{in: ".qa-story", want: ".//*[contains(concat(' ', normalize-space(@class), ' '), ' qa-story ')]"},
		{in: "#main", want: ".//*[@id='main']"},
		{in: "[data-testid]", want: ".//*[@data-testid]"},
		{in: `[data-testid="card"]`, want: ".//*[@data-testid='card']"},
		{in: `[class="headline__text"]`, want: ".//*[contains(concat(' ', normalize-space(@class), ' '), ' headline__text ')]"},
		{in: `a[class*="container__link"]`, want: ".//a[contains(@class, 'container__link')]"},
		{in: `a[href^='/news']`, want: ".//a[starts-with(@href, '/news')]"},
		{in: "div.gs-c-promo", want: ".//div[contains(concat(' ', normalize-space(@class), ' '), ' gs-c-promo ')]"},
		{in: "h1#title", want: ".//h1[@id='title']"},
		{in: "div p", want: ".//div//p"},
		{in: `[rel=author]`, want: ".//*[@rel='author']"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := Translate(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateRejectsUnsupportedSyntax(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "div > p", "a:hover", "li:nth-child(2)", "a[href", `a[href="x]`, "a[href|=x]", "p + p"} {
		_, err := Translate(in)
		require.ErrorIs(t, err, errUnsupportedSelector, in)
	}
}

func TestQueryForDegradesToLeadingTag(t *testing.T) {
	t.Parallel()

	query, degraded := queryFor("div > p")
	require.True(t, degraded)
	require.Equal(t, ".//div", query)

	query, degraded = queryFor("::before")
	require.True(t, degraded)
	require.Empty(t, query)

	query, degraded = queryFor("p.lead")
	require.False(t, degraded)
	require.NotEmpty(t, query)
}

func TestSplitSelectorList(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"h3", "h2", ".qa-story-headline"}, SplitSelectorList("h3, h2,.qa-story-headline"))
	require.Equal(t, []string{`a[title="x, y"]`, "b"}, SplitSelectorList(`a[title="x, y"], b`))
	require.Equal(t, []string{"a"}, SplitSelectorList(" , a ,"))
	require.Empty(t, SplitSelectorList(""))
}

func TestXPathLiteral(t *testing.T) {
	t.Parallel()

	require.Equal(t, "'plain'", xpathLiteral("plain"))
	require.Equal(t, `"it's"`, xpathLiteral("it's"))
	require.Equal(t, `concat('a', "'", 'b"c')`, xpathLiteral(`a'b"c`))
}

func TestCompileQueryCachesFailures(t *testing.T) {
	t.Parallel()

	require.Nil(t, compileQuery("!!!"))
	require.Nil(t, compileQuery("!!!"))
	require.NotNil(t, compileQuery("p"))
}
