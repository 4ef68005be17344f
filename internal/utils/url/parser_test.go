package urlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"http://a.example":               "http://a.example/",
		"http://A.Example/":              "http://a.example/",
		"https://a.example/x?utm=1#frag": "https://a.example/x",
		"https://a.example/x///":         "https://a.example/x/",
		"http://a.example:80/":           "http://a.example/",
		"https://a.example:8443/p/":      "https://a.example:8443/p/",
		"HTTPS://a.example/Case/Path":    "https://a.example/Case/Path",
		"not a url":                      "not a url",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestUniqueNormalized_DropsEquivalentURLs(t *testing.T) {
	got := UniqueNormalized([]string{
		"http://a.example/",
		"http://a.example/?q=1",
		"http://a.example/x",
		"http://A.EXAMPLE",
		"http://a.example/x#top",
	})
	assert.Equal(t, []string{"http://a.example/", "http://a.example/x"}, got)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "http___a_example_", Slug("http://a.example/"))

	long := Slug("https://a.example/" + strings.Repeat("p", 300))
	assert.Len(t, long, MaxSlugLength)
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.co.uk", RegistrableDomain("https://www.shop.example.co.uk/x"))
	assert.True(t, SameSite("https://www.example.com/", "http://cdn.example.com/a"))
	assert.False(t, SameSite("https://example.com/", "https://example.org/"))
}
