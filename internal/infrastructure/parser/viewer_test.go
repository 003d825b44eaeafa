package parser

import "testing"

func TestFindViewerURL(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body>
		<iframe src="https://www.youtube.com/embed/xyz"></iframe>
		<iframe src="https://vendor.landingpage.immobilien/public/exposee/eyJabc"></iframe>
	</body></html>`)

	src, ok := FindViewerURL(doc, "landingpage.immobilien")
	if !ok {
		t.Fatal("expected a viewer iframe")
	}
	if src != "https://vendor.landingpage.immobilien/public/exposee/eyJabc" {
		t.Fatalf("unexpected viewer url: %s", src)
	}
}

func TestFindViewerURLMissing(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<html><body><p>Kein iframe hier.</p></body></html>`)
	if _, ok := FindViewerURL(doc, "landingpage.immobilien"); ok {
		t.Fatal("expected no viewer iframe")
	}
}

func TestObjectKeyFromAccessToken(t *testing.T) {
	t.Parallel()

	// Unpadded base64 of {"property_token":"OBJ-123"}.
	viewerURL := "https://vendor.landingpage.immobilien/public/exposee/eyJwcm9wZXJ0eV90b2tlbiI6Ik9CSi0xMjMifQ"
	key := ObjectKey(viewerURL, "https://example.org/haus-am-see/")

	if key != "OBJ-123" {
		t.Fatalf("expected OBJ-123, got %q", key)
	}
}

func TestObjectKeyFallsBackToSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		viewerURL string
	}{
		{"no token", "https://vendor.landingpage.immobilien/public/exposee/plain"},
		{"malformed token", "https://vendor.landingpage.immobilien/public/exposee/eyJ%%%"},
		{"token without property_token", "https://vendor.landingpage.immobilien/public/exposee/eyJmb28iOiJiYXIifQ"},
	}

	for _, tt := range tests {
		if key := ObjectKey(tt.viewerURL, "https://example.org/haus-am-see/"); key != "haus-am-see" {
			t.Errorf("%s: expected slug fallback, got %q", tt.name, key)
		}
	}
}
