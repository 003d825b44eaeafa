package parser

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const viewerPathMarker = "/public/exposee/"

var accessTokenExpr = regexp.MustCompile(`(eyJ[A-Za-z0-9+/=]+)`)

// FindViewerURL locates the embedded listing-viewer iframe on a detail
// page. The viewer is a third-party document that renders the actual
// property details; detail pages without one carry no listing.
func FindViewerURL(doc *goquery.Document, viewerHost string) (string, bool) {
	found := ""
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if strings.Contains(src, viewerHost) && strings.Contains(src, viewerPathMarker) {
			found = src
			return false
		}
		return true
	})
	return found, found != ""
}

// ObjectKey recovers the stable per-listing identifier from the access
// token embedded in the viewer URL. The token is unpadded base64 of a JSON
// object carrying property_token. Any decode failure falls back to the
// detail-page URL slug, so every listing still gets a deterministic key.
func ObjectKey(viewerURL, detailURL string) string {
	m := accessTokenExpr.FindStringSubmatch(viewerURL)
	if m == nil {
		return urlSlug(detailURL)
	}

	token := m[1]
	if pad := len(token) % 4; pad != 0 {
		token += strings.Repeat("=", 4-pad)
	}

	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return urlSlug(detailURL)
	}

	var payload struct {
		PropertyToken string `json:"property_token"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.PropertyToken == "" {
		return urlSlug(detailURL)
	}
	return payload.PropertyToken
}

func urlSlug(detailURL string) string {
	trimmed := strings.TrimSuffix(detailURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
