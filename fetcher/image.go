package fetcher

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// ExtractImageURL extracts the best image URL from a feed entry.
// Priority: Item.Image > media:thumbnail > media:content (medium=image) >
// Enclosure (image/*) > first <img> in the body > first <img> in the
// summary. Best-effort; only http/https URLs are accepted.
func ExtractImageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" && isValidImageScheme(item.Image.URL) {
		return item.Image.URL
	}

	if mediaExt, ok := item.Extensions["media"]; ok {
		if thumbnails, ok := mediaExt["thumbnail"]; ok {
			for _, thumb := range thumbnails {
				if u := thumb.Attrs["url"]; u != "" && isValidImageScheme(u) {
					return u
				}
			}
		}

		if contents, ok := mediaExt["content"]; ok {
			for _, content := range contents {
				if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") {
					if u := content.Attrs["url"]; u != "" && isValidImageScheme(u) {
						return u
					}
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" && isValidImageScheme(enc.URL) {
			return enc.URL
		}
	}

	if u := firstImageSrc(item.Content); u != "" {
		return u
	}
	return firstImageSrc(item.Description)
}

// firstImageSrc returns the src of the first <img> tag in an HTML fragment.
func firstImageSrc(html string) string {
	if html == "" || !strings.Contains(html, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")
	if src == "" || !isValidImageScheme(src) {
		return ""
	}
	return src
}

func isValidImageScheme(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
