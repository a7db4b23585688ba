package markdown

import (
	"regexp"
	"strings"
)

// embeddedImage matches an image reference carrying an inline base64 JPEG,
// up to and including the first closing parenthesis.
var embeddedImage = regexp.MustCompile(`!\[[^\]\n]*\]\(data:image/jpeg;base64,[^)]*?\)`)

// ImageCache maps image labels ("![img-0.jpeg]") to the parenthesized data
// URI that followed them in the source text.
type ImageCache struct {
	labels   []string
	payloads map[string]string
}

// ExtractImages replaces every embedded image with "label()" and returns the
// shortened text together with the cache needed to restore it. The input is
// not modified. A label seen twice keeps the last payload.
func ExtractImages(text string) (string, *ImageCache) {
	cache := &ImageCache{payloads: make(map[string]string)}
	out := embeddedImage.ReplaceAllStringFunc(text, func(match string) string {
		split := strings.Index(match, "]") + 1
		label, payload := match[:split], match[split:]
		if _, seen := cache.payloads[label]; !seen {
			cache.labels = append(cache.labels, label)
		}
		cache.payloads[label] = payload
		return label + "()"
	})
	return out, cache
}

// Len returns the number of distinct labels in the cache.
func (c *ImageCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.labels)
}

// Labels returns the cached labels in first-seen order.
func (c *ImageCache) Labels() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.labels...)
}

// Restore puts the cached payloads back behind their "label()" placeholders.
// Labels that no longer occur in text are returned as missing and the text
// is left as is for them.
func (c *ImageCache) Restore(text string) (string, []string) {
	if c == nil {
		return text, nil
	}
	var missing []string
	for _, label := range c.labels {
		if !strings.Contains(text, label) {
			missing = append(missing, label)
			continue
		}
		text = strings.ReplaceAll(text, label+"()", label+c.payloads[label])
	}
	return text, missing
}
