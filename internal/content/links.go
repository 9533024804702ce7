package content

import (
	"net/url"
	"regexp"
	"strings"
)

const faviconService = "https://www.google.com/s2/favicons?sz=64&domain="

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// LinkList is the link page: a title and its buttons.
type LinkList struct {
	Title string `yaml:"title"`
	Links []Link `yaml:"links"`
}

// Link is one button of the link page.
type Link struct {
	Label   string `yaml:"label"`
	URL     string `yaml:"url"`
	Favicon string `yaml:"favicon"`
}

// Visible drops links without a URL.
func (l LinkList) Visible() []Link {
	out := make([]Link, 0, len(l.Links))
	for _, link := range l.Links {
		if strings.TrimSpace(link.URL) != "" {
			out = append(out, link)
		}
	}
	return out
}

// Text is the button label, defaulting to the URL.
func (l Link) Text() string {
	if label := strings.TrimSpace(l.Label); label != "" {
		return label
	}
	return l.URL
}

// FaviconURL returns the icon for l. A favicon that is a URL is used as is;
// any other favicon value is taken as a domain. Without one the link's own
// host is used.
func (l Link) FaviconURL() string {
	if fav := strings.TrimSpace(l.Favicon); fav != "" {
		if absoluteURL.MatchString(fav) {
			return fav
		}
		return faviconService + url.QueryEscape(fav)
	}
	u, err := url.Parse(strings.TrimSpace(l.URL))
	if err != nil || u.Hostname() == "" {
		return faviconService + "example.com"
	}
	return faviconService + url.QueryEscape(u.Hostname())
}
