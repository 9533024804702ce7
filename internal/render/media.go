package render

import (
	"path"
	"regexp"
	"strings"
)

// MediaKind is the element a media reference renders as.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaImage
	MediaVideo
	MediaFrame
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaFrame:
		return "frame"
	}
	return "none"
}

// Media is a resolved media reference.
type Media struct {
	Kind MediaKind
	Src  string
}

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// ResolveMedia turns a sheet's media cell into a source. Bare filenames are
// joined onto base; paths and URLs are kept as they are. Drive preview links
// become frames and mp4/webm files become videos.
func ResolveMedia(base, ref string) Media {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Media{}
	}
	if isDrivePreview(ref) {
		return Media{Kind: MediaFrame, Src: ref}
	}
	src := ref
	if !absoluteURL.MatchString(ref) && !strings.Contains(ref, "/") {
		src = joinBase(base, ref)
	}
	name, _, _ := strings.Cut(ref, "?")
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "mp4", "webm":
		return Media{Kind: MediaVideo, Src: src}
	}
	return Media{Kind: MediaImage, Src: src}
}

func isDrivePreview(ref string) bool {
	return absoluteURL.MatchString(ref) &&
		strings.Contains(ref, "drive.google.com/file/d/") &&
		strings.Contains(ref, "/preview")
}

func joinBase(base, name string) string {
	if base == "" {
		return name
	}
	if strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}
