package media

import "strings"

// Kind is the container kind of an uploaded source.
type Kind string

const (
	// KindMP4 is an MPEG-4 container (video/mp4).
	KindMP4 Kind = "mp4"
	// KindMOV is a QuickTime container (video/quicktime).
	KindMOV Kind = "mov"
)

// IsValid returns true if the kind is one of the supported containers.
func (k Kind) IsValid() bool {
	return k == KindMP4 || k == KindMOV
}

// Extension returns the file extension including the leading dot.
func (k Kind) Extension() string {
	return "." + string(k)
}

// MIMEType returns the media type associated with the kind.
func (k Kind) MIMEType() string {
	switch k {
	case KindMOV:
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}

// KindFromMIME maps an allow-listed media type to its Kind.
// Parameters such as "; codecs=..." are ignored.
func KindFromMIME(mimeType string) (Kind, bool) {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.ToLower(strings.TrimSpace(base)) {
	case "video/mp4":
		return KindMP4, true
	case "video/quicktime":
		return KindMOV, true
	default:
		return "", false
	}
}

// KindFromExtension maps a file extension, with or without the dot, to its Kind.
func KindFromExtension(ext string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimPrefix(ext, ".")))
	return k, k.IsValid()
}
