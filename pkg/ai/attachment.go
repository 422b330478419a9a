package ai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type AttachmentKind string

const (
	KindImage AttachmentKind = "image"
	KindAudio AttachmentKind = "audio"
)

// Attachment is binary media sent alongside a prompt.
type Attachment struct {
	Kind     AttachmentKind
	MIMEType string
	Data     []byte
}

// ParseDataURL decodes a base64 "data:" URL such as the ones produced by canvas.toDataURL
// or FileReader.readAsDataURL.
func ParseDataURL(s string) (mimeType string, data []byte, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL: missing payload")
	}
	params := strings.Split(header, ";")
	mimeType = params[0]
	if mimeType == "" {
		mimeType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		return mimeType, []byte(payload), nil
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("malformed data URL payload: %w", err)
	}
	return mimeType, data, nil
}

// AttachmentFromDataURL builds an attachment of the given kind from a data URL.
func AttachmentFromDataURL(kind AttachmentKind, dataURL string) (Attachment, error) {
	mimeType, data, err := ParseDataURL(dataURL)
	if err != nil {
		return Attachment{}, err
	}
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("empty %s payload", kind)
	}
	return Attachment{Kind: kind, MIMEType: mimeType, Data: data}, nil
}

// DataURL re-encodes the attachment as a base64 data URL.
func (a Attachment) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// AudioFormat is the short container name (wav, mp3, webm, ...) for an audio attachment.
func (a Attachment) AudioFormat() string {
	sub := a.MIMEType
	if i := strings.IndexByte(sub, '/'); i >= 0 {
		sub = sub[i+1:]
	}
	if i := strings.IndexByte(sub, ';'); i >= 0 {
		sub = sub[:i]
	}
	switch sub {
	case "mpeg", "mp3":
		return "mp3"
	case "x-wav", "wave", "wav":
		return "wav"
	}
	return sub
}
