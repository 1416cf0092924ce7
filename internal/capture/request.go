package capture

import (
	"encoding/base64"
	"encoding/json"

	"github.com/chromedp/cdproto/network"
)

// Request is one outbound API call observed on the page.
type Request struct {
	URL      string  `json:"url"`
	Method   string  `json:"method"`
	PostData *string `json:"postData"`
}

// Body returns the post data or "" when none was recorded.
func (r Request) Body() string {
	if r.PostData == nil {
		return ""
	}
	return *r.PostData
}

// JSONField decodes the post data as a JSON object and returns the string
// value stored under key. ok is false when the body is absent, not JSON, or
// the field is missing.
func (r Request) JSONField(key string) (string, bool) {
	if r.PostData == nil {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(*r.PostData), &obj); err != nil {
		return "", false
	}
	v, ok := obj[key].(string)
	return v, ok
}

// FromNetworkRequest builds a Request from a CDP request. PostData stays nil
// when the request carries no body or the body entries cannot be read.
func FromNetworkRequest(req *network.Request) Request {
	if req == nil {
		return Request{}
	}
	out := Request{URL: req.URL, Method: req.Method}
	if body, ok := decodePostData(req); ok {
		out.PostData = &body
	}
	return out
}

func decodePostData(req *network.Request) (string, bool) {
	if !req.HasPostData || len(req.PostDataEntries) == 0 {
		return "", false
	}
	var decoded []byte
	for _, entry := range req.PostDataEntries {
		if entry == nil || entry.Bytes == "" {
			continue
		}
		part, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			return "", false
		}
		decoded = append(decoded, part...)
	}
	if len(decoded) == 0 {
		return "", false
	}
	return string(decoded), true
}
