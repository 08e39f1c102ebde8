package gateway

import (
	"strings"

	"github.com/tidwall/gjson"
)

// jsonExtractor pulls a candidate WAN address out of a gateway status
// document. It returns "" when its shape is not present.
type jsonExtractor struct {
	name string
	fn   func(status gjson.Result) string
}

// statusExtractors is tried in order; the first non-empty value wins.
// The field layout differs between controller versions.
var statusExtractors = []jsonExtractor{
	{"wan", func(s gjson.Result) string {
		return firstString(s.Get("wan"), "ipAddr", "ip", "ipv4")
	}},
	{"networkStatus.wan", func(s gjson.Result) string {
		return firstString(s.Get("networkStatus.wan"), "ipAddr", "ip")
	}},
	{"ports", func(s gjson.Result) string {
		var ip string
		s.Get("ports").ForEach(func(_, port gjson.Result) bool {
			if !isWANPort(port) {
				return true
			}
			ip = firstString(port, "ipAddr", "ip")
			return ip == ""
		})
		return ip
	}},
}

// extractWANAddress runs statusExtractors over a status document and
// reports which shape matched.
func extractWANAddress(status gjson.Result) (ip, shape string) {
	for _, ex := range statusExtractors {
		if v := strings.TrimSpace(ex.fn(status)); v != "" {
			return v, ex.name
		}
	}
	return "", ""
}

// firstString returns the first non-empty string among keys of obj.
// obj must be a JSON object; anything else yields "".
func firstString(obj gjson.Result, keys ...string) string {
	if !obj.IsObject() {
		return ""
	}
	for _, k := range keys {
		if v := obj.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func isWANPort(port gjson.Result) bool {
	if !port.IsObject() {
		return false
	}
	if port.Get("type").String() == "wan" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(port.Get("name").String()), "wan")
}
