package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestExtractWANAddress(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantIP    string
		wantShape string
	}{
		{"wan ipAddr", `{"wan":{"ipAddr":"203.0.113.9"}}`, "203.0.113.9", "wan"},
		{"wan ip", `{"wan":{"ip":"203.0.113.9"}}`, "203.0.113.9", "wan"},
		{"wan ipv4", `{"wan":{"ipv4":"203.0.113.9"}}`, "203.0.113.9", "wan"},
		{"wan prefers ipAddr", `{"wan":{"ip":"1.1.1.1","ipAddr":"8.8.8.8"}}`, "8.8.8.8", "wan"},
		{"networkStatus", `{"networkStatus":{"wan":{"ip":"10.0.0.5"}}}`, "10.0.0.5", "networkStatus.wan"},
		{"wan wins over networkStatus",
			`{"wan":{"ip":"1.1.1.1"},"networkStatus":{"wan":{"ip":"2.2.2.2"}}}`, "1.1.1.1", "wan"},
		{"empty wan falls through",
			`{"wan":{"ip":""},"networkStatus":{"wan":{"ipAddr":"2.2.2.2"}}}`, "2.2.2.2", "networkStatus.wan"},
		{"wan not an object", `{"wan":"up","ports":[{"type":"wan","ip":"3.3.3.3"}]}`, "3.3.3.3", "ports"},
		{"ports by type", `{"ports":[{"type":"lan","ip":"192.168.0.1"},{"type":"wan","ipAddr":"4.4.4.4"}]}`, "4.4.4.4", "ports"},
		{"ports by name", `{"ports":[{"name":"LAN1","ip":"192.168.0.1"},{"name":"WAN2","ip":"5.5.5.5"}]}`, "5.5.5.5", "ports"},
		{"ports skip wan without ip", `{"ports":[{"type":"wan"},{"name":"wan2","ip":"6.6.6.6"}]}`, "6.6.6.6", "ports"},
		{"numeric ip ignored", `{"wan":{"ip":12345}}`, "", ""},
		{"nothing", `{"name":"ER707"}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, shape := extractWANAddress(gjson.Parse(tt.doc))
			assert.Equal(t, tt.wantIP, ip)
			assert.Equal(t, tt.wantShape, shape)
		})
	}
}
