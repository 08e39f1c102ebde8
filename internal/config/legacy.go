package config

import (
	"gopkg.in/yaml.v3"

	"github.com/tonyperkins/homelab/internal/gateway"
)

// legacyFile is the older layout: the controller under "omada" and the
// SSH router under "er707". Values found there fill fields the current
// layout left empty.
type legacyFile struct {
	Transport  string         `yaml:"transport"`
	Controller map[string]any `yaml:"controller"`
	SSH        map[string]any `yaml:"ssh"`

	Omada *struct {
		ControllerURL string `yaml:"controller_url"`
		Username      string `yaml:"username"`
		Password      string `yaml:"password"`
		SiteName      string `yaml:"site_name"`
		VerifySSL     *bool  `yaml:"verify_ssl"`
	} `yaml:"omada"`

	ER707 *struct {
		Host         string `yaml:"host"`
		SSHPort      int    `yaml:"ssh_port"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		WANInterface string `yaml:"wan_interface"`
	} `yaml:"er707"`
}

// applyLegacy maps the older section names onto c and records which were
// used. A file with only an er707 section and no transport selects ssh.
func (c *Config) applyLegacy(data []byte) {
	var old legacyFile
	if err := yaml.Unmarshal(data, &old); err != nil {
		return
	}

	if o := old.Omada; o != nil && old.Controller == nil {
		c.legacy = append(c.legacy, "omada")
		c.Controller.URL = o.ControllerURL
		c.Controller.Username = o.Username
		c.Controller.Password = o.Password
		if o.SiteName != "" {
			c.Controller.SiteName = o.SiteName
		}
		if o.VerifySSL != nil {
			c.Controller.VerifySSL = *o.VerifySSL
		}
	}

	if e := old.ER707; e != nil && old.SSH == nil {
		c.legacy = append(c.legacy, "er707")
		c.SSH.Host = e.Host
		c.SSH.Username = e.Username
		c.SSH.Password = e.Password
		if e.SSHPort != 0 {
			c.SSH.Port = e.SSHPort
		}
		if e.WANInterface != "" {
			c.SSH.WANInterface = e.WANInterface
		}
		if old.Transport == "" && old.Omada == nil && old.Controller == nil {
			c.Transport = string(gateway.TransportSSH)
		}
	}
}

// LegacySections names the old-style sections the file was read from, e.g.
// "omada" and "er707". Empty for a file in the current layout.
func (c *Config) LegacySections() []string {
	return c.legacy
}
