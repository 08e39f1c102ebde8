package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"github.com/tonyperkins/homelab/internal/addr"
)

// ControllerOptions configures a ControllerClient.
type ControllerOptions struct {
	BaseURL   string // e.g. https://192.168.1.10:8043
	Username  string
	Password  string
	SiteName  string
	DeviceMAC string
	PortID    int
	VerifySSL bool
	Timeout   time.Duration

	// HTTPClient overrides the default client. A jar it already carries is
	// used as is and never replaced; without one the client gets its own.
	HTTPClient *http.Client
}

// Site is one entry of the controller's site list.
type Site struct {
	ID   string
	Name string
}

// DeviceStatus is the subset of the gateway status document worth showing.
type DeviceStatus struct {
	Name       string
	Model      string
	Status     string
	WANAddress string
	WANShape   string // which response shape yielded WANAddress
	Raw        string
}

// ControllerClient drives the router through the management controller's
// REST API. All calls after login carry the session token header and cookies.
type ControllerClient struct {
	opts ControllerOptions
	http *http.Client
	log  *logrus.Entry

	token         string
	loginOmadacID string
	controllerID  string
	siteID        string
	sites         []Site

	ownJar bool // the jar was created here and may be reset on Close
}

// apiEnvelope is the wrapper around every controller response body.
type apiEnvelope struct {
	ErrorCode int             `json:"errorCode"`
	Msg       string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

// Controller error codes between these bounds mean the session is gone.
const (
	loginRequiredMin = -1299
	loginRequiredMax = -1200
)

// NewControllerClient builds a client; it performs no I/O.
func NewControllerClient(opts ControllerOptions, log *logrus.Entry) *ControllerClient {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.SiteName == "" {
		opts.SiteName = "Default"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(opts)
	}
	c := &ControllerClient{
		opts: opts,
		http: hc,
		log:  log.WithField("transport", TransportController),
	}
	if hc.Jar == nil {
		c.ownJar = true
		c.resetJar()
	}
	return c
}

func (c *ControllerClient) resetJar() {
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		c.http.Jar = jar
	}
}

func newHTTPClient(opts ControllerOptions) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Controllers usually ship a self-signed certificate.
		InsecureSkipVerify: !opts.VerifySSL,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}

// Authenticate logs in and resolves the controller and site identifiers.
// Identifier resolution problems are logged; later device calls then fail
// with ErrNotReady.
func (c *ControllerClient) Authenticate(ctx context.Context) error {
	c.Close()

	payload := map[string]string{
		"username": c.opts.Username,
		"password": c.opts.Password,
	}
	env, status, err := c.call(ctx, http.MethodPost, "/api/v2/login", payload)
	if err != nil {
		return fmt.Errorf("controller login: %w", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("controller login: http %d: %w", status, ErrAuthenticationFailed)
	}
	if status != http.StatusOK || env == nil {
		return fmt.Errorf("controller login: http %d: %w", status, ErrTransport)
	}
	if env.ErrorCode != 0 {
		return fmt.Errorf("controller login: %s (code %d): %w", env.Msg, env.ErrorCode, ErrAuthenticationFailed)
	}

	result := gjson.ParseBytes(env.Result)
	c.token = result.Get("token").String()
	c.loginOmadacID = result.Get("omadacId").String()
	c.log.Info("Successfully authenticated with controller")

	if err := c.resolveIdentifiers(ctx); err != nil {
		c.log.WithError(err).Error("Error getting controller info")
	}
	return nil
}

// resolveIdentifiers finds the controller id and the configured site's id.
func (c *ControllerClient) resolveIdentifiers(ctx context.Context) error {
	env, status, err := c.call(ctx, http.MethodGet, "/api/v2/controllers", nil)
	switch {
	case err != nil:
		c.log.WithError(err).Debug("Controller list unavailable")
	case status == http.StatusOK && env != nil && env.ErrorCode == 0:
		c.controllerID = gjson.ParseBytes(env.Result).Get("0.omadacId").String()
	}
	if c.controllerID == "" && c.loginOmadacID != "" {
		// Software controllers do not serve /controllers; the login
		// response carries the id instead.
		c.log.Debug("Using software controller mode")
		c.controllerID = c.loginOmadacID
	}
	if c.controllerID == "" {
		return fmt.Errorf("controller id unresolved: %w", ErrNotReady)
	}
	c.log.WithField("controller_id", c.controllerID).Info("Controller ID resolved")

	env, status, err = c.call(ctx, http.MethodGet, "/"+url.PathEscape(c.controllerID)+"/api/v2/sites", nil)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	if status != http.StatusOK || env == nil || env.ErrorCode != 0 {
		return fmt.Errorf("list sites: http %d: %w", status, ErrNotReady)
	}

	c.sites = c.sites[:0]
	gjson.ParseBytes(env.Result).Get("data").ForEach(func(_, s gjson.Result) bool {
		site := Site{ID: s.Get("id").String(), Name: s.Get("name").String()}
		c.sites = append(c.sites, site)
		if c.siteID == "" && site.Name == c.opts.SiteName {
			c.siteID = site.ID
		}
		return true
	})
	if c.siteID == "" {
		return fmt.Errorf("site %q not found among %d sites: %w", c.opts.SiteName, len(c.sites), ErrNotReady)
	}
	c.log.WithField("site_id", c.siteID).Info("Site ID resolved")
	return nil
}

// Ready reports whether both identifiers are known.
func (c *ControllerClient) Ready() bool {
	return c.controllerID != "" && c.siteID != ""
}

// Identifiers returns the resolved controller and site ids.
func (c *ControllerClient) Identifiers() (controllerID, siteID string) {
	return c.controllerID, c.siteID
}

// Sites returns the sites seen during the last login.
func (c *ControllerClient) Sites() []Site {
	out := make([]Site, len(c.sites))
	copy(out, c.sites)
	return out
}

// Info probes the unauthenticated info endpoint and returns its HTTP status.
func (c *ControllerClient) Info(ctx context.Context) (int, error) {
	_, status, err := c.call(ctx, http.MethodGet, "/api/info", nil)
	if err != nil {
		return 0, fmt.Errorf("controller info: %w", err)
	}
	return status, nil
}

// Device fetches the gateway status document for the configured MAC.
func (c *ControllerClient) Device(ctx context.Context) (*DeviceStatus, error) {
	if !c.Ready() {
		return nil, fmt.Errorf("gateway status: controller or site id unavailable: %w", ErrNotReady)
	}
	env, err := c.expectOK(ctx, http.MethodGet, c.gatewayPath(), nil)
	if err != nil {
		return nil, fmt.Errorf("gateway status: %w", err)
	}

	result := gjson.ParseBytes(env.Result)
	ds := &DeviceStatus{
		Name:   result.Get("name").String(),
		Model:  result.Get("model").String(),
		Status: result.Get("status").String(),
		Raw:    result.Raw,
	}
	ds.WANAddress, ds.WANShape = extractWANAddress(result)
	return ds, nil
}

// ReadWANAddress returns the WAN address from the gateway status document.
func (c *ControllerClient) ReadWANAddress(ctx context.Context) (string, error) {
	ds, err := c.Device(ctx)
	if err != nil {
		return "", err
	}
	if ds.WANAddress == "" {
		c.log.WithField("status", ds.Raw).Debug("Device status structure")
		return "", fmt.Errorf("gateway %s: no wan address in status: %w", c.opts.DeviceMAC, ErrNotFound)
	}
	if addr.Classify(ds.WANAddress) == addr.Invalid {
		return "", fmt.Errorf("gateway %s: malformed wan address %q: %w", c.opts.DeviceMAC, ds.WANAddress, ErrNotFound)
	}
	c.log.WithField("shape", ds.WANShape).Debugf("WAN address %s", ds.WANAddress)
	return ds.WANAddress, nil
}

// SetWANPortEnabled patches the WAN port's enable flag. HTTP 200 alone is
// not success; the embedded error code must be zero as well.
func (c *ControllerClient) SetWANPortEnabled(ctx context.Context, enabled bool) error {
	if !c.Ready() {
		return fmt.Errorf("set wan port: controller or site id unavailable: %w", ErrNotReady)
	}
	path := fmt.Sprintf("%s/ports/%d", c.gatewayPath(), c.opts.PortID)
	if _, err := c.expectOK(ctx, http.MethodPatch, path, map[string]bool{"enable": enabled}); err != nil {
		return fmt.Errorf("set wan port %d enable=%t: %w", c.opts.PortID, enabled, err)
	}
	if enabled {
		c.log.Infof("WAN port %d connected successfully", c.opts.PortID)
	} else {
		c.log.Infof("WAN port %d disconnected successfully", c.opts.PortID)
	}
	return nil
}

// Close forgets the session. A jar the client created itself is replaced;
// a caller-supplied one is left alone.
func (c *ControllerClient) Close() error {
	c.token = ""
	c.loginOmadacID = ""
	c.controllerID = ""
	c.siteID = ""
	c.sites = nil
	if c.ownJar {
		c.resetJar()
	}
	return nil
}

func (c *ControllerClient) gatewayPath() string {
	return fmt.Sprintf("/%s/api/v2/sites/%s/gateways/%s",
		url.PathEscape(c.controllerID), url.PathEscape(c.siteID), url.PathEscape(NormalizeMAC(c.opts.DeviceMAC)))
}

// expectOK performs a call that must return HTTP 200 with errorCode 0.
func (c *ControllerClient) expectOK(ctx context.Context, method, path string, body any) (*apiEnvelope, error) {
	env, status, err := c.call(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("http %d: %w", status, ErrAuthenticationFailed)
	}
	if status != http.StatusOK || env == nil {
		return nil, fmt.Errorf("http %d: %w", status, ErrTransport)
	}
	if env.ErrorCode >= loginRequiredMin && env.ErrorCode <= loginRequiredMax {
		return nil, fmt.Errorf("%s (code %d): %w", env.Msg, env.ErrorCode, ErrAuthenticationFailed)
	}
	if env.ErrorCode != 0 {
		return nil, fmt.Errorf("%s (code %d): %w", env.Msg, env.ErrorCode, ErrTransport)
	}
	return env, nil
}

// call sends one request. A nil envelope with a nil error means the body
// was not a JSON envelope (some controllers answer unknown paths with HTML).
func (c *ControllerClient) call(ctx context.Context, method, path string, body any) (*apiEnvelope, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Csrf-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w: %w", method, path, err, ErrTransport)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: read body: %w: %w", method, path, err, ErrTransport)
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.WithFields(logrus.Fields{"path": path, "status": resp.StatusCode}).
			Debugf("Non-JSON response: %.150s", data)
		return nil, resp.StatusCode, nil
	}
	return &env, resp.StatusCode, nil
}

// NormalizeMAC upper-cases a MAC address and uses dashes, the form the
// controller uses in resource paths.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(mac), ":", "-"))
}
