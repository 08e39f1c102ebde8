package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeController is a minimal controller API good enough for the client.
type fakeController struct {
	mu sync.Mutex

	loginCode       int
	controllersCode int // non-zero simulates a software controller
	sites           []map[string]string
	gateway         map[string]any
	patchCode       int
	patchStatus     int

	patches    []bool
	tokensSeen []string
}

func newFakeController() *fakeController {
	return &fakeController{
		sites: []map[string]string{
			{"id": "site-other", "name": "Lab"},
			{"id": "site-1", "name": "Default"},
		},
		gateway: map[string]any{
			"name":   "ER707",
			"model":  "ER707-M2",
			"status": 14,
			"wan":    map[string]any{"ipAddr": "203.0.113.9"},
		},
		patchStatus: http.StatusOK,
	}
}

func writeEnvelope(w http.ResponseWriter, code int, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"errorCode": code, "msg": "msg", "result": result})
}

func (f *fakeController) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, map[string]any{"controllerVer": "5.13"})
	})
	mux.HandleFunc("/api/v2/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.loginCode != 0 || body["password"] != "secret" {
			writeEnvelope(w, -30109, nil)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "TPOMADA_SESSIONID", Value: "cookie", Path: "/"})
		writeEnvelope(w, 0, map[string]any{"token": "tok-1", "omadacId": "omadac-login"})
	})
	mux.HandleFunc("/api/v2/controllers", func(w http.ResponseWriter, r *http.Request) {
		if f.controllersCode != 0 {
			writeEnvelope(w, f.controllersCode, nil)
			return
		}
		writeEnvelope(w, 0, []map[string]string{{"omadacId": "ctrl-1"}})
	})
	sites := func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, map[string]any{"data": f.sites})
	}
	mux.HandleFunc("/ctrl-1/api/v2/sites", sites)
	mux.HandleFunc("/omadac-login/api/v2/sites", sites)

	gw := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tokensSeen = append(f.tokensSeen, r.Header.Get("Csrf-Token"))
		switch r.Method {
		case http.MethodGet:
			writeEnvelope(w, 0, f.gateway)
		case http.MethodPatch:
			var body map[string]bool
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.patches = append(f.patches, body["enable"])
			if f.patchStatus != http.StatusOK {
				w.WriteHeader(f.patchStatus)
				return
			}
			writeEnvelope(w, f.patchCode, nil)
		}
	}
	mux.HandleFunc("/ctrl-1/api/v2/sites/site-1/gateways/AA-BB-CC-DD-EE-FF", gw)
	mux.HandleFunc("/ctrl-1/api/v2/sites/site-1/gateways/AA-BB-CC-DD-EE-FF/ports/0", gw)
	mux.HandleFunc("/omadac-login/api/v2/sites/site-1/gateways/AA-BB-CC-DD-EE-FF", gw)
	return mux
}

func newTestController(t *testing.T, f *fakeController) *ControllerClient {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewControllerClient(ControllerOptions{
		BaseURL:    srv.URL + "/",
		Username:   "admin",
		Password:   "secret",
		DeviceMAC:  "aa:bb:cc:dd:ee:ff",
		HTTPClient: srv.Client(),
	}, testLogger())
}

func TestControllerAuthenticateResolvesIdentifiers(t *testing.T) {
	c := newTestController(t, newFakeController())

	require.NoError(t, c.Authenticate(context.Background()))
	assert.True(t, c.Ready())
	cid, sid := c.Identifiers()
	assert.Equal(t, "ctrl-1", cid)
	assert.Equal(t, "site-1", sid)
	assert.Len(t, c.Sites(), 2)
}

func TestControllerSoftwareModeFallsBackToLoginID(t *testing.T) {
	f := newFakeController()
	f.controllersCode = -1600
	c := newTestController(t, f)

	require.NoError(t, c.Authenticate(context.Background()))
	cid, _ := c.Identifiers()
	assert.Equal(t, "omadac-login", cid)

	ip, err := c.ReadWANAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", ip)
}

func TestControllerAuthenticateRejected(t *testing.T) {
	f := newFakeController()
	f.loginCode = -30109
	c := newTestController(t, f)

	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.False(t, IsRecoverable(err))
}

func TestControllerAuthenticateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewControllerClient(ControllerOptions{BaseURL: url, Password: "secret"}, testLogger())
	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, IsRecoverable(err))
}

func TestControllerCancelledLoginKeepsContextError(t *testing.T) {
	c := newTestController(t, newFakeController())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Authenticate(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestControllerCloseKeepsCallerJar(t *testing.T) {
	f := newFakeController()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := srv.Client()
	hc.Jar = jar
	c := NewControllerClient(ControllerOptions{BaseURL: srv.URL, Password: "secret", DeviceMAC: "aa:bb:cc:dd:ee:ff", HTTPClient: hc}, testLogger())

	require.NoError(t, c.Authenticate(context.Background()))
	require.NoError(t, c.Close())
	assert.Same(t, jar, hc.Jar)
}

func TestControllerCloseResetsOwnJar(t *testing.T) {
	c := NewControllerClient(ControllerOptions{BaseURL: "http://127.0.0.1:1"}, testLogger())
	before := c.http.Jar
	require.NotNil(t, before)
	require.NoError(t, c.Close())
	assert.NotSame(t, before, c.http.Jar)
}

func TestControllerUnknownSiteIsNotReady(t *testing.T) {
	f := newFakeController()
	f.sites = []map[string]string{{"id": "x", "name": "Elsewhere"}}
	c := newTestController(t, f)

	require.NoError(t, c.Authenticate(context.Background()))
	assert.False(t, c.Ready())

	_, err := c.ReadWANAddress(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, c.SetWANPortEnabled(context.Background(), false), ErrNotReady)
}

func TestControllerReadBeforeLoginIsNotReady(t *testing.T) {
	c := newTestController(t, newFakeController())
	_, err := c.ReadWANAddress(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestControllerReadSendsToken(t *testing.T) {
	f := newFakeController()
	c := newTestController(t, f)
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.ReadWANAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, f.tokensSeen)
}

func TestControllerReadNotFound(t *testing.T) {
	f := newFakeController()
	f.gateway = map[string]any{"name": "ER707", "wan": map[string]any{"status": "down"}}
	c := newTestController(t, f)
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.ReadWANAddress(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerReadMalformedAddress(t *testing.T) {
	f := newFakeController()
	f.gateway = map[string]any{"wan": map[string]any{"ip": "pending"}}
	c := newTestController(t, f)
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.ReadWANAddress(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerSetWANPortEnabled(t *testing.T) {
	f := newFakeController()
	c := newTestController(t, f)
	require.NoError(t, c.Authenticate(context.Background()))

	require.NoError(t, c.SetWANPortEnabled(context.Background(), false))
	require.NoError(t, c.SetWANPortEnabled(context.Background(), true))
	assert.Equal(t, []bool{false, true}, f.patches)
}

func TestControllerSetWANPortApplicationError(t *testing.T) {
	f := newFakeController()
	f.patchCode = -1001
	c := newTestController(t, f)
	require.NoError(t, c.Authenticate(context.Background()))

	err := c.SetWANPortEnabled(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestControllerSetWANPortSessionExpired(t *testing.T) {
	f := newFakeController()
	f.patchCode = -1200
	c := newTestController(t, f)
	require.NoError(t, c.Authenticate(context.Background()))

	assert.ErrorIs(t, c.SetWANPortEnabled(context.Background(), false), ErrAuthenticationFailed)

	f.patchCode = 0
	f.patchStatus = http.StatusUnauthorized
	assert.ErrorIs(t, c.SetWANPortEnabled(context.Background(), true), ErrAuthenticationFailed)
}

func TestControllerCloseForgetsSession(t *testing.T) {
	c := newTestController(t, newFakeController())
	require.NoError(t, c.Authenticate(context.Background()))
	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
}

func TestControllerInfo(t *testing.T) {
	c := newTestController(t, newFakeController())
	status, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestControllerDevice(t *testing.T) {
	c := newTestController(t, newFakeController())
	require.NoError(t, c.Authenticate(context.Background()))

	ds, err := c.Device(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ER707", ds.Name)
	assert.Equal(t, "ER707-M2", ds.Model)
	assert.Equal(t, "14", ds.Status)
	assert.Equal(t, "wan", ds.WANShape)
}

func TestNormalizeMAC(t *testing.T) {
	assert.Equal(t, "AA-BB-CC-DD-EE-FF", NormalizeMAC(" aa:bb:cc:dd:ee:ff "))
	assert.Equal(t, "A1-B2-C3-D4-E5-F6", NormalizeMAC("A1-B2-C3-D4-E5-F6"))
}
