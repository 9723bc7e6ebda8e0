package mock

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/proteusctl/packages/proteus"
)

func post(t *testing.T, url, body, cookie string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+proteus.APIPath, strings.NewReader(body))
	require.NoError(t, err)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServer_LoginDeleteLogout(t *testing.T) {
	m := NewServer()
	server := httptest.NewServer(m)
	defer server.Close()

	resp := post(t, server.URL, proteus.LoginEnvelope("u", "p"), "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	setCookie := resp.Header.Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(setCookie, "JSESSIONID="))
	assert.Contains(t, setCookie, "; Path=/; HttpOnly")
	cookie := proteus.ExtractSessionCookie(setCookie)

	resp = post(t, server.URL, proteus.DeleteDeviceInstanceEnvelope(proteus.DefaultConfigName, "10.0.0.5"), cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, server.URL, proteus.LogoutEnvelope(), cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{proteus.OpLogin, proteus.OpDeleteDeviceInstance, proteus.OpLogout}, m.Operations())
	exchanges := m.Exchanges()
	assert.Equal(t, setCookie, exchanges[0].SetCookie)
	assert.Equal(t, cookie, exchanges[2].Cookie)
}

func TestServer_RequiresSession(t *testing.T) {
	server := httptest.NewServer(NewServer())
	defer server.Close()

	resp := post(t, server.URL, proteus.LogoutEnvelope(), "JSESSIONID=unknown")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Not logged in")
}

func TestServer_SessionEndsAtLogout(t *testing.T) {
	server := httptest.NewServer(NewServer())
	defer server.Close()

	resp := post(t, server.URL, proteus.LoginEnvelope("u", "p"), "")
	resp.Body.Close()
	cookie := proteus.ExtractSessionCookie(resp.Header.Get("Set-Cookie"))

	resp = post(t, server.URL, proteus.LogoutEnvelope(), cookie)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, server.URL, proteus.LogoutEnvelope(), cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_ForcedStatus(t *testing.T) {
	m := NewServer(WithStatus(proteus.OpLogin, http.StatusUnauthorized))
	server := httptest.NewServer(m)
	defer server.Close()

	resp := post(t, server.URL, proteus.LoginEnvelope("u", "p"), "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Set-Cookie"))
	assert.Equal(t, http.StatusUnauthorized, m.Exchanges()[0].Status)
}

func TestServer_RejectsOtherRoutes(t *testing.T) {
	m := NewServer()
	server := httptest.NewServer(m)
	defer server.Close()

	resp, err := http.Get(server.URL + proteus.APIPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(server.URL+"/other", "text/xml", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Empty(t, m.Exchanges())
}

func TestServer_UnknownOperation(t *testing.T) {
	m := NewServer()
	server := httptest.NewServer(m)
	defer server.Close()

	resp := post(t, server.URL, "<soapenv:Envelope/>", "")
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, []string{""}, m.Operations())
}
