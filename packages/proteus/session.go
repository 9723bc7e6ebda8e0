package proteus

import (
	"github.com/abdul-hamid-achik/proteusctl/packages/http"
)

// Session is the connection data for one workflow run. Cookie is empty until
// login succeeds and is never modified afterwards.
type Session struct {
	Host     string
	Scheme   string
	Username string
	Password string
	Cookie   string
}

// WithCookie returns a copy of the session carrying cookie.
func (s Session) WithCookie(cookie string) Session {
	s.Cookie = cookie
	return s
}

// ApplySOAPHeaders adds the headers every Proteus SOAP call sends.
func ApplySOAPHeaders(call *http.Call) {
	call.AddHeader("Accept-Encoding", "gzip, deflate")
	call.AddHeader("Content-Type", "text/xml;charset=UTF-8")
	call.AddHeader("SOAPAction", "")
}

// ApplyCookieHeaders adds the session cookie headers used after login.
func ApplyCookieHeaders(call *http.Call, cookie string) {
	call.AddHeader("Cookie", cookie)
	call.AddHeader("Cookie2", "$Version=1")
}
