package proteus

import (
	"encoding/xml"
	"strings"
)

const (
	// APIPath is the single SOAP endpoint every operation is posted to
	APIPath = "/Services/API"

	// DefaultConfigName is the Proteus configuration holding the device instances
	DefaultConfigName = "PGE Corporate"

	SOAPEnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	APINamespace          = "http://api.proteus.bluecatnetworks.com"
)

const envelopeOpen = `<soapenv:Envelope xmlns:soapenv="` + SOAPEnvelopeNamespace + `" xmlns:api="` + APINamespace + `">` +
	` <soapenv:Header/> <soapenv:Body> `

const envelopeClose = ` </soapenv:Body> </soapenv:Envelope>`

// Operation names as they appear in the envelope body.
const (
	OpLogin                = "login"
	OpDeleteDeviceInstance = "deleteDeviceInstance"
	OpLogout               = "logout"
)

func envelope(body string) string {
	return envelopeOpen + body + envelopeClose
}

// LoginEnvelope builds the login request for the given API credentials.
func LoginEnvelope(username, password string) string {
	return envelope(`<api:login> <username>` + escape(username) + `</username> <password>` +
		escape(password) + `</password> </api:login>`)
}

// DeleteDeviceInstanceEnvelope builds a deleteDeviceInstance request. identifier
// is the device's IP address.
func DeleteDeviceInstanceEnvelope(configName, identifier string) string {
	return envelope(`<api:deleteDeviceInstance> <configName>` + escape(configName) +
		`</configName> <identifier>` + escape(identifier) +
		`</identifier> <options></options> </api:deleteDeviceInstance>`)
}

func LogoutEnvelope() string {
	return envelope(`<api:logout/>`)
}

// Operation reports which API operation an envelope invokes, or "" if none.
// It is a substring match, not an XML parse.
func Operation(envelope string) string {
	for _, op := range []string{OpDeleteDeviceInstance, OpLogout, OpLogin} {
		if strings.Contains(envelope, "<api:"+op+">") || strings.Contains(envelope, "<api:"+op+"/>") {
			return op
		}
	}
	return ""
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
