// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-axiscert.
//
// go-axiscert is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soapFault = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://www.w3.org/2003/05/soap-envelope" xmlns:aweb="http://www.axis.com/vapix/ws/webserver">
  <SOAP-ENV:Body>
    <SOAP-ENV:Fault>
      <SOAP-ENV:Code>
        <SOAP-ENV:Value>SOAP-ENV:Sender</SOAP-ENV:Value>
        <SOAP-ENV:Subcode><SOAP-ENV:Value>ter:InvalidArgVal</SOAP-ENV:Value></SOAP-ENV:Subcode>
      </SOAP-ENV:Code>
      <SOAP-ENV:Reason>
        <SOAP-ENV:Text xml:lang="en">Certificate not found</SOAP-ENV:Text>
      </SOAP-ENV:Reason>
      <SOAP-ENV:Detail>
        <aweb:CertificateNotFound/>
      </SOAP-ENV:Detail>
    </SOAP-ENV:Fault>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

func httpsBindingResponse(ids ...string) string {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "<acert:Id>%s</acert:Id>", id)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://www.w3.org/2003/05/soap-envelope" xmlns:aws="http://www.axis.com/vapix/ws/webserver" xmlns:acert="http://www.axis.com/vapix/ws/cert">
  <SOAP-ENV:Body>
    <aws:GetWebServerTlsConfigurationResponse>
      <aws:Configuration>
        <aws:Tls>true</aws:Tls>
        <aws:CertificateSet><acert:Certificates>` + b.String() + `</acert:Certificates></aws:CertificateSet>
      </aws:Configuration>
    </aws:GetWebServerTlsConfigurationResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`
}

const ieeeBindingResponse = `<?xml version="1.0"?>
<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope" xmlns:tds="http://www.onvif.org/ver10/device/wsdl" xmlns:tt="http://www.onvif.org/ver10/schema">
  <env:Body>
    <tds:GetDot1XConfigurationsResponse>
      <tds:Dot1XConfiguration>
        <tt:EAPMethodConfiguration><tt:TLSConfiguration><tt:CertificateID>cam-8021x</tt:CertificateID></tt:TLSConfiguration></tt:EAPMethodConfiguration>
      </tds:Dot1XConfiguration>
    </tds:GetDot1XConfigurationsResponse>
  </env:Body>
</env:Envelope>`

const soapEmptyResponse = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://www.w3.org/2003/05/soap-envelope">
  <SOAP-ENV:Body><tds:SetDot1XConfigurationResponse xmlns:tds="http://www.onvif.org/ver10/device/wsdl"/></SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

func TestSOAPDecode(t *testing.T) {
	a := &SOAPAdapter{}

	t.Run("fault", func(t *testing.T) {
		env, err := a.Decode([]byte(soapFault))
		require.NoError(t, err)
		assert.Equal(t, StatusError, env.Status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "SOAP-ENV:Sender", env.Error.Code)
		assert.Equal(t, "Certificate not found", env.Error.Message)
		assert.Equal(t, "CertificateNotFound", env.Error.Detail)
		assert.Equal(t,
			"SOAP API error encountered - Certificate not found - (Code: SOAP-ENV:Sender) - (Detail: CertificateNotFound)",
			env.Err().Error())
	})

	t.Run("empty fault is still an error", func(t *testing.T) {
		raw := `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body><env:Fault/></env:Body></env:Envelope>`
		env, err := a.Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, StatusError, env.Status)
		assert.ErrorIs(t, env.Err(), ErrAPILogical)
		assert.Contains(t, env.Err().Error(), "(no error reason provided)")
	})

	t.Run("fault outside the envelope namespace is ignored", func(t *testing.T) {
		raw := `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body><x:Fault xmlns:x="urn:other"/></env:Body></env:Envelope>`
		env, err := a.Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, env.Status)
	})

	t.Run("no fault", func(t *testing.T) {
		env, err := a.Decode([]byte(httpsBindingResponse("cam-https")))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, env.Status)
		assert.NoError(t, env.Err())
	})

	for name, raw := range map[string]string{
		"malformed": `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://www.w3.org/2003/05/soap-envelope"><SOAP-ENV:Body>`,
		"not xml":   `{"status":"success"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrProtocolInvariant)
		})
	}
}

func TestSOAPGetBinding(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  error
	}{
		{name: "bound", response: httpsBindingResponse("cam-https"), want: "cam-https"},
		{name: "unbound", response: httpsBindingResponse()},
		{name: "whitespace trimmed", response: httpsBindingResponse("\n  cam-https  \n"), want: "cam-https"},
		{name: "duplicate aliases", response: httpsBindingResponse("a", "b"), wantErr: ErrProtocolInvariant},
		{name: "fault", response: soapFault, wantErr: ErrAPILogical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMockDevice(t)
			d.handle("POST /vapix/services", xmlType, tt.response)
			c := d.client(t)

			alias, err := c.GetUsageBinding(context.Background(), UsageHTTPS)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, alias)

			req := d.last(t)
			assert.Equal(t, xmlType, req.ContentType)
			assert.Contains(t, req.Body, "GetWebServerTlsConfiguration")
		})
	}
}

func TestSOAPGetBindingDuplicateMessage(t *testing.T) {
	d := newMockDevice(t)
	d.handle("POST /vapix/services", xmlType, httpsBindingResponse("a", "b", "c"))
	c := d.client(t)

	_, err := c.GetUsageBinding(context.Background(), UsageHTTPS)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 1 certificate alias was found in the SOAP response (3 <acert:Id> elements)")
}

func TestSOAPGetIEEEBinding(t *testing.T) {
	d := newMockDevice(t)
	d.handle("POST /vapix/services", xmlType, ieeeBindingResponse)
	c := d.client(t)

	alias, err := c.GetUsageBinding(context.Background(), UsageIEEE)
	require.NoError(t, err)
	assert.Equal(t, "cam-8021x", alias)
	assert.Contains(t, d.last(t).Body, "GetDot1XConfigurations")
}

func TestSOAPSetBinding(t *testing.T) {
	d := newMockDevice(t)
	d.handle("POST /vapix/services", xmlType, soapEmptyResponse)
	c := d.client(t)

	require.NoError(t, c.SetUsageBinding(context.Background(), "cam<&>https", UsageHTTPS))
	req := d.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/vapix/services", req.Path)
	assert.Equal(t, xmlType, req.ContentType)
	assert.Contains(t, req.Body, "<acert:Id>cam&lt;&amp;&gt;https</acert:Id>")
	assert.NotContains(t, req.Body, "{ALIAS}")

	// Binding the same alias twice sends the same request.
	require.NoError(t, c.SetUsageBinding(context.Background(), "cam<&>https", UsageHTTPS))
	reqs := d.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].Body, reqs[1].Body)

	require.NoError(t, c.SetUsageBinding(context.Background(), "cam-8021x", UsageIEEE))
	assert.Contains(t, d.last(t).Body, "<tt:CertificateID>cam-8021x</tt:CertificateID>")
}

func TestSOAPSetBindingFault(t *testing.T) {
	d := newMockDevice(t)
	d.handle("POST /vapix/services", xmlType, soapFault)
	c := d.client(t)

	err := c.SetUsageBinding(context.Background(), "missing", UsageHTTPS)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ProtocolSOAP, apiErr.Protocol)
	assert.Equal(t, "Certificate not found", apiErr.Message)
}

func TestSOAPFaultWithErrorStatus(t *testing.T) {
	d := newMockDevice(t)
	d.handleStatus("POST /vapix/services", http.StatusInternalServerError, xmlType, soapFault)
	c := d.client(t)

	_, err := c.GetUsageBinding(context.Background(), UsageHTTPS)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Internal Server Error! (500)", terr.Message)
	assert.Contains(t, terr.Detail, "Certificate not found")
}

func TestSOAPRejectsUnservedUsage(t *testing.T) {
	a := &SOAPAdapter{}
	_, err := a.GetBinding(context.Background(), UsageMQTT)
	assert.ErrorIs(t, err, ErrPolicyRejection)
	assert.ErrorIs(t, a.SetBinding(context.Background(), UsageMQTT, "x"), ErrPolicyRejection)
}
