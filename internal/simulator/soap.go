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

package simulator

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

// XML namespaces used by the certificate web services.
const (
	NamespaceSOAP      = "http://www.w3.org/2003/05/soap-envelope"
	NamespaceWebServer = "http://www.axis.com/vapix/ws/webserver"
	NamespaceCert      = "http://www.axis.com/vapix/ws/cert"
	NamespaceDevice    = "http://www.onvif.org/ver10/device/wsdl"
	NamespaceSchema    = "http://www.onvif.org/ver10/schema"
)

var (
	httpsAliasElement = xml.Name{Space: NamespaceCert, Local: "Id"}
	ieeeAliasElement  = xml.Name{Space: NamespaceSchema, Local: "CertificateID"}
)

// soapRequest is the part of a SOAP request the simulator acts on.
type soapRequest struct {
	Action  string
	Aliases []string
}

// parseSOAPRequest returns the action named by the first child of Body and
// the text of every certificate reference element.
func parseSOAPRequest(raw []byte) (*soapRequest, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	req := &soapRequest{}

	var (
		depth     int
		bodyDepth int
		capture   bool
		text      strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case el.Name.Space == NamespaceSOAP && el.Name.Local == "Body":
				bodyDepth = depth
			case bodyDepth > 0 && depth == bodyDepth+1 && req.Action == "":
				req.Action = el.Name.Local
			case el.Name == httpsAliasElement || el.Name == ieeeAliasElement:
				capture = true
				text.Reset()
			}
		case xml.CharData:
			if capture {
				text.Write(el)
			}
		case xml.EndElement:
			if capture && (el.Name == httpsAliasElement || el.Name == ieeeAliasElement) {
				req.Aliases = append(req.Aliases, strings.TrimSpace(text.String()))
				capture = false
			}
			depth--
		}
	}

	if req.Action == "" {
		return nil, errors.New("no SOAP Body action")
	}
	return req, nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func soapEnvelope(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<SOAP-ENV:Envelope xmlns:SOAP-ENV="` + NamespaceSOAP + `"` +
		` xmlns:aws="` + NamespaceWebServer + `"` +
		` xmlns:acert="` + NamespaceCert + `"` +
		` xmlns:tds="` + NamespaceDevice + `"` +
		` xmlns:tt="` + NamespaceSchema + `">` +
		`<SOAP-ENV:Body>` + body + `</SOAP-ENV:Body></SOAP-ENV:Envelope>`
}

func soapFault(code, reason, detail string) string {
	return soapEnvelope(`<SOAP-ENV:Fault>` +
		`<SOAP-ENV:Code><SOAP-ENV:Value>` + code + `</SOAP-ENV:Value></SOAP-ENV:Code>` +
		`<SOAP-ENV:Reason><SOAP-ENV:Text xml:lang="en">` + xmlEscape(reason) + `</SOAP-ENV:Text></SOAP-ENV:Reason>` +
		`<SOAP-ENV:Detail><acert:` + detail + `/></SOAP-ENV:Detail>` +
		`</SOAP-ENV:Fault>`)
}

func httpsConfigurationResponse(alias string) string {
	var ids string
	if alias != "" {
		ids = `<acert:Id>` + xmlEscape(alias) + `</acert:Id>`
	}
	return soapEnvelope(`<aws:GetWebServerTlsConfigurationResponse><aws:Configuration>` +
		`<aws:Tls>true</aws:Tls>` +
		`<aws:ConnectionPolicies><aws:Admin>HttpAndHttps</aws:Admin><aws:Operator>HttpAndHttps</aws:Operator><aws:Viewer>HttpAndHttps</aws:Viewer></aws:ConnectionPolicies>` +
		`<aws:CertificateSet><acert:Certificates>` + ids + `</acert:Certificates><acert:CACertificates/><acert:TrustedCertificates/></aws:CertificateSet>` +
		`</aws:Configuration></aws:GetWebServerTlsConfigurationResponse>`)
}

func dot1XConfigurationsResponse(alias string) string {
	var id string
	if alias != "" {
		id = `<tt:TLSConfiguration><tt:CertificateID>` + xmlEscape(alias) + `</tt:CertificateID></tt:TLSConfiguration>`
	}
	return soapEnvelope(`<tds:GetDot1XConfigurationsResponse><tds:Dot1XConfiguration>` +
		`<tt:Dot1XConfigurationToken>EAPTLS_WIRED</tt:Dot1XConfigurationToken>` +
		`<tt:Identity>axis</tt:Identity><tt:EAPMethod>13</tt:EAPMethod>` +
		`<tt:EAPMethodConfiguration>` + id + `</tt:EAPMethodConfiguration>` +
		`</tds:Dot1XConfiguration></tds:GetDot1XConfigurationsResponse>`)
}

func (s *Server) soapFail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context(), s.logger).Warn("device operation failed",
		"operation", op,
		"error", err)
	code := "SOAP-ENV:Receiver"
	if !errors.Is(err, ErrInternal) {
		code = "SOAP-ENV:Sender"
	}
	writeXML(w, soapFault(code, err.Error(), soapDetail(err)), s.errorStatus)
}

func (s *Server) soapHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.soapFail(w, r, metrics.OpGetBinding, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	req, err := parseSOAPRequest(raw)
	if err != nil {
		s.soapFail(w, r, metrics.OpGetBinding, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	op := metrics.OpGetBinding
	if strings.HasPrefix(req.Action, "Set") {
		op = metrics.OpSetBinding
	}
	if f, ok := s.device.fault(op); ok {
		status := f.Status
		if status == 0 {
			status = s.errorStatus
		}
		writeXML(w, soapFault("SOAP-ENV:Receiver", f.Message, "InternalError"), status)
		return
	}

	switch req.Action {
	case "GetWebServerTlsConfiguration":
		writeXML(w, httpsConfigurationResponse(s.device.Binding(BindingHTTPS)), http.StatusOK)
	case "GetDot1XConfigurations":
		writeXML(w, dot1XConfigurationsResponse(s.device.Binding(BindingIEEE)), http.StatusOK)
	case "SetWebServerTlsConfiguration":
		s.soapBind(w, r, BindingHTTPS, req)
	case "SetDot1XConfiguration":
		s.soapBind(w, r, BindingIEEE, req)
	default:
		writeXML(w, soapFault("SOAP-ENV:Sender", "action not supported: "+req.Action, "ActionNotSupported"), s.errorStatus)
	}
}

func (s *Server) soapBind(w http.ResponseWriter, r *http.Request, slot string, req *soapRequest) {
	if len(req.Aliases) != 1 || req.Aliases[0] == "" {
		s.soapFail(w, r, metrics.OpSetBinding,
			fmt.Errorf("%w: exactly one certificate reference is required, got %d", ErrInvalidRequest, len(req.Aliases)))
		return
	}
	if err := s.device.Bind(slot, req.Aliases[0]); err != nil {
		s.soapFail(w, r, metrics.OpSetBinding, err)
		return
	}
	logging.FromContext(r.Context(), s.logger).Info("certificate bound",
		"slot", slot,
		"alias", req.Aliases[0])
	writeXML(w, soapEnvelope(`<`+responseElement(req.Action)+`/>`), http.StatusOK)
}

func responseElement(action string) string {
	if action == "SetDot1XConfiguration" {
		return "tds:" + action + "Response"
	}
	return "aws:" + action + "Response"
}
