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
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

// SOAPEnvelopeNamespace is the SOAP 1.2 envelope namespace.
const SOAPEnvelopeNamespace = "http://www.w3.org/2003/05/soap-envelope"

// Raw element names carrying the bound alias.
const (
	HTTPSAliasTag = "acert:Id"
	IEEEAliasTag  = "tt:CertificateID"
)

type soapBinding struct {
	getTemplate string
	setTemplate string
	aliasTag    string
}

var soapBindings = map[Usage]soapBinding{
	UsageHTTPS: {getTemplate: templateGetHTTPS, setTemplate: templateSetHTTPS, aliasTag: HTTPSAliasTag},
	UsageIEEE:  {getTemplate: templateGetIEEE, setTemplate: templateSetIEEE, aliasTag: IEEEAliasTag},
}

// SOAPAdapter speaks the legacy certificate web service used for the HTTPS
// and IEEE 802.1X bindings. A Fault element is the only error signal.
type SOAPAdapter struct {
	t *transport
}

// Protocol implements Adapter.
func (a *SOAPAdapter) Protocol() Protocol { return ProtocolSOAP }

// Execute implements Adapter.
func (a *SOAPAdapter) Execute(ctx context.Context, op, resource, method string, body []byte) (*Response, error) {
	resp, err := a.t.do(ctx, ProtocolSOAP, op, SOAPEntryPoint+resource, method, contentTypeXML, body)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(ProtocolSOAP, resp, a.Decode); err != nil {
		return resp, err
	}
	return resp, nil
}

// Decode implements Adapter. A response without a Fault is a success
// whatever else it contains.
func (a *SOAPAdapter) Decode(raw []byte) (*Envelope, error) {
	fault, err := parseFault(raw)
	if err != nil {
		return nil, &ProtocolError{Protocol: ProtocolSOAP, Message: "unable to parse SOAP response", Err: err}
	}
	if fault != nil {
		return &Envelope{Status: StatusError, Payload: raw, Error: fault}, nil
	}
	return &Envelope{Status: StatusSuccess, Payload: raw}, nil
}

// GetBinding implements BindingAdapter.
func (a *SOAPAdapter) GetBinding(ctx context.Context, usage Usage) (string, error) {
	binding, ok := soapBindings[usage]
	if !ok {
		return "", &PolicyError{Reason: fmt.Sprintf("usage %q is not served by the SOAP API", usage)}
	}

	body, err := loadTemplate(binding.getTemplate)
	if err != nil {
		return "", err
	}
	resp, err := a.Execute(ctx, metrics.OpGetBinding, "", http.MethodPost, body)
	if err != nil {
		return "", err
	}
	env, err := a.Decode(resp.Raw)
	if err != nil {
		return "", err
	}
	if err := env.Err(); err != nil {
		return "", err
	}

	aliases, err := elementTexts(resp.Raw, binding.aliasTag)
	if err != nil {
		return "", &ProtocolError{Protocol: ProtocolSOAP, Message: "unable to parse SOAP response", Err: err}
	}
	switch len(aliases) {
	case 0:
		logging.FromContext(ctx, a.t.logger).Debug("no certificate bound", "usage", usage)
		return "", nil
	case 1:
		return aliases[0], nil
	default:
		return "", &ProtocolError{
			Protocol: ProtocolSOAP,
			Message:  fmt.Sprintf("more than 1 certificate alias was found in the SOAP response (%d <%s> elements)", len(aliases), binding.aliasTag),
		}
	}
}

// SetBinding implements BindingAdapter.
func (a *SOAPAdapter) SetBinding(ctx context.Context, usage Usage, alias string) error {
	binding, ok := soapBindings[usage]
	if !ok {
		return &PolicyError{Reason: fmt.Sprintf("usage %q is not served by the SOAP API", usage)}
	}

	body, err := renderXMLTemplate(binding.setTemplate, alias)
	if err != nil {
		return err
	}
	resp, err := a.Execute(ctx, metrics.OpSetBinding, "", http.MethodPost, body)
	if err != nil {
		return err
	}
	env, err := a.Decode(resp.Raw)
	if err != nil {
		return err
	}
	return env.Err()
}

func isEnvelope(name xml.Name, local string) bool {
	return name.Space == SOAPEnvelopeNamespace && name.Local == local
}

// parseFault returns the first SOAP Fault in raw, or nil when there is none.
// The document is fully parsed so malformed XML is always reported.
func parseFault(raw []byte) (*APIError, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		fault      *APIError
		faultDepth int
		stack      []xml.Name
		capture    *string
		text       strings.Builder
		sawElement bool
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
			sawElement = true
			stack = append(stack, el.Name)
			depth := len(stack)

			if fault == nil && faultDepth == 0 && isEnvelope(el.Name, "Fault") {
				fault = &APIError{Protocol: ProtocolSOAP}
				faultDepth = depth
				continue
			}
			if fault == nil || faultDepth < 0 {
				continue
			}
			switch {
			case isEnvelope(el.Name, "Value") && fault.Code == "" && capture == nil:
				capture = &fault.Code
				text.Reset()
			case isEnvelope(el.Name, "Text") && fault.Message == "" && capture == nil:
				capture = &fault.Message
				text.Reset()
			case depth == faultDepth+2 && isEnvelope(stack[faultDepth], "Detail") && fault.Detail == "":
				fault.Detail = el.Name.Local
			}

		case xml.CharData:
			if capture != nil {
				text.Write(el)
			}

		case xml.EndElement:
			if capture != nil && (isEnvelope(el.Name, "Value") || isEnvelope(el.Name, "Text")) {
				*capture = strings.TrimSpace(text.String())
				capture = nil
			}
			if fault != nil && len(stack) == faultDepth {
				// Later faults are ignored.
				faultDepth = -1
			}
			stack = stack[:len(stack)-1]
		}
	}

	if !sawElement {
		return nil, errors.New("document has no root element")
	}
	return fault, nil
}

// elementTexts returns the trimmed text of every element whose raw,
// prefix-qualified name equals tag (for example "acert:Id").
func elementTexts(raw []byte, tag string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		texts []string
		depth int
		text  strings.Builder
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
				continue
			}
			if qualifiedName(el.Name) == tag {
				depth = 1
				text.Reset()
			}
		case xml.CharData:
			if depth > 0 {
				text.Write(el)
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				texts = append(texts, strings.TrimSpace(text.String()))
			}
		}
	}
	return texts, nil
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
