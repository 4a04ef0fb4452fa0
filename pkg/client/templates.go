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
	"embed"
	"encoding/xml"
	"fmt"
)

// Request body templates for the SOAP and CGI binding operations.
const (
	templateGetHTTPS = "GetHttpsBinding.xml"
	templateSetHTTPS = "SetHttpsBinding.xml"
	templateGetIEEE  = "GetIEEEBinding.xml"
	templateSetIEEE  = "SetIEEEBinding.xml"
	templateGetMQTT  = "GetMQTTBinding.json"
	templateSetMQTT  = "SetMQTTBinding.json"

	aliasPlaceholder = "{ALIAS}"
)

//go:embed templates/*.xml templates/*.json
var templateFS embed.FS

func loadTemplate(name string) ([]byte, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("client: request template %s: %w", name, err)
	}
	return data, nil
}

// renderXMLTemplate loads an XML template and substitutes the escaped alias
// for every {ALIAS} placeholder.
func renderXMLTemplate(name, alias string) ([]byte, error) {
	data, err := loadTemplate(name)
	if err != nil {
		return nil, err
	}
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(alias)); err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(data, []byte(aliasPlaceholder), escaped.Bytes()), nil
}
