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


// Command axiscert manages the certificate lifecycle of Axis network
// cameras.
package main

import "github.com/jeremyhahn/go-axiscert/internal/cli"

func main() {
	cli.Execute()
}
