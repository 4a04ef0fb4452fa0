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


package cli

import (
	"fmt"
	"strconv"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/spf13/cobra"
)

// keyTypeCmd maps a CA key algorithm and size to a device key type
var keyTypeCmd = &cobra.Command{
	Use:   "keytype <algorithm> <size>",
	Short: "Map a key algorithm and size to a device key type",
	Long: `Print the key type a device is asked to generate for a CA key
algorithm and size. EC, ECC, ECDSA and ECP all name elliptic curve keys.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid key size %q: %w", args[1], err)
		}
		keyType := client.MapKeyType(args[0], size)
		if err := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintKeyType(args[0], size, keyType); err != nil {
			return err
		}
		if !keyType.Supported() {
			return &client.PolicyError{Reason: fmt.Sprintf("no device key type for %s-%d", args[0], size)}
		}
		return nil
	},
}
