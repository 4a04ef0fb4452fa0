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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/health"
	"github.com/jeremyhahn/go-axiscert/pkg/job"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// certSummary is the parsed view of a PEM certificate.
type certSummary struct {
	Subject  string    `json:"subject"`
	Issuer   string    `json:"issuer"`
	NotAfter time.Time `json:"not_after"`
}

// summarize parses pemCert, returning nil when it is not a certificate.
func summarize(pemCert string) *certSummary {
	cert, err := encoding.DecodeCertificate([]byte(pemCert))
	if err != nil {
		return nil
	}
	return &certSummary{
		Subject:  cert.Subject.String(),
		Issuer:   cert.Issuer.String(),
		NotAfter: cert.NotAfter.UTC(),
	}
}

func (s *certSummary) expires() string {
	if s == nil {
		return "-"
	}
	return s.NotAfter.Format(time.DateOnly)
}

func (s *certSummary) subject() string {
	if s == nil {
		return "(unparsable)"
	}
	return s.Subject
}

// PrintResult prints the outcome of a job
func (p *Printer) PrintResult(result *job.Result) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(result)
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%s: %s", result.Job, result.Status)
		if result.Message != "" {
			fmt.Fprintf(p.writer, " (%s)", result.Message)
		}
		fmt.Fprintln(p.writer)
		if len(result.Items) == 0 {
			return nil
		}
		fmt.Fprintf(p.writer, "%-30s %-10s %-12s %-6s\n", "ALIAS", "USAGE", "PRIVATE KEY", "CERTS")
		fmt.Fprintln(p.writer, strings.Repeat("-", 61))
		for _, item := range result.Items {
			fmt.Fprintf(p.writer, "%-30s %-10s %-12t %-6d\n",
				item.Alias, item.Usage, item.PrivateKey, len(item.Certificates))
		}
		return nil
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Job:            %s\n", result.Job)
		fmt.Fprintf(p.writer, "Status:         %s\n", result.Status)
		if result.Message != "" {
			fmt.Fprintf(p.writer, "Message:        %s\n", result.Message)
		}
		fmt.Fprintf(p.writer, "Correlation ID: %s\n", result.CorrelationID)
		fmt.Fprintf(p.writer, "Duration:       %s\n", result.Duration.Round(time.Millisecond))
		if len(result.Items) > 0 {
			fmt.Fprintln(p.writer, "Items:")
			for _, item := range result.Items {
				fmt.Fprintf(p.writer, "  - %s (%s)", item.Alias, item.Usage)
				if item.PrivateKey {
					fmt.Fprint(p.writer, " [private key]")
				}
				fmt.Fprintln(p.writer)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintHealth prints a device health report
func (p *Printer) PrintHealth(report *health.Report) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(report)
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-6s %-10s %-10s %s\n", "CHECK", "STATUS", "LATENCY", "DETAIL")
		fmt.Fprintln(p.writer, strings.Repeat("-", 60))
		for _, check := range report.Checks {
			detail := check.Message
			if check.Error != "" {
				detail = check.Error
			}
			fmt.Fprintf(p.writer, "%-6s %-10s %-10s %s\n",
				check.Name, check.Status, check.Latency.Round(time.Millisecond), detail)
		}
		fmt.Fprintf(p.writer, "Overall: %s\n", report.Status)
		return nil
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Status: %s\n", report.Status)
		for _, check := range report.Checks {
			if check.Error != "" {
				fmt.Fprintf(p.writer, "  - %s: %s (%s: %s)\n", check.Name, check.Status, check.Kind, check.Error)
				continue
			}
			fmt.Fprintf(p.writer, "  - %s: %s (%s)\n", check.Name, check.Status, check.Message)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCertificates prints the client certificates held by a device
func (p *Printer) PrintCertificates(certs []client.DeviceCertificate) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(certs))
		for i, cert := range certs {
			list[i] = map[string]interface{}{
				"alias":       cert.Alias,
				"keystore":    cert.Keystore,
				"certificate": summarize(cert.PEM),
			}
		}
		return p.printJSON(map[string]interface{}{
			"certificates": list,
		})
	case OutputFormatTable:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No certificates found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-30s %-8s %-12s %s\n", "ALIAS", "KEYSTORE", "EXPIRES", "SUBJECT")
		fmt.Fprintln(p.writer, strings.Repeat("-", 72))
		for _, cert := range certs {
			s := summarize(cert.PEM)
			fmt.Fprintf(p.writer, "%-30s %-8s %-12s %s\n",
				cert.Alias, cert.Keystore, s.expires(), s.subject())
		}
		return nil
	case OutputFormatText:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No certificates found")
			return nil
		}
		fmt.Fprintln(p.writer, "Certificates:")
		for _, cert := range certs {
			s := summarize(cert.PEM)
			fmt.Fprintf(p.writer, "  - %s (%s, expires %s)\n", cert.Alias, s.subject(), s.expires())
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCACertificates prints the trusted CA certificates of a device
func (p *Printer) PrintCACertificates(certs []client.CACertificate) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(certs))
		for i, cert := range certs {
			list[i] = map[string]interface{}{
				"alias":       cert.Alias,
				"certificate": summarize(cert.PEM),
			}
		}
		return p.printJSON(map[string]interface{}{
			"ca_certificates": list,
		})
	case OutputFormatTable:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No CA certificates found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-30s %-12s %s\n", "ALIAS", "EXPIRES", "SUBJECT")
		fmt.Fprintln(p.writer, strings.Repeat("-", 72))
		for _, cert := range certs {
			s := summarize(cert.PEM)
			fmt.Fprintf(p.writer, "%-30s %-12s %s\n", cert.Alias, s.expires(), s.subject())
		}
		return nil
	case OutputFormatText:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No CA certificates found")
			return nil
		}
		fmt.Fprintln(p.writer, "CA Certificates:")
		for _, cert := range certs {
			fmt.Fprintf(p.writer, "  - %s (%s)\n", cert.Alias, summarize(cert.PEM).subject())
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintBinding prints the certificate bound to a usage. An empty alias
// means nothing is bound.
func (p *Printer) PrintBinding(usage client.Usage, alias string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"usage": usage,
			"alias": alias,
		})
	case OutputFormatTable, OutputFormatText:
		if alias == "" {
			alias = "(unbound)"
		}
		fmt.Fprintf(p.writer, "%s: %s\n", usage, alias)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeystore prints the default keystore of a device
func (p *Printer) PrintKeystore(keystore client.Keystore) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"keystore": keystore,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, keystore)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCSR prints a certificate signing request in PEM format
func (p *Printer) PrintCSR(alias, csr string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"alias": alias,
			"csr":   csr,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprint(p.writer, csr)
		if !strings.HasSuffix(csr, "\n") {
			fmt.Fprintln(p.writer)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeyType prints the device key type for an algorithm and size
func (p *Printer) PrintKeyType(algorithm string, size int, keyType client.KeyType) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"algorithm": algorithm,
			"size":      size,
			"key_type":  keyType,
			"supported": keyType.Supported(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "%s-%d: %s\n", strings.ToUpper(algorithm), size, keyType)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message with its client error kind
func (p *Printer) PrintError(err error) error {
	kind := client.Classify(err)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"kind":   kind,
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		if kind == client.KindUnknown {
			fmt.Fprintf(p.writer, "Error: %v\n", err)
			return nil
		}
		fmt.Fprintf(p.writer, "Error (%s): %v\n", kind, err)
		return nil
	default:
		// Unknown formats still get the error
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
