package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pilight-gateway/internal/gateway"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// errRejected is returned when at least one payload failed validation.
var errRejected = errors.New("payloads rejected")

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var scalar bool

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate JSON payloads against the catalog",
		Long: `Validate a stream of JSON objects read from file or stdin.

Accepted payloads are written to stdout, one per line, with the protocol
as a single-element list unless --scalar is given. Rejections and their
violations are written to stderr. The command fails if any payload was
rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.loadRegistry(cmd)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, openErr := os.Open(args[0])
				if openErr != nil {
					return fmt.Errorf("opening payload file: %w", openErr)
				}
				defer f.Close()
				in = f
			}

			total, rejected, err := validateStream(reg, in, cmd.OutOrStdout(), cmd.ErrOrStderr(), !scalar)
			if err != nil {
				return err
			}
			if rejected > 0 {
				return fmt.Errorf("%w: %d of %d", errRejected, rejected, total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&scalar, "scalar", false, "emit the protocol as a bare name instead of a list")
	return cmd
}

// validateStream validates each JSON value in r. It returns the number of
// payloads seen and rejected; err is set only when the stream itself is
// unreadable.
func validateStream(reg *protocol.Registry, r io.Reader, stdout, stderr io.Writer, asList bool) (total, rejected int, err error) {
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(stdout)

	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return total, rejected, nil
			}
			return total, rejected, fmt.Errorf("reading payload %d: %w", total+1, err)
		}
		total++

		validated, err := validateOne(reg, raw, asList)
		if err != nil {
			rejected++
			reportRejection(stderr, total, err)
			continue
		}
		if err := enc.Encode(validated); err != nil {
			return total, rejected, fmt.Errorf("writing payload %d: %w", total, err)
		}
	}
}

func validateOne(reg *protocol.Registry, raw []byte, asList bool) (protocol.Payload, error) {
	payload, err := gateway.Decode(raw)
	if err != nil {
		return nil, err
	}
	return reg.Validate(payload, asList)
}

func reportRejection(w io.Writer, n int, err error) {
	var schemaErr *protocol.SchemaError
	if !errors.As(err, &schemaErr) {
		fmt.Fprintf(w, "payload %d: %v\n", n, err)
		return
	}
	fmt.Fprintf(w, "payload %d: %s: %d violation(s)\n", n, schemaErr.Protocol, len(schemaErr.Violations))
	for _, v := range schemaErr.Violations {
		fmt.Fprintf(w, "  - %s\n", v)
	}
}
