package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// decodedToken is the JSON printed by decode.
type decodedToken struct {
	Header      map[string]any `json:"header"`
	Claims      map[string]any `json:"claims"`
	Fingerprint string         `json:"fingerprint"`
}

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [token|-]",
		Short: "Print a token's header and claims without verifying it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArgOrStdin(cmd, args)
			if err != nil {
				return err
			}
			tok, err := token.Decode(raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), decodedToken{
				Header:      tok.Headers(),
				Claims:      tok.Claims(),
				Fingerprint: tok.Fingerprint(),
			})
		},
	}
}

// readArgOrStdin returns the first argument, or standard input when there
// is none or it is "-".
func readArgOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", sserr.Wrap(err, sserr.CodeInternal, "jwtcheck: cannot read standard input")
	}
	return strings.TrimSpace(string(b)), nil
}

// readFileArg reads a file, or standard input for "-".
func readFileArg(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		return readArgOrStdin(cmd, nil)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", sserr.Wrapf(err, sserr.CodeConfiguration, "jwtcheck: cannot read %q", path)
	}
	return string(b), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
