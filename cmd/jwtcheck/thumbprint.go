package main

import (
	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
)

type certificateInfo struct {
	Thumbprint string            `json:"x5t#S256"`
	Subject    map[string]string `json:"subject"`
	Issuer     map[string]string `json:"issuer"`
}

func thumbprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thumbprint <cert-file|->",
		Short: "Print the x5t#S256 thumbprint and names of a client certificate",
		Long:  "The certificate may be PEM, base64 DER or an x-forwarded-client-cert value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readFileArg(cmd, args[0])
			if err != nil {
				return err
			}
			c, err := cert.Parse(raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), certificateInfo{
				Thumbprint: c.Thumbprint(),
				Subject:    c.SubjectDN(),
				Issuer:     c.IssuerDN(),
			})
		},
	}
}
