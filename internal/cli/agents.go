// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/agents"
)

func newAgentsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage support agent accounts",
	}
	cmd.AddCommand(
		newAgentsListCommand(opts),
		newHashPasswordCommand(opts),
		newTOTPSecretCommand(opts),
	)
	return cmd
}

// AgentSummary is the listing view of a configured account.
type AgentSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	MFA         bool   `json:"mfa"`
}

func newAgentsListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the agent accounts in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			list := make([]AgentSummary, 0, len(cfg.Agents.Accounts))
			for _, a := range cfg.Agents.Accounts {
				role := a.Role
				if role == "" {
					role = agents.RoleSupport
				}
				list = append(list, AgentSummary{
					ID:          a.ID,
					Username:    a.Username,
					DisplayName: a.DisplayName,
					Role:        role,
					MFA:         a.TOTPSecret != "",
				})
			}
			return opts.printResult(cmd.OutOrStdout(), "agents list", list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No agent accounts configured.")
					return
				}
				for _, a := range list {
					mfa := ""
					if a.MFA {
						mfa = DimStyle.Render(" (mfa)")
					}
					fmt.Fprintf(w, "%s %s [%s]%s\n", RenderLabel(a.ID), a.Username, a.Role, mfa)
				}
			})
		},
	}
}

func newHashPasswordCommand(opts *Options) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for an agent password_hash entry",
		Long: `Hash a password for [[agents.accounts]] in the config file. The
password is read from the terminal without echo, or from the first line
of stdin with --stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				password string
				err      error
			)
			if fromStdin {
				password, err = readLine(cmd.InOrStdin())
			} else {
				password, err = readSecret("Password: ")
			}
			if err != nil {
				return err
			}
			if password == "" {
				return NewValidationError("password", "", "must not be empty")
			}

			hash, err := agents.HashPassword(password)
			if err != nil {
				return NewCommandError("agents", "hash-password", "bcrypt failed", err)
			}
			return opts.printResult(cmd.OutOrStdout(), "agents hash-password",
				map[string]string{"password_hash": hash},
				func(w io.Writer) { fmt.Fprintln(w, hash) })
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from stdin")
	return cmd
}

func newTOTPSecretCommand(opts *Options) *cobra.Command {
	var issuer string

	cmd := &cobra.Command{
		Use:   "totp-secret <username>",
		Short: "Generate a one-time-code secret for an agent account",
		Long: `Generate a TOTP secret for an agent. Put the secret in the account's
totp_secret field and load the otpauth URL into an authenticator app.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := totp.Generate(totp.GenerateOpts{
				Issuer:      issuer,
				AccountName: args[0],
			})
			if err != nil {
				return NewCommandError("agents", "totp-secret", "key generation failed", err)
			}
			data := map[string]string{"secret": key.Secret(), "url": key.URL()}
			return opts.printResult(cmd.OutOrStdout(), "agents totp-secret", data, func(w io.Writer) {
				fmt.Fprintln(w, RenderField("Secret", key.Secret()))
				fmt.Fprintln(w, RenderField("URL", key.URL()))
			})
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "webwibe", "issuer shown in authenticator apps")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
