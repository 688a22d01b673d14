package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/pkg/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	server  string
	token   string
	timeout time.Duration
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "revocationctl",
		Short:         "Submit and inspect credential revocations",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("REVOCATION_SERVER", "http://localhost:8080"), "revocation service base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("REVOCATION_TOKEN"), "admin bearer token for submissions")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "per-request timeout")

	root.AddCommand(newSubmitCommand(g), newQueryCommand(g), newWatchCommand(g))
	return root
}

func (g *globalFlags) client() (*client.Client, error) {
	opts := []client.Option{}
	if g.token != "" {
		opts = append(opts, client.WithBearerToken(g.token))
	}
	return client.New(g.server, opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSubmitCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Revoke a token, a user's password or a client",
	}

	submit := func(cmd *cobra.Command, sub client.Submission) error {
		c, err := g.client()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
		defer cancel()
		rec, err := c.Submit(ctx, sub)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	}

	var hash, algorithm string
	token := &cobra.Command{
		Use:   "token",
		Short: "Revoke a single token by its hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submit(cmd, client.Submission{Type: "TOKEN", Data: client.TokenData{TokenHash: hash, HashAlgorithm: algorithm}})
		},
	}
	token.Flags().StringVar(&hash, "hash", "", "token hash")
	token.Flags().StringVar(&algorithm, "algorithm", "", "hash algorithm (default SHA-256)")
	_ = token.MarkFlagRequired("hash")

	var username string
	var pwBefore int64
	password := &cobra.Command{
		Use:   "password",
		Short: "Revoke every token issued to a user before a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submit(cmd, client.Submission{Type: "PASSWORD", Data: client.PasswordData{Username: username, IssuedBefore: pwBefore}})
		},
	}
	password.Flags().StringVar(&username, "username", "", "user name")
	password.Flags().Int64Var(&pwBefore, "issued-before", 0, "cutoff in epoch seconds (default now)")
	_ = password.MarkFlagRequired("username")

	var clientID string
	var clBefore int64
	cl := &cobra.Command{
		Use:   "client",
		Short: "Revoke every token issued to a client before a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submit(cmd, client.Submission{Type: "CLIENT", Data: client.ClientData{ClientID: clientID, IssuedBefore: clBefore}})
		},
	}
	cl.Flags().StringVar(&clientID, "client-id", "", "client id")
	cl.Flags().Int64Var(&clBefore, "issued-before", 0, "cutoff in epoch seconds (default now)")
	_ = cl.MarkFlagRequired("client-id")

	cmd.AddCommand(token, password, cl)
	return cmd
}

func newQueryCommand(g *globalFlags) *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List revocations at or after a watermark",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			res, err := c.Query(ctx, since)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"meta":        map[string]int64{"server_time": res.ServerTime},
				"revocations": res.Revocations,
			})
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "watermark in epoch seconds")
	_ = cmd.MarkFlagRequired("since")
	return cmd
}

func newWatchCommand(g *globalFlags) *cobra.Command {
	var (
		since    int64
		interval time.Duration
		overlap  time.Duration
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new revocations and print them as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
				defer logger.Sync()
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			p := client.NewPoller(c, since, func(_ context.Context, recs []client.Record) error {
				for _, r := range recs {
					if err := out.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}, client.PollerOptions{Interval: interval, Overlap: overlap, Logger: logger})

			if err := p.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "stopped at watermark %d\n", p.Watermark())
			return nil
		},
	}
	cmd.Flags().Int64Var(&since, "since", time.Now().Unix(), "starting watermark in epoch seconds")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "poll interval")
	cmd.Flags().DurationVar(&overlap, "overlap", 30*time.Second, "re-read window for late records")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log poll results to stderr")
	return cmd
}
