package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/minecraftim/go-oscar/lib/config"
	"github.com/minecraftim/go-oscar/lib/session"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRelayCmd() *cobra.Command {
	var sendTo string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Sign on and send each line of stdin as an IM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitConfig(); err != nil {
				return err
			}
			cfg := config.CurrentConfig()
			if sendTo != "" {
				cfg.Oscar.SendTo = sendTo
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Oscar.SendTo == "" {
				return oops.Errorf("oscar.send_to is empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sendTo, "to", "", "screen name to relay to (overrides oscar.send_to)")
	return cmd
}

func sessionConfig(cfg *config.Config) session.Config {
	o := cfg.Oscar
	return session.Config{
		LoginHost:         o.LoginHost,
		LoginPort:         o.LoginPort,
		Screenname:        o.Screenname,
		Password:          o.Password,
		Client:            o.Client.ClientInfo(),
		RequestTTL:        o.RequestTTL,
		KeepaliveInterval: o.KeepaliveInterval,
		ConnectTimeout:    o.ConnectTimeout,
		RateLimit:         o.RateLimit,
	}
}

// runRelay signs on, sends every non-empty line of in to the send_to
// screen name and prints incoming IMs to out. It returns when in ends, ctx
// is cancelled or the session ends.
func runRelay(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	s := session.New(sessionConfig(cfg), session.Handlers{
		OnIM: func(im *icbm.RecvIm) {
			text, err := im.Message.Text()
			if err != nil {
				text = fmt.Sprintf("<undecodable: %v>", err)
			}
			fmt.Fprintf(out, "%s: %s\n", im.Sender.Screenname, text)
		},
	})

	loginCtx, cancel := context.WithTimeout(ctx, cfg.Oscar.ConnectTimeout)
	err := s.Login(loginCtx)
	cancel()
	if err != nil {
		s.Close()
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer s.Close()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if line = strings.TrimSpace(line); line == "" {
					continue
				}
				if err := s.SendIM(gctx, cfg.Oscar.SendTo, line); err != nil {
					return oops.Wrapf(err, "relay to %s", cfg.Oscar.SendTo)
				}
			case <-s.Done():
				return s.Err()
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(s.Wait)
	return g.Wait()
}
