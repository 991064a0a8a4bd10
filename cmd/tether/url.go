package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"pkt.systems/tether/internal/appconfig"
)

func newURLCmd() *cobra.Command {
	var cfgPath string
	var noQR bool
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the remote access URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.HTTP.SecurityToken) == "" {
				return errors.New("no security_token configured, run tether bootstrap first")
			}
			url, err := accessURL(cfg.HTTP.Addr, cfg.HTTP.SecurityToken, lanHost())
			if err != nil {
				return err
			}
			printAccessURL(cmd.OutOrStdout(), url, !noQR)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "do not render a QR code")
	return cmd
}

// accessURL builds http://host:port/token/ for a listen address. Wildcard
// listen hosts are replaced by fallbackHost.
func accessURL(addr, token, fallbackHost string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = fallbackHost
	}
	if host == "" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/" + token + "/", nil
}

// lanHost returns the first non-loopback IPv4 address, or localhost.
func lanHost() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String()
		}
	}
	return "localhost"
}

func printAccessURL(w io.Writer, url string, qr bool) {
	_, _ = fmt.Fprintf(w, "remote access: %s\n", url)
	if qr {
		qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
	}
}
