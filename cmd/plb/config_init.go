package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gyptazy/plb/internal/config"
)

// newConfigInitCommand bootstraps a config.yaml via interactive prompts,
// adapted from the teacher's bufio/term.ReadPassword credential prompting
// (cmd/migsug/main.go) -- a config-authoring convenience, not a pipeline
// stage, per SPEC_FULL.md section 12.
func newConfigInitCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively generate a plb configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", config.DefaultPath, "path to write the generated config")
	parent := &cobra.Command{Use: "config", Short: "Manage plb configuration"}
	parent.AddCommand(cmd)
	return parent
}

func runConfigInit(cmd *cobra.Command, outPath string) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	host := promptForInput(cmd, reader, "Proxmox host[:port]")
	user := promptForInput(cmd, reader, "Username (blank to use an API token instead)")

	cfg := config.Config{
		ProxmoxAPI: config.ProxmoxAPI{
			Hosts:           []string{host},
			SSLVerification: true,
			Timeout:         30,
			Retries:         3,
			WaitTime:        5,
		},
	}

	if user != "" {
		cfg.ProxmoxAPI.User = user
		cfg.ProxmoxAPI.Pass = promptForPassword(cmd, "Password")
	} else {
		cfg.ProxmoxAPI.TokenID = promptForInput(cmd, reader, "Token ID")
		cfg.ProxmoxAPI.TokenSecret = promptForPassword(cmd, "Token secret")
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", outPath)
	return nil
}

func promptForInput(cmd *cobra.Command, reader *bufio.Reader, label string) string {
	cmd.Printf("%s: ", label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptForPassword(cmd *cobra.Command, label string) string {
	cmd.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}
	bytes, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return ""
	}
	return string(bytes)
}
