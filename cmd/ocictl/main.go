// Command ocictl is a small command-line client for exercising an OCI
// session: connecting, issuing a raw command by type tag, and listing
// the commands a build of this client knows how to speak.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"brdwrks.dev/oci"
	"brdwrks.dev/oci/commands"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "raw-command":
		err = runRawCommand(os.Args[2:])
	case "registry":
		err = runRegistry(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "ocictl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  ocictl raw-command -host H -user U -password P [-port N] [-no-tls] <typeTag> [field=value ...]
  ocictl registry`)
}

func runRawCommand(args []string) error {
	fs := flag.NewFlagSet("raw-command", flag.ExitOnError)
	host := fs.String("host", "", "OCI server host")
	port := fs.Int("port", oci.DefaultPort, "OCI server port")
	user := fs.String("user", "", "login user id")
	password := fs.String("password", "", "login password")
	noTLS := fs.Bool("no-tls", false, "connect without TLS")
	insecure := fs.Bool("insecure-skip-verify", false, "skip TLS certificate verification")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if *host == "" || *user == "" || len(rest) == 0 {
		return fmt.Errorf("raw-command requires -host, -user and a type tag")
	}
	typeTag := rest[0]

	fields, err := parseFields(rest[1:])
	if err != nil {
		return err
	}

	var tlsConfig *tls.Config
	if !*noTLS {
		tlsConfig = &tls.Config{InsecureSkipVerify: *insecure} //nolint:gosec // operator opt-in via -insecure-skip-verify
	}

	ctx := context.Background()
	sess, err := oci.Dial(ctx, *host, *port, *user, *password, tlsConfig)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer func() { _ = sess.Close() }()

	resp, err := sess.RawCommand(ctx, typeTag, fields)
	if err != nil {
		return fmt.Errorf("dispatching %s: %w", typeTag, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// parseFields turns a list of "name=value" arguments into the dict
// RawCommand expects.
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("field %q must be name=value", arg)
		}
		fields[name] = value
	}
	return fields, nil
}

func runRegistry(args []string) error {
	fs := flag.NewFlagSet("registry", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := commands.Default()
	tags := reg.Tags()
	for _, tag := range tags {
		d, err := reg.ByTag(tag)
		if err != nil {
			return err
		}
		fmt.Printf("%-42s %-16s %d field(s)\n", d.Tag, d.Kind, len(d.Fields))
	}
	return nil
}
