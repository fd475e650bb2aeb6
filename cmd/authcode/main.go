// Command authcode issues license codes for a device id.
//
//	authcode -device VID_1718000000000_123456 -days 30
//	authcode -device VID_1718000000000_123456 -until 2026-01-01T00:00:00Z
//	authcode -device VID_1718000000000_123456 -longterm
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"vidgrab/internal/license"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "authcode:", err)
		os.Exit(2)
	}
}

func run(args []string, stdout io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("authcode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	device := fs.String("device", "", "device id shown by the app (required)")
	days := fs.Int("days", 30, "grant length in days")
	until := fs.String("until", "", "grant end as RFC 3339; overrides -days")
	longTerm := fs.Bool("longterm", false, "issue a legacy long-term code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *device == "" {
		return errors.New("-device is required")
	}

	issuer := license.NewIssuer()
	if *longTerm {
		code, err := issuer.IssueLongTerm(*device, now)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, code)
		return nil
	}

	expiresAt := now.Add(time.Duration(*days) * 24 * time.Hour)
	if *until != "" {
		t, err := time.Parse(time.RFC3339, *until)
		if err != nil {
			return fmt.Errorf("invalid -until: %w", err)
		}
		expiresAt = t
	}

	code, err := issuer.Issue(*device, now, expiresAt)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, code)
	return nil
}
