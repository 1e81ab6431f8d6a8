package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"devicemail/internal/config"
	"devicemail/internal/db"
	"devicemail/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	dbc := config.LoadDatabase()
	gdb, err := db.OpenGorm(db.Config{Driver: dbc.Driver, DSN: dbc.URL, LogSQL: dbc.LogSQL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}

	err = run(context.Background(), store.New(gdb), os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options] <username>\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  promote    Mark a user as staff (-superuser for superuser)")
	fmt.Fprintln(os.Stderr, "  demote     Clear a user's staff and superuser flags")
	os.Exit(2)
}

var errUsage = errors.New("usage")

func run(ctx context.Context, st *store.Store, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "promote":
		return runPromote(ctx, st, args[1:], out)
	case "demote":
		return runDemote(ctx, st, args[1:], out)
	default:
		return errUsage
	}
}

func runPromote(ctx context.Context, st *store.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	superuser := fs.Bool("superuser", false, "grant superuser as well as staff")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	username, err := singleUsername(fs)
	if err != nil {
		return err
	}
	if err := setPrivileges(ctx, st, username, true, *superuser); err != nil {
		return err
	}
	role := "staff"
	if *superuser {
		role = "superuser"
	}
	fmt.Fprintf(out, "%s is now %s\n", username, role)
	return nil
}

func runDemote(ctx context.Context, st *store.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("demote", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("demote: %w", err)
	}
	username, err := singleUsername(fs)
	if err != nil {
		return err
	}
	if err := setPrivileges(ctx, st, username, false, false); err != nil {
		return err
	}
	// Devices created while elevated keep their write capability.
	fmt.Fprintf(out, "%s is no longer an administrator; existing device capabilities are unchanged\n", username)
	return nil
}

func singleUsername(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", errUsage
	}
	return strings.TrimSpace(fs.Arg(0)), nil
}

func setPrivileges(ctx context.Context, st *store.Store, username string, staff, superuser bool) error {
	u, err := st.Users().GetByUsername(ctx, username)
	if errors.Is(err, store.ErrRecordNotFound) {
		return fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return err
	}
	return st.Users().SetPrivileges(ctx, u.ID, staff, superuser)
}
