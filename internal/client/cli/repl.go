package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App implements it;
// tests use a stub.
type execIface interface {
	hasSession() bool
	UseLocal(ctx context.Context) error
	UseCloud(ctx context.Context) error
	Login(ctx context.Context) error
	Register(ctx context.Context) error
	Upload(ctx context.Context, paths []string) error
	List(ctx context.Context) error
	Sort(ctx context.Context, args []string) error
	Select(ctx context.Context, args []string) error
	Deselect(ctx context.Context, args []string) error
	SelectAll(ctx context.Context) error
	ClearSelection(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	DeleteSelected(ctx context.Context) error
	Clear(ctx context.Context) error
	Download(ctx context.Context, args []string) error
	Profile(ctx context.Context) error
	ProfilePic(ctx context.Context, args []string) error
	Orphans(ctx context.Context) error
	Retry(ctx context.Context) error
	Purge(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: local, cloud, login, register, exit"
	helpSignedIn  = "Available commands: upload <files>, (l)ist, sort name|date|size, select|deselect <n>..., " +
		"selectall, clearsel, delete <n>, deletesel, clear, download <n>, refresh, profile, profilepic <file>, " +
		"orphans, retry, purge, logout, deleteaccount, exit"
)

var errUsage = errors.New("usage")

// runREPL reads commands line by line from reader and dispatches them to a.
// It returns on EOF or on "exit" / "quit". Command errors are printed and
// the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("sv %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		if err := dispatch(ctx, a, cmd, args); err != nil {
			if errors.Is(err, errUsage) {
				printlnFn(err.Error())
			} else {
				printlnFn("error:", err)
			}
		}
	}
}

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.hasSession() {
			printlnFn(helpSignedIn)
		} else {
			printlnFn(helpSignedOut)
		}
		return nil
	case "local":
		return a.UseLocal(ctx)
	case "cloud":
		return a.UseCloud(ctx)
	case "login":
		return a.Login(ctx)
	case "register":
		return a.Register(ctx)
	}

	if !a.hasSession() {
		if isSessionCommand(cmd) {
			printlnFn("Start a session first: local, cloud or login")
			return nil
		}
		printlnFn("Unknown command:", cmd)
		return nil
	}

	switch cmd {
	case "upload":
		if len(args) == 0 {
			return usage("upload <file>...")
		}
		return a.Upload(ctx, args)
	case "l", "list":
		return a.List(ctx)
	case "sort":
		if len(args) != 1 {
			return usage("sort name|date|size")
		}
		return a.Sort(ctx, args)
	case "select":
		if len(args) == 0 {
			return usage("select <n|id>...")
		}
		return a.Select(ctx, args)
	case "deselect":
		if len(args) == 0 {
			return usage("deselect <n|id>...")
		}
		return a.Deselect(ctx, args)
	case "selectall":
		return a.SelectAll(ctx)
	case "clearsel":
		return a.ClearSelection(ctx)
	case "delete":
		if len(args) != 1 {
			return usage("delete <n|id>")
		}
		return a.Delete(ctx, args)
	case "deletesel":
		return a.DeleteSelected(ctx)
	case "clear":
		return a.Clear(ctx)
	case "download":
		if len(args) != 1 {
			return usage("download <n|id>")
		}
		return a.Download(ctx, args)
	case "profile":
		return a.Profile(ctx)
	case "profilepic":
		if len(args) != 1 {
			return usage("profilepic <file>")
		}
		return a.ProfilePic(ctx, args)
	case "orphans":
		return a.Orphans(ctx)
	case "retry":
		return a.Retry(ctx)
	case "purge":
		return a.Purge(ctx)
	case "refresh":
		return a.Refresh(ctx)
	case "logout":
		return a.Logout(ctx)
	case "deleteaccount":
		return a.DeleteAccount(ctx)
	}
	printlnFn("Unknown command:", cmd)
	return nil
}

func isSessionCommand(cmd string) bool {
	switch cmd {
	case "upload", "l", "list", "sort", "select", "deselect", "selectall", "clearsel", "delete",
		"deletesel", "clear", "download", "profile", "profilepic", "orphans", "retry", "purge",
		"refresh", "logout", "deleteaccount":
		return true
	}
	return false
}
