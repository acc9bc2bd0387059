package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	session bool
	failOn  string

	calls []string
	args  [][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	if name == f.failOn {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeExec) hasSession() bool { return f.session }
func (f *fakeExec) UseLocal(context.Context) error {
	f.session = true
	return f.record("local", nil)
}
func (f *fakeExec) UseCloud(context.Context) error {
	f.session = true
	return f.record("cloud", nil)
}
func (f *fakeExec) Login(context.Context) error {
	f.session = true
	return f.record("login", nil)
}
func (f *fakeExec) Register(context.Context) error { return f.record("register", nil) }
func (f *fakeExec) Upload(_ context.Context, a []string) error {
	return f.record("upload", a)
}
func (f *fakeExec) List(context.Context) error { return f.record("list", nil) }
func (f *fakeExec) Sort(_ context.Context, a []string) error {
	return f.record("sort", a)
}
func (f *fakeExec) Select(_ context.Context, a []string) error {
	return f.record("select", a)
}
func (f *fakeExec) Deselect(_ context.Context, a []string) error {
	return f.record("deselect", a)
}
func (f *fakeExec) SelectAll(context.Context) error      { return f.record("selectall", nil) }
func (f *fakeExec) ClearSelection(context.Context) error { return f.record("clearsel", nil) }
func (f *fakeExec) Delete(_ context.Context, a []string) error {
	return f.record("delete", a)
}
func (f *fakeExec) DeleteSelected(context.Context) error { return f.record("deletesel", nil) }
func (f *fakeExec) Clear(context.Context) error          { return f.record("clear", nil) }
func (f *fakeExec) Download(_ context.Context, a []string) error {
	return f.record("download", a)
}
func (f *fakeExec) Profile(context.Context) error { return f.record("profile", nil) }
func (f *fakeExec) ProfilePic(_ context.Context, a []string) error {
	return f.record("profilepic", a)
}
func (f *fakeExec) Orphans(context.Context) error { return f.record("orphans", nil) }
func (f *fakeExec) Retry(context.Context) error   { return f.record("retry", nil) }
func (f *fakeExec) Purge(context.Context) error   { return f.record("purge", nil) }
func (f *fakeExec) Refresh(context.Context) error { return f.record("refresh", nil) }
func (f *fakeExec) Logout(context.Context) error {
	f.session = false
	return f.record("logout", nil)
}
func (f *fakeExec) DeleteAccount(context.Context) error { return f.record("deleteaccount", nil) }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_SessionFlow(t *testing.T) {
	out := captureOutput(t)

	input := rdr(strings.Join([]string{
		"help",
		"list",
		"local",
		"help",
		"upload a.png b.png",
		"l",
		"sort size",
		"select 1 2",
		"deletesel",
		"download 1",
		"foobar",
		"logout",
		"exit",
		"list",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, input)

	assert.Equal(t, []string{"local", "upload", "list", "sort", "select", "deletesel", "download", "logout"}, exec.calls)
	assert.Equal(t, []string{"a.png", "b.png"}, exec.args[1])
	assert.Equal(t, []string{"1", "2"}, exec.args[4])

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, helpSignedOut)
	assert.Contains(t, joined, helpSignedIn)
	assert.Contains(t, joined, "Start a session first")
	assert.Contains(t, joined, "Unknown command: foobar")
	assert.Contains(t, joined, "Bye!")
}

func TestRunREPL_UsageAndErrors(t *testing.T) {
	out := captureOutput(t)

	input := rdr("upload\nsort\ndelete 1 2\nrefresh\nquit\n")
	exec := &fakeExec{session: true, failOn: "refresh"}

	runREPL(context.Background(), exec, func() string { return "s" }, input)

	assert.Equal(t, []string{"refresh"}, exec.calls)
	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "usage: upload <file>...")
	assert.Contains(t, joined, "usage: sort name|date|size")
	assert.Contains(t, joined, "usage: delete <n|id>")
	assert.Contains(t, joined, "error: refresh failed")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	captureOutput(t)
	exec := &fakeExec{session: true}

	runREPL(context.Background(), exec, func() string { return "" }, rdr("list"))

	assert.Equal(t, []string{"list"}, exec.calls)
}
