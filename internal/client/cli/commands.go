package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/secretvault/internal/client/gallery"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/client/session"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/filex"
	"github.com/dmitrijs2005/secretvault/internal/metrics"
)

func (a *App) hasSession() bool { return a.manager.Current() != nil }

func (a *App) session() (*session.Session, error) {
	s := a.manager.Current()
	if s == nil {
		return nil, common.ErrNoSession
	}
	return s, nil
}

func (a *App) UseLocal(ctx context.Context) error {
	s, err := a.manager.StartLocal(ctx)
	if err != nil {
		return err
	}
	a.printf("Local session started, %d records on this device\n", s.Count())
	return nil
}

// UseCloud selects the remote backend and signs in.
func (a *App) UseCloud(ctx context.Context) error {
	if err := a.manager.Choose(models.BackendRemote); err != nil {
		return err
	}
	return a.Login(ctx)
}

func (a *App) readCredentials(withName bool) (models.Credentials, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	var name string
	if withName {
		name, err = getSimpleText(a.reader, "Enter display name (optional)", a.out)
		if err != nil {
			return models.Credentials{}, err
		}
	}
	password, err := getPassword(a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{Email: email, DisplayName: name, Password: password}, nil
}

// Login signs in, creating the account when it does not exist yet.
func (a *App) Login(ctx context.Context) error {
	creds, err := a.readCredentials(false)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(creds.Password)

	s, err := a.manager.SignInOrSignUp(ctx, creds)
	if err != nil {
		return describeAuthError(err)
	}
	a.printf("Signed in as %s, %d records\n", s.Identity().Email, s.Count())
	return nil
}

func (a *App) Register(ctx context.Context) error {
	creds, err := a.readCredentials(true)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(creds.Password)

	s, err := a.manager.SignUp(ctx, creds)
	if err != nil {
		return describeAuthError(err)
	}
	a.printf("Account created for %s\n", s.Identity().Email)
	return nil
}

func describeAuthError(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return errors.New("wrong email or password")
	case errors.Is(err, common.ErrAlreadyInUse):
		return errors.New("an account with this email already exists")
	case errors.Is(err, common.ErrWeakSecret):
		return fmt.Errorf("password too weak: %w", err)
	}
	return err
}

func (a *App) Upload(ctx context.Context, paths []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}

	files := make([]models.SourceFile, 0, len(paths))
	for _, p := range paths {
		f, err := readSourceFile(p, a.config.MaxUploadBytes)
		if errors.Is(err, common.ErrTooLarge) {
			metrics.RecordRejection(common.ErrTooLarge.Error())
			a.printf("failed   %v\n", err)
			continue
		}
		if err != nil {
			a.printf("skipped %s: %v\n", p, err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil
	}

	report, err := s.UploadFiles(ctx, files)
	if err != nil {
		return err
	}
	for _, o := range report.Outcomes {
		switch {
		case o.Err == nil:
			a.printf("stored   %s (%.1f MB)\n", o.Name, o.Record.SizeMB())
		case errors.Is(o.Err, common.ErrMetadataWriteFailed):
			a.printf("orphaned %s: %v (see 'orphans')\n", o.Name, o.Err)
		default:
			a.printf("failed   %s: %v\n", o.Name, o.Err)
		}
	}
	a.printf("%d of %d stored\n", report.Stored(), len(report.Outcomes))
	return nil
}

func (a *App) List(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	recs := s.Records()
	if len(recs) == 0 {
		a.println("No photos yet")
		return nil
	}

	a.outMu.Lock()
	defer a.outMu.Unlock()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSEL\tNAME\tSIZE\tCREATED\tID")
	for i, r := range recs {
		sel := ""
		if s.Gallery().IsSelected(r.ID) {
			sel = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f MB\t%s\t%s\n", i+1, sel, r.Name, r.SizeMB(), r.CreatedAt.Local().Format(time.DateTime), r.ID)
	}
	fmt.Fprintf(tw, "\t\t%s\n", s.CounterLabel())
	return tw.Flush()
}

func (a *App) Sort(ctx context.Context, args []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	key, err := gallery.ParseSortKey(strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	if err := s.SortBy(key); err != nil {
		return err
	}
	return a.List(ctx)
}

// resolve maps a 1-based list position or a record id onto a record id.
func resolve(s *session.Session, ref string) (string, error) {
	recs := s.Records()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(recs) {
			return "", fmt.Errorf("no record #%d", n)
		}
		return recs[n-1].ID, nil
	}
	if _, ok := s.Gallery().Get(ref); !ok {
		return "", fmt.Errorf("record %s: %w", ref, common.ErrNotFound)
	}
	return ref, nil
}

func (a *App) Select(_ context.Context, args []string) error {
	return a.eachRef(args, func(s *session.Session, id string) { s.Gallery().Select(id) })
}

func (a *App) Deselect(_ context.Context, args []string) error {
	return a.eachRef(args, func(s *session.Session, id string) { s.Gallery().Deselect(id) })
}

func (a *App) eachRef(args []string, fn func(*session.Session, string)) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	for _, ref := range args {
		id, err := resolve(s, ref)
		if err != nil {
			a.printf("skipped %s: %v\n", ref, err)
			continue
		}
		fn(s, id)
	}
	a.printf("%d selected\n", len(s.Gallery().Selected()))
	return nil
}

func (a *App) SelectAll(context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	s.Gallery().SelectAll()
	a.printf("%d selected\n", len(s.Gallery().Selected()))
	return nil
}

func (a *App) ClearSelection(context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	s.Gallery().ClearSelection()
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	id, err := resolve(s, args[0])
	if err != nil {
		return err
	}
	if err := s.DeleteRecord(ctx, id); err != nil {
		return err
	}
	a.println("Deleted")
	return nil
}

func (a *App) DeleteSelected(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	if len(s.Gallery().Selected()) == 0 {
		a.println("Nothing selected")
		return nil
	}
	report, err := s.DeleteSelected(ctx)
	if err != nil {
		return err
	}
	a.printDeleteReport(report)
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	if !Confirm(a.reader, "Delete ALL photos?", a.out) {
		a.println("Cancelled")
		return nil
	}
	report, err := s.DeleteAll(ctx)
	if err != nil {
		return err
	}
	a.printDeleteReport(report)
	return nil
}

func (a *App) printDeleteReport(r session.DeleteReport) {
	for _, f := range r.Failed {
		a.printf("failed %s: %v\n", f.Record.Name, f.Err)
	}
	a.printf("%d deleted, %d failed\n", len(r.Deleted), len(r.Failed))
}

func (a *App) Download(ctx context.Context, args []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	id, err := resolve(s, args[0])
	if err != nil {
		return err
	}
	rec, data, err := s.Download(ctx, id)
	if err != nil {
		return err
	}
	dir, err := filex.EnsureSubdDir(a.config.DownloadDir)
	if err != nil {
		return err
	}
	path, err := filex.WriteUnique(dir, rec.Name, data)
	if err != nil {
		return err
	}
	a.printf("Saved %s\n", path)
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	p, err := s.LoadProfile(ctx)
	if err != nil {
		return err
	}
	a.printf("Name:    %s\nEmail:   %s\nStorage: %s\n", p.Username, p.Email, p.StorageType)
	if p.ProfilePicURL != "" {
		a.printf("Picture: %s\n", p.ProfilePicURL)
	}
	if !p.CreatedAt.IsZero() {
		a.printf("Since:   %s\n", p.CreatedAt.Local().Format(time.DateOnly))
	}
	return nil
}

func (a *App) ProfilePic(ctx context.Context, args []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	f, err := readSourceFile(args[0], a.config.MaxProfileBytes)
	if err != nil {
		return err
	}
	url, err := s.UpdateProfilePhoto(ctx, f)
	if err != nil {
		return err
	}
	a.printf("Profile picture updated: %s\n", url)
	return nil
}

func (a *App) Orphans(context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	orphans := s.Orphans()
	if len(orphans) == 0 {
		a.println("No orphaned uploads")
		return nil
	}
	for _, o := range orphans {
		a.printf("%s  %s (%.1f MB)\n", o.StoragePath, o.Name, models.SizeMB(o.Size))
	}
	a.println("Use 'retry' to write their metadata again or 'purge' to delete them")
	return nil
}

func (a *App) Retry(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	n, err := s.RetryOrphans(ctx)
	a.printf("%d recovered\n", n)
	return err
}

func (a *App) Purge(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	n, err := s.PurgeOrphans(ctx)
	a.printf("%d purged\n", n)
	return err
}

func (a *App) Refresh(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	a.println(s.CounterLabel())
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.manager.SignOut(ctx); err != nil {
		return err
	}
	a.println("Signed out")
	return nil
}

func (a *App) DeleteAccount(ctx context.Context) error {
	if !Confirm(a.reader, "Delete your account and every photo?", a.out) {
		a.println("Cancelled")
		return nil
	}
	if err := a.manager.DeleteAccount(ctx); err != nil {
		return err
	}
	a.println("Account deleted")
	return nil
}
