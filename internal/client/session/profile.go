package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/dmitrijs2005/secretvault/internal/client/docstore"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
)

const (
	usersCollection = "users"

	profileContentType = "image/jpeg"
	profileJPEGQuality = 85
)

// UserDoc is the path of uid's profile document.
func UserDoc(uid string) string { return docstore.Path(usersCollection, uid) }

// ProfilePicturePath is the object path of uid's profile picture.
func ProfilePicturePath(uid string) string {
	return docstore.Path(usersCollection, uid, "profile", "picture.jpg")
}

// writeProfile merges the identity into the user document. Failures are
// logged only: the session works without a profile.
func (m *Manager) writeProfile(ctx context.Context, id models.Identity, created bool) {
	if m.deps.Docs == nil {
		return
	}
	fields := docstore.Fields{
		"username":    id.DisplayName,
		"email":       id.Email,
		"storageType": string(models.BackendRemote),
	}
	if created {
		fields["createdAt"] = m.now().UTC()
	}
	if err := m.deps.Docs.Update(ctx, UserDoc(id.UID), fields); err != nil {
		m.log.Warn(ctx, "profile not saved", "uid", id.UID, "err", err)
	}
}

// LoadProfile reads the user's profile. Local sessions get one built from
// the pseudo-identity.
func (s *Session) LoadProfile(ctx context.Context) (models.Profile, error) {
	if err := s.lock(); err != nil {
		return models.Profile{}, err
	}
	defer s.unlock()

	fallback := models.Profile{
		Username:    s.identity.DisplayName,
		Email:       s.identity.Email,
		StorageType: s.backend,
	}
	if s.backend != models.BackendRemote || s.m.deps.Docs == nil {
		return fallback, nil
	}

	doc, err := s.m.deps.Docs.Get(ctx, UserDoc(s.uid))
	if errors.Is(err, common.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile %s: %w", s.uid, err)
	}

	p := models.Profile{
		Username:      doc.Fields.String("username"),
		Email:         doc.Fields.String("email"),
		ProfilePicURL: doc.Fields.String("profilePicUrl"),
		StorageType:   models.Backend(doc.Fields.String("storageType")),
		CreatedAt:     doc.Fields.Time("createdAt"),
	}
	if p.Username == "" {
		p.Username = fallback.Username
	}
	if p.Email == "" {
		p.Email = fallback.Email
	}
	if p.StorageType == "" {
		p.StorageType = s.backend
	}
	return p, nil
}

// UpdateProfilePhoto validates f against the profile policy, crops it to a
// square JPEG, stores it and records its URL on the user document. Only
// remote sessions have a profile photo.
func (s *Session) UpdateProfilePhoto(ctx context.Context, f models.SourceFile) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.unlock()

	objects, docs := s.m.deps.Objects, s.m.deps.Docs
	if s.backend != models.BackendRemote || objects == nil || docs == nil {
		return "", fmt.Errorf("profile photo: %w", common.ErrBackendUnavailable)
	}

	kind, err := s.m.cfg.Profile.Validate(f)
	if err != nil {
		return "", err
	}
	if kind != models.KindImage {
		return "", &common.ValidationError{Name: f.Name, Reason: common.ErrWrongType, ContentType: f.ContentType}
	}

	data, err := squareJPEG(f.Data, s.m.cfg.ProfileSize)
	if err != nil {
		return "", &common.ValidationError{Name: f.Name, Reason: common.ErrWrongType, ContentType: f.ContentType}
	}

	path := ProfilePicturePath(s.uid)
	ref, err := objects.Upload(ctx, path, profileContentType, data)
	if err != nil {
		return "", common.NewStorageError(common.ErrUploadFailed, path, err)
	}
	url, err := objects.URL(ctx, ref)
	if err != nil {
		return "", common.NewStorageError(common.ErrMetadataWriteFailed, path, err)
	}
	if err := docs.Update(ctx, UserDoc(s.uid), docstore.Fields{"profilePicUrl": url}); err != nil {
		return "", common.NewStorageError(common.ErrMetadataWriteFailed, path, err)
	}

	s.log.Info(ctx, "profile photo updated", "path", path)
	return url, nil
}

// squareJPEG decodes an image, honouring EXIF orientation, and center-crops
// it to size x size.
func squareJPEG(data []byte, size int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(profileJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
