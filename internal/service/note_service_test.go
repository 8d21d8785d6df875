package service

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"
	"smart-notes-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNoteRepo struct {
	notes map[string]*domain.Note
	now   time.Time
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{
		notes: make(map[string]*domain.Note),
	}
}

func (m *mockNoteRepo) tick() time.Time {
	m.now = m.now.Add(time.Second)
	if now := time.Now().UTC(); now.After(m.now) {
		m.now = now
	}
	return m.now
}

func (m *mockNoteRepo) Create(_ context.Context, note *domain.Note) error {
	c := *note
	m.notes[note.ID] = &c
	return nil
}

func (m *mockNoteRepo) FindByID(_ context.Context, id string) (*domain.Note, error) {
	if n, exists := m.notes[id]; exists {
		c := *n
		c.Tags = slices.Clone(n.Tags)
		return &c, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *mockNoteRepo) List(_ context.Context, userID string) ([]*domain.Note, error) {
	var notes []*domain.Note
	for _, n := range m.notes {
		if n.UserID == userID {
			c := *n
			notes = append(notes, &c)
		}
	}
	repository.SortNotes(notes)
	return notes, nil
}

func (m *mockNoteRepo) Update(_ context.Context, note *domain.Note) error {
	n, exists := m.notes[note.ID]
	if !exists {
		return apperr.ErrNotFound
	}
	if n.IsEncrypted != note.IsEncrypted {
		return apperr.ErrConflict
	}
	if note.IsEncrypted {
		if *n.PasswordHash != *note.PasswordHash {
			return apperr.ErrConflict
		}
		n.EncryptedContent = note.EncryptedContent
	} else {
		n.Content = note.Content
	}
	n.Title = note.Title
	n.Tags = note.Tags
	n.UpdatedAt = m.tick()
	return nil
}

func (m *mockNoteRepo) UpdateContent(_ context.Context, id, content string, tags []string) error {
	n, exists := m.notes[id]
	if !exists {
		return apperr.ErrNotFound
	}
	if n.IsEncrypted {
		return apperr.ErrConflict
	}
	n.Content = content
	n.Tags = tags
	n.UpdatedAt = m.tick()
	return nil
}

func (m *mockNoteRepo) TogglePin(_ context.Context, id string) (*domain.Note, error) {
	n, exists := m.notes[id]
	if !exists {
		return nil, apperr.ErrNotFound
	}
	n.IsPinned = !n.IsPinned
	n.UpdatedAt = m.tick()
	c := *n
	return &c, nil
}

func (m *mockNoteRepo) Lock(_ context.Context, id string, content *string, passwordHash string) error {
	n, exists := m.notes[id]
	if !exists {
		return apperr.ErrNotFound
	}
	if n.IsEncrypted {
		return apperr.ErrConflict
	}
	gated := n.Content
	if content != nil {
		gated = *content
	}
	n.IsEncrypted = true
	n.EncryptedContent = &gated
	n.PasswordHash = &passwordHash
	n.Content = ""
	n.UpdatedAt = m.tick()
	return nil
}

func (m *mockNoteRepo) RemoveLock(_ context.Context, id, passwordHash string) error {
	n, exists := m.notes[id]
	if !exists {
		return apperr.ErrNotFound
	}
	if !n.IsEncrypted || *n.PasswordHash != passwordHash {
		return apperr.ErrConflict
	}
	n.Content = *n.EncryptedContent
	n.IsEncrypted = false
	n.EncryptedContent = nil
	n.PasswordHash = nil
	n.UpdatedAt = m.tick()
	return nil
}

func (m *mockNoteRepo) Delete(_ context.Context, id string) error {
	if _, exists := m.notes[id]; !exists {
		return apperr.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

type mockVersionRepo struct {
	versions map[string][]*domain.NoteVersion
}

func newMockVersionRepo() *mockVersionRepo {
	return &mockVersionRepo{versions: make(map[string][]*domain.NoteVersion)}
}

func (m *mockVersionRepo) Record(_ context.Context, noteID, content string, tags []string) (*domain.NoteVersion, error) {
	v := &domain.NoteVersion{
		ID:            fmt.Sprintf("%s-%d", noteID, len(m.versions[noteID])+1),
		NoteID:        noteID,
		Content:       content,
		Tags:          tags,
		VersionNumber: int64(len(m.versions[noteID]) + 1),
		CreatedAt:     time.Now(),
	}
	m.versions[noteID] = append(m.versions[noteID], v)
	return v, nil
}

func (m *mockVersionRepo) List(_ context.Context, noteID string) ([]*domain.NoteVersion, error) {
	out := slices.Clone(m.versions[noteID])
	slices.Reverse(out)
	return out, nil
}

func (m *mockVersionRepo) Get(_ context.Context, noteID string, number int64) (*domain.NoteVersion, error) {
	for _, v := range m.versions[noteID] {
		if v.VersionNumber == number {
			return v, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func newNoteService() (*NoteService, *mockNoteRepo, *mockVersionRepo) {
	repo := newMockNoteRepo()
	versions := newMockVersionRepo()
	return NewNoteService(repo, versions), repo, versions
}

func TestNoteService_Create(t *testing.T) {
	svc, repo, _ := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "user-1", note.UserID)
	assert.Equal(t, domain.DefaultNoteTitle, note.Title)
	assert.Empty(t, note.Content)
	assert.False(t, note.IsPinned)
	assert.False(t, note.IsEncrypted)
	assert.Contains(t, repo.notes, note.ID)
}

func TestNoteService_GetByID_OtherUser(t *testing.T) {
	svc, _, _ := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.GetByID(ctx, "user-2", note.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.GetByID(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNoteService_Save(t *testing.T) {
	svc, _, versions := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	saved, err := svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{
		Title:   "Meeting",
		Content: "<p>Agenda</p>",
		Tags:    []string{" work ", "", "work", "q3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Meeting", saved.Title)
	assert.Equal(t, "<p>Agenda</p>", saved.Content)
	assert.Equal(t, "Agenda", saved.Preview)
	assert.Equal(t, []string{"work", "q3"}, saved.Tags)
	assert.True(t, saved.UpdatedAt.After(note.UpdatedAt))

	_, err = svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Meeting", Content: "<p>Agenda v2</p>"})
	require.NoError(t, err)

	// each save snapshots the state it replaces
	recorded := versions.versions[note.ID]
	require.Len(t, recorded, 2)
	assert.Equal(t, "", recorded[0].Content)
	assert.Equal(t, "<p>Agenda</p>", recorded[1].Content)
	assert.Equal(t, []string{"work", "q3"}, recorded[1].Tags)
	assert.Equal(t, int64(2), recorded[1].VersionNumber)
}

func TestNoteService_Save_Forbidden(t *testing.T) {
	svc, _, versions := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.Save(ctx, "user-2", note.ID, &domain.UpdateNoteRequest{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Empty(t, versions.versions[note.ID])
}

func TestNoteService_Save_LockedNote(t *testing.T) {
	svc, repo, versions := newNoteService()
	enc := NewEncryptionService(repo)
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Secret", Content: "plain"})
	require.NoError(t, err)
	_, err = enc.Encrypt(ctx, "user-1", note.ID, &domain.EncryptNoteRequest{Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Secret", Content: "new"})
	assert.ErrorIs(t, err, apperr.ErrLocked)

	_, err = svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Secret", Content: "new", Password: "bad"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	saved, err := svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Secret", Content: "new", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, saved.IsEncrypted)
	assert.Empty(t, saved.Content)

	stored := repo.notes[note.ID]
	require.NotNil(t, stored.EncryptedContent)
	assert.Equal(t, "new", *stored.EncryptedContent)

	// the locked snapshot carries no readable content
	recorded := versions.versions[note.ID]
	assert.Equal(t, "", recorded[len(recorded)-1].Content)
}

func TestNoteService_List(t *testing.T) {
	svc, _, _ := newNoteService()
	ctx := context.Background()

	first, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-2")
	require.NoError(t, err)

	_, err = svc.Save(ctx, "user-1", first.ID, &domain.UpdateNoteRequest{Title: "Groceries", Content: "<b>milk</b>"})
	require.NoError(t, err)
	_, err = svc.Save(ctx, "user-1", second.ID, &domain.UpdateNoteRequest{Title: "Ideas", Tags: []string{"Garden"}})
	require.NoError(t, err)
	_, err = svc.TogglePin(ctx, "user-1", first.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, "user-1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.True(t, all[0].IsPinned)

	tests := []struct {
		query string
		want  []string
	}{
		{"MILK", []string{first.ID}},
		{"ideas", []string{second.ID}},
		{"garden", []string{second.ID}},
		{"b>", nil},
		{"zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := svc.List(ctx, "user-1", tt.query)
			require.NoError(t, err)

			var ids []string
			for _, n := range got {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestNoteService_TogglePin(t *testing.T) {
	svc, _, _ := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	pinned, err := svc.TogglePin(ctx, "user-1", note.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	unpinned, err := svc.TogglePin(ctx, "user-1", note.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	_, err = svc.TogglePin(ctx, "user-2", note.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestNoteService_Delete(t *testing.T) {
	svc, repo, _ := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "user-2", note.ID), apperr.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "user-1", note.ID))
	assert.NotContains(t, repo.notes, note.ID)
	assert.ErrorIs(t, svc.Delete(ctx, "user-1", note.ID), apperr.ErrNotFound)
}

func TestNoteService_Versions(t *testing.T) {
	svc, _, _ := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{
			Title:   "Draft",
			Content: content,
			Tags:    []string{content},
		})
		require.NoError(t, err)
	}

	list, err := svc.ListVersions(ctx, "user-1", note.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].VersionNumber)
	assert.Equal(t, "two", list[0].Content)

	restored, err := svc.RestoreVersion(ctx, "user-1", note.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "one", restored.Content)
	assert.Equal(t, []string{"one"}, restored.Tags)
	assert.Equal(t, "Draft", restored.Title)

	// restoring does not record a snapshot
	list, err = svc.ListVersions(ctx, "user-1", note.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = svc.RestoreVersion(ctx, "user-1", note.ID, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.ListVersions(ctx, "user-2", note.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestNoteService_Versions_Locked(t *testing.T) {
	svc, repo, _ := newNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = NewEncryptionService(repo).Encrypt(ctx, "user-1", note.ID, &domain.EncryptNoteRequest{Password: "pw"})
	require.NoError(t, err)

	_, err = svc.ListVersions(ctx, "user-1", note.ID)
	assert.ErrorIs(t, err, apperr.ErrLocked)

	_, err = svc.RestoreVersion(ctx, "user-1", note.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrLocked)
}

// lockingRepo locks the note right before a content write lands, the way a
// concurrent encrypt request would.
type lockingRepo struct {
	*mockNoteRepo
}

func (r *lockingRepo) lockFirst(ctx context.Context, id string) error {
	return r.mockNoteRepo.Lock(ctx, id, nil, "other-hash")
}

func (r *lockingRepo) Update(ctx context.Context, note *domain.Note) error {
	if err := r.lockFirst(ctx, note.ID); err != nil {
		return err
	}
	return r.mockNoteRepo.Update(ctx, note)
}

func (r *lockingRepo) UpdateContent(ctx context.Context, id, content string, tags []string) error {
	if err := r.lockFirst(ctx, id); err != nil {
		return err
	}
	return r.mockNoteRepo.UpdateContent(ctx, id, content, tags)
}

func TestNoteService_Save_LockedMeanwhile(t *testing.T) {
	repo := newMockNoteRepo()
	versions := newMockVersionRepo()
	ctx := context.Background()

	note, err := NewNoteService(repo, versions).Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = NewNoteService(repo, versions).Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Diary", Content: "before"})
	require.NoError(t, err)

	svc := NewNoteService(&lockingRepo{repo}, versions)

	_, err = svc.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Diary", Content: "plain after lock"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored := repo.notes[note.ID]
	assert.True(t, stored.IsEncrypted)
	assert.Empty(t, stored.Content)
	require.NotNil(t, stored.EncryptedContent)
	assert.Equal(t, "before", *stored.EncryptedContent)

	list, err := NewNoteService(repo, versions).List(ctx, "user-1", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsEncrypted)
	assert.Empty(t, list[0].Content)
	assert.Empty(t, list[0].Preview)
}

func TestNoteService_RestoreVersion_LockedMeanwhile(t *testing.T) {
	repo := newMockNoteRepo()
	versions := newMockVersionRepo()
	plain := NewNoteService(repo, versions)
	ctx := context.Background()

	note, err := plain.Create(ctx, "user-1")
	require.NoError(t, err)
	for _, content := range []string{"old", "current"} {
		_, err = plain.Save(ctx, "user-1", note.ID, &domain.UpdateNoteRequest{Title: "Diary", Content: content})
		require.NoError(t, err)
	}

	_, err = NewNoteService(&lockingRepo{repo}, versions).RestoreVersion(ctx, "user-1", note.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored := repo.notes[note.ID]
	assert.True(t, stored.IsEncrypted)
	assert.Empty(t, stored.Content)
	assert.Equal(t, "current", *stored.EncryptedContent)
}

func TestToNoteResponse_LockedHidesContent(t *testing.T) {
	gated := "secret"
	resp := toNoteResponse(&domain.Note{
		ID:               "n1",
		Content:          "leaked",
		IsEncrypted:      true,
		EncryptedContent: &gated,
	})

	assert.True(t, resp.IsEncrypted)
	assert.Empty(t, resp.Content)
	assert.Empty(t, resp.Preview)
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, []string{}},
		{"trim and dedupe", []string{" a", "b ", "a", "  "}, []string{"a", "b"}},
		{"case sensitive", []string{"Go", "go"}, []string{"Go", "go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}
