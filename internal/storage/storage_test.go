package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidshare/internal/models"
)

func TestNewStorageSeedsCategoriesWhenFileMissing(t *testing.T) {
	store := newTestStore(t)

	categories := store.ListCategories()
	if len(categories) != len(starterCategories) {
		t.Fatalf("expected %d starter categories, got %d", len(starterCategories), len(categories))
	}
	if categories[0].Name != "Music" || categories[0].Slug != "music" {
		t.Fatalf("expected Music first, got %+v", categories[0])
	}
	if _, ok := store.GetCategory("film-animation"); !ok {
		t.Fatalf("expected slug film-animation to exist")
	}
	if users := store.ListUsers(); len(users) != 0 {
		t.Fatalf("expected empty user collection, got %d", len(users))
	}
}

func TestSnapshotRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, _ := newTestStoreAt(t, path)

	owner := mustCreateUser(t, store, "owner")
	viewer := mustCreateUser(t, store, "viewer")
	video := mustCreateVideo(t, store, owner.ID, "intro")
	comment, err := store.CreateComment(viewer.ID, video.ID, "", "great video")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := store.ToggleReaction(viewer.ID, models.VideoTarget(video.ID), models.ReactionLike); err != nil {
		t.Fatalf("ToggleReaction video: %v", err)
	}
	if _, err := store.ToggleReaction(owner.ID, models.CommentTarget(comment.ID), models.ReactionDislike); err != nil {
		t.Fatalf("ToggleReaction comment: %v", err)
	}
	if _, err := store.Subscribe(viewer.ID, owner.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	playlist, err := store.CreatePlaylist(CreatePlaylistParams{OwnerID: viewer.ID, Title: "later"})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddPlaylistVideo(viewer.ID, playlist.ID, video.ID); err != nil {
		t.Fatalf("AddPlaylistVideo: %v", err)
	}
	if _, err := store.SaveProgress(viewer.ID, video.ID, 30, 120); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	before, err := encodeSnapshot(store.Snapshot())
	if err != nil {
		t.Fatalf("encode before: %v", err)
	}

	reopened, _ := newTestStoreAt(t, path)
	after, err := encodeSnapshot(reopened.Snapshot())
	if err != nil {
		t.Fatalf("encode after: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("snapshot changed across reload\nbefore: %s\nafter: %s", before, after)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	if !bytes.Equal(onDisk, before) {
		t.Fatalf("expected file contents to equal the encoded snapshot")
	}
	requireCleanCounters(t, reopened)
}

func TestCorruptSnapshotIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, _ := newTestStoreAt(t, path)
	if got := len(store.ListCategories()); got != len(starterCategories) {
		t.Fatalf("expected seeded categories after corrupt load, got %d", got)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected corrupt file to be moved aside, stat err %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	quarantined := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "store.json.corrupt-") {
			quarantined = true
		}
	}
	if !quarantined {
		t.Fatalf("expected a quarantined copy in %s", dir)
	}

	mustCreateUser(t, store, "fresh")
	reopened, _ := newTestStoreAt(t, path)
	if _, ok := reopened.FindUserByUsername("fresh"); !ok {
		t.Fatalf("expected writes after recovery to persist")
	}
}

func TestSnapshotWithDuplicateIDsIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	doc := `{"version":1,"users":[{"id":"u1","username":"a"},{"id":"u1","username":"b"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store, _ := newTestStoreAt(t, path)
	if users := store.ListUsers(); len(users) != 0 {
		t.Fatalf("expected duplicate-id snapshot to be discarded, got %d users", len(users))
	}
}

func TestPersistFailureStillInstallsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, _ := newTestStoreAt(t, path)
	owner := mustCreateUser(t, store, "owner")

	store.persistOverride = func(Snapshot) error {
		return errors.New("disk full")
	}
	video, err := store.CreateVideo(CreateVideoParams{OwnerID: owner.ID, Title: "unsaved", VideoURL: "https://cdn.example.com/u.mp4"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	store.persistOverride = nil

	if _, ok := store.GetVideo(video.ID); !ok {
		t.Fatalf("expected in-memory state to keep video %s", video.ID)
	}
	reopened, _ := newTestStoreAt(t, path)
	if _, ok := reopened.GetVideo(video.ID); ok {
		t.Fatalf("expected video %s to be missing from disk", video.ID)
	}
}

func TestRejectedMutationLeavesStateUntouched(t *testing.T) {
	store := newTestStore(t)
	owner := mustCreateUser(t, store, "owner")

	err := store.Mutate(func(tx *Tx) error {
		user := tx.Users[owner.ID]
		user.DisplayName = "changed"
		tx.Users.Put(owner.ID, user)
		return ErrConflict
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected callback error, got %v", err)
	}
	user, _ := store.GetUser(owner.ID)
	if user.DisplayName != owner.DisplayName {
		t.Fatalf("expected display name %q, got %q", owner.DisplayName, user.DisplayName)
	}
}

func TestRestoreRecomputesCounters(t *testing.T) {
	store := newTestStore(t)
	owner := mustCreateUser(t, store, "owner")
	viewer := mustCreateUser(t, store, "viewer")
	video := mustCreateVideo(t, store, owner.ID, "clip")
	if _, err := store.ToggleReaction(viewer.ID, models.VideoTarget(video.ID), models.ReactionLike); err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}

	snapshot := store.Snapshot()
	snapshot.Videos[0].Likes = 42
	snapshot.Users[0].VideoCount = 9

	target := newTestStore(t)
	if err := target.Restore(snapshot); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	restored, _ := target.GetVideo(video.ID)
	if restored.Likes != 1 {
		t.Fatalf("expected likes recomputed to 1, got %d", restored.Likes)
	}
	requireCleanCounters(t, target)
}

func TestWriteSnapshotAndLoadSnapshotFromJSON(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "owner")
	snapshot := store.Snapshot()

	path := filepath.Join(t.TempDir(), "copy.json")
	persister, err := NewFilePersister(path)
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	if err := WriteSnapshot(t.Context(), persister, &snapshot); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	loaded, err := LoadSnapshotFromJSON(path)
	if err != nil {
		t.Fatalf("LoadSnapshotFromJSON: %v", err)
	}
	counts := loaded.Counts()
	if counts.Users != 1 || counts.Categories != len(starterCategories) {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestSnapshotRejectsBrokenDetailRows(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"duplicate reaction pair", `{"version":1,"reactions":[
			{"id":"r1","userId":"u1","videoId":"v1","type":"like"},
			{"id":"r2","userId":"u1","videoId":"v1","type":"dislike"}]}`},
		{"reaction with two targets", `{"version":1,"reactions":[
			{"id":"r1","userId":"u1","videoId":"v1","commentId":"c1","type":"like"}]}`},
		{"reaction without target", `{"version":1,"reactions":[{"id":"r1","userId":"u1","type":"like"}]}`},
		{"reaction with unknown type", `{"version":1,"reactions":[{"id":"r1","userId":"u1","videoId":"v1","type":"love"}]}`},
		{"duplicate subscription pair", `{"version":1,"subscriptions":[
			{"id":"s1","subscriberId":"u1","channelId":"u2"},
			{"id":"s2","subscriberId":"u1","channelId":"u2"}]}`},
		{"self subscription", `{"version":1,"subscriptions":[{"id":"s1","subscriberId":"u1","channelId":"u1"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snapshot, err := decodeSnapshot([]byte(tc.doc))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, err := snapshot.dataset(); err == nil {
				t.Fatal("expected snapshot to be rejected")
			}
			path := filepath.Join(t.TempDir(), "copy.json")
			if err := os.WriteFile(path, []byte(tc.doc), 0o600); err != nil {
				t.Fatalf("write file: %v", err)
			}
			if _, err := LoadSnapshotFromJSON(path); err == nil {
				t.Fatal("expected LoadSnapshotFromJSON to reject the document")
			}
		})
	}
}

func TestSnapshotAcceptsSameUserOnDifferentTargets(t *testing.T) {
	doc := `{"version":1,"reactions":[
		{"id":"r1","userId":"u1","videoId":"v1","type":"like"},
		{"id":"r2","userId":"u1","commentId":"v1","type":"like"},
		{"id":"r3","userId":"u2","videoId":"v1","type":"dislike"}]}`
	snapshot, err := decodeSnapshot([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := snapshot.dataset(); err != nil {
		t.Fatalf("expected distinct pairs to load, got %v", err)
	}
}
