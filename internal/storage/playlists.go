package storage

import (
	"cmp"
	"slices"

	"vidshare/internal/models"
)

const maxPlaylistVideos = 500

type CreatePlaylistParams struct {
	OwnerID     string
	Title       string
	Description string
	Privacy     models.Privacy
}

func (s *Storage) CreatePlaylist(params CreatePlaylistParams) (models.Playlist, error) {
	title, err := validateTitle(params.Title)
	if err != nil {
		return models.Playlist{}, err
	}
	description, err := validateDescription(params.Description)
	if err != nil {
		return models.Playlist{}, err
	}
	privacy := params.Privacy
	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	if !privacy.Valid() {
		return models.Playlist{}, invalidf("privacy %q is not supported", privacy)
	}

	var created models.Playlist
	err = s.mutate("playlist.create", func(tx *Tx) error {
		owner, err := tx.activeUser(params.OwnerID)
		if err != nil {
			return err
		}
		created = models.Playlist{
			ID:          newID(),
			OwnerID:     owner.ID,
			Title:       title,
			Description: description,
			Privacy:     privacy,
			VideoIDs:    []string{},
			CreatedAt:   tx.now,
			UpdatedAt:   tx.now,
		}
		tx.Playlists.Put(created.ID, created)
		return nil
	})
	return copyPlaylist(created), err
}

func playlistVisible(p models.Playlist, viewerID string) bool {
	return p.Privacy != models.PrivacyPrivate || p.OwnerID == viewerID
}

// GetPlaylist returns the playlist if viewerID may see it. Private playlists
// are reported as missing to everyone but their owner.
func (s *Storage) GetPlaylist(viewerID, id string) (models.Playlist, error) {
	p, ok := getRow(s, func(d *dataset) Table[models.Playlist] { return d.Playlists }, id)
	if !ok || !playlistVisible(p, viewerID) {
		return models.Playlist{}, notFound("playlist", id)
	}
	return copyPlaylist(p), nil
}

// ListPlaylists returns ownerID's playlists that viewerID may see, newest
// first. Unlisted playlists are only listed for their owner.
func (s *Storage) ListPlaylists(ownerID, viewerID string) []models.Playlist {
	rows := queryRows(s, func(d *dataset) Table[models.Playlist] { return d.Playlists }, func(p models.Playlist) bool {
		if p.OwnerID != ownerID {
			return false
		}
		return p.OwnerID == viewerID || p.Privacy == models.PrivacyPublic
	})
	for i := range rows {
		rows[i] = copyPlaylist(rows[i])
	}
	slices.SortFunc(rows, func(a, b models.Playlist) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rows
}

func (tx *Tx) ownedPlaylist(actorID, id string) (models.Playlist, error) {
	p, ok := tx.Playlists.Get(id)
	if !ok || !playlistVisible(p, actorID) {
		return models.Playlist{}, notFound("playlist", id)
	}
	if p.OwnerID != actorID {
		return models.Playlist{}, unauthorizedf("user %s does not own playlist %s", actorID, id)
	}
	return copyPlaylist(p), nil
}

// AddPlaylistVideo appends a video the owner can see. A video appears at most
// once per playlist.
func (s *Storage) AddPlaylistVideo(actorID, playlistID, videoID string) (models.Playlist, error) {
	var updated models.Playlist
	err := s.mutate("playlist.add_video", func(tx *Tx) error {
		p, err := tx.ownedPlaylist(actorID, playlistID)
		if err != nil {
			return err
		}
		video, ok := tx.Videos.Get(videoID)
		if !ok || !canView(tx.dataset, actorID, video) {
			return notFound("video", videoID)
		}
		if p.Contains(videoID) {
			return conflictf("video %s is already in playlist %s", videoID, playlistID)
		}
		if len(p.VideoIDs) >= maxPlaylistVideos {
			return invalidf("playlists hold at most %d videos", maxPlaylistVideos)
		}
		p.VideoIDs = append(p.VideoIDs, videoID)
		p.UpdatedAt = tx.now
		tx.Playlists.Put(p.ID, p)
		updated = copyPlaylist(p)
		return nil
	})
	return updated, err
}

func (s *Storage) RemovePlaylistVideo(actorID, playlistID, videoID string) (models.Playlist, error) {
	var updated models.Playlist
	err := s.mutate("playlist.remove_video", func(tx *Tx) error {
		p, err := tx.ownedPlaylist(actorID, playlistID)
		if err != nil {
			return err
		}
		if !p.Contains(videoID) {
			return notFound("playlist entry", videoID)
		}
		p.VideoIDs = slices.DeleteFunc(p.VideoIDs, func(id string) bool { return id == videoID })
		p.UpdatedAt = tx.now
		tx.Playlists.Put(p.ID, p)
		updated = copyPlaylist(p)
		return nil
	})
	return updated, err
}

func (s *Storage) DeletePlaylist(actorID, id string) error {
	return s.mutate("playlist.delete", func(tx *Tx) error {
		p, err := tx.ownedPlaylist(actorID, id)
		if err != nil {
			return err
		}
		tx.Playlists.Delete(p.ID)
		return nil
	})
}
