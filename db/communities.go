package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// Community queries
const (
	sqlInsertCommunity       = `INSERT INTO communities(id, name, title, description, domain, actor_uri, inbox_uri, followers_uri, local, removed, deleted, public_key_pem, private_key_pem, last_fetched_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectCommunityByURI  = `SELECT id, name, title, description, domain, actor_uri, inbox_uri, followers_uri, local, removed, deleted, public_key_pem, private_key_pem, last_fetched_at, created_at FROM communities WHERE actor_uri = ?`
	sqlSelectCommunityByName = `SELECT id, name, title, description, domain, actor_uri, inbox_uri, followers_uri, local, removed, deleted, public_key_pem, private_key_pem, last_fetched_at, created_at FROM communities WHERE name = ? AND local = 1`
	sqlSelectCommunityById   = `SELECT id, name, title, description, domain, actor_uri, inbox_uri, followers_uri, local, removed, deleted, public_key_pem, private_key_pem, last_fetched_at, created_at FROM communities WHERE id = ?`
	sqlUpdateCommunity       = `UPDATE communities SET title = ?, description = ?, inbox_uri = ?, followers_uri = ?, public_key_pem = ?, last_fetched_at = ? WHERE actor_uri = ?`
	sqlRemoveCommunity       = `UPDATE communities SET removed = ? WHERE actor_uri = ?`
	sqlTombstoneCommunity    = `UPDATE communities SET deleted = 1 WHERE actor_uri = ?`
)

func (db *DB) CreateCommunity(c *domain.Community) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertCommunity,
			c.Id.String(),
			c.Name,
			c.Title,
			c.Description,
			c.Domain,
			c.ActorURI,
			c.InboxURI,
			c.FollowersURI,
			c.Local,
			c.Removed,
			c.Deleted,
			c.PublicKeyPem,
			c.PrivateKeyPem,
			c.LastFetchedAt,
			c.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadCommunityByURI(uri string) (error, *domain.Community) {
	return db.scanCommunity(db.db.QueryRow(sqlSelectCommunityByURI, uri))
}

func (db *DB) ReadCommunityByName(name string) (error, *domain.Community) {
	return db.scanCommunity(db.db.QueryRow(sqlSelectCommunityByName, name))
}

func (db *DB) ReadCommunityById(id uuid.UUID) (error, *domain.Community) {
	return db.scanCommunity(db.db.QueryRow(sqlSelectCommunityById, id.String()))
}

func (db *DB) scanCommunity(row *sql.Row) (error, *domain.Community) {
	var c domain.Community
	var idStr string
	err := row.Scan(
		&idStr,
		&c.Name,
		&c.Title,
		&c.Description,
		&c.Domain,
		&c.ActorURI,
		&c.InboxURI,
		&c.FollowersURI,
		&c.Local,
		&c.Removed,
		&c.Deleted,
		&c.PublicKeyPem,
		&c.PrivateKeyPem,
		&c.LastFetchedAt,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	c.Id, _ = uuid.Parse(idStr)
	return nil, &c
}

func (db *DB) UpdateCommunity(c *domain.Community) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateCommunity,
			c.Title,
			c.Description,
			c.InboxURI,
			c.FollowersURI,
			c.PublicKeyPem,
			c.LastFetchedAt,
			c.ActorURI,
		)
		return err
	})
}

func (db *DB) SetCommunityRemoved(uri string, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRemoveCommunity, removed, uri)
		return err
	})
}

func (db *DB) TombstoneCommunity(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlTombstoneCommunity, uri)
		return err
	})
}

// Moderator queries
const (
	sqlInsertModerator = `INSERT INTO community_moderators(id, community_id, actor_uri, created_at) VALUES (?, ?, ?, ?)`
	sqlDeleteModerator = `DELETE FROM community_moderators WHERE community_id = ? AND actor_uri = ?`
	sqlSelectModerator = `SELECT COUNT(1) FROM community_moderators WHERE community_id = ? AND actor_uri = ?`
)

func (db *DB) AddModerator(mod *domain.CommunityModerator) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertModerator,
			mod.Id.String(),
			mod.CommunityId.String(),
			mod.ActorURI,
			mod.CreatedAt,
		)
		return err
	})
}

func (db *DB) RemoveModerator(communityId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteModerator, communityId.String(), actorURI)
		return err
	})
}

func (db *DB) IsModerator(communityId uuid.UUID, actorURI string) (error, bool) {
	var count int
	err := db.db.QueryRow(sqlSelectModerator, communityId.String(), actorURI).Scan(&count)
	if err != nil {
		return err, false
	}
	return nil, count > 0
}

// Ban queries
const (
	sqlInsertBan = `INSERT INTO community_bans(id, community_id, actor_uri, created_at) VALUES (?, ?, ?, ?)`
	sqlDeleteBan = `DELETE FROM community_bans WHERE community_id = ? AND actor_uri = ?`
	sqlSelectBan = `SELECT COUNT(1) FROM community_bans WHERE community_id = ? AND actor_uri = ?`
)

func (db *DB) CreateBan(ban *domain.Ban) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBan,
			ban.Id.String(),
			ban.CommunityId.String(),
			ban.ActorURI,
			ban.CreatedAt,
		)
		return err
	})
}

func (db *DB) DeleteBan(communityId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteBan, communityId.String(), actorURI)
		return err
	})
}

func (db *DB) IsBanned(communityId uuid.UUID, actorURI string) (error, bool) {
	var count int
	err := db.db.QueryRow(sqlSelectBan, communityId.String(), actorURI).Scan(&count)
	if err != nil {
		return err, false
	}
	return nil, count > 0
}
