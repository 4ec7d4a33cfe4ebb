package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// Remote account queries
const (
	sqlInsertRemoteAccount       = `INSERT INTO remote_accounts(id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, public_key_pem, deleted, last_fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRemoteAccountByURI  = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, public_key_pem, deleted, last_fetched_at FROM remote_accounts WHERE actor_uri = ?`
	sqlSelectRemoteAccountByName = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, public_key_pem, deleted, last_fetched_at FROM remote_accounts WHERE username = ? AND domain = ?`
	sqlUpdateRemoteAccount       = `UPDATE remote_accounts SET display_name = ?, summary = ?, inbox_uri = ?, shared_inbox_uri = ?, public_key_pem = ?, last_fetched_at = ? WHERE actor_uri = ?`
	sqlTombstoneRemoteAccount    = `UPDATE remote_accounts SET deleted = 1 WHERE actor_uri = ?`
)

func (db *DB) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRemoteAccount,
			acc.Id.String(),
			acc.Username,
			acc.Domain,
			acc.ActorURI,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.SharedInboxURI,
			acc.PublicKeyPem,
			acc.Deleted,
			acc.LastFetchedAt,
		)
		return err
	})
}

func (db *DB) ReadRemoteAccountByURI(uri string) (error, *domain.RemoteAccount) {
	return db.scanRemoteAccount(db.db.QueryRow(sqlSelectRemoteAccountByURI, uri))
}

func (db *DB) ReadRemoteAccountByName(username, domainName string) (error, *domain.RemoteAccount) {
	return db.scanRemoteAccount(db.db.QueryRow(sqlSelectRemoteAccountByName, username, domainName))
}

func (db *DB) scanRemoteAccount(row *sql.Row) (error, *domain.RemoteAccount) {
	var acc domain.RemoteAccount
	var idStr string
	err := row.Scan(
		&idStr,
		&acc.Username,
		&acc.Domain,
		&acc.ActorURI,
		&acc.DisplayName,
		&acc.Summary,
		&acc.InboxURI,
		&acc.SharedInboxURI,
		&acc.PublicKeyPem,
		&acc.Deleted,
		&acc.LastFetchedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	return nil, &acc
}

func (db *DB) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteAccount,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.SharedInboxURI,
			acc.PublicKeyPem,
			acc.LastFetchedAt,
			acc.ActorURI,
		)
		return err
	})
}

func (db *DB) TombstoneRemoteAccount(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlTombstoneRemoteAccount, uri)
		return err
	})
}

// Follow queries
const (
	sqlInsertFollow         = `INSERT INTO follows(id, actor_uri, target_uri, uri, accepted, pending, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectFollowByURI    = `SELECT id, actor_uri, target_uri, uri, accepted, pending, created_at FROM follows WHERE uri = ?`
	sqlSelectFollowByActors = `SELECT id, actor_uri, target_uri, uri, accepted, pending, created_at FROM follows WHERE actor_uri = ? AND target_uri = ?`
	sqlAcceptFollowByURI    = `UPDATE follows SET accepted = 1, pending = 0 WHERE uri = ?`
	sqlDeleteFollowByURI    = `DELETE FROM follows WHERE uri = ?`
	sqlDeleteFollowByActors = `DELETE FROM follows WHERE actor_uri = ? AND target_uri = ?`
	sqlSelectFollowersOf    = `SELECT id, actor_uri, target_uri, uri, accepted, pending, created_at FROM follows WHERE target_uri = ? AND accepted = 1`
)

func (db *DB) CreateFollow(follow *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollow,
			follow.Id.String(),
			follow.ActorURI,
			follow.TargetURI,
			follow.URI,
			follow.Accepted,
			follow.Pending,
			follow.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadFollowByURI(uri string) (error, *domain.Follow) {
	return db.scanFollow(db.db.QueryRow(sqlSelectFollowByURI, uri))
}

func (db *DB) ReadFollowByActors(actorURI, targetURI string) (error, *domain.Follow) {
	return db.scanFollow(db.db.QueryRow(sqlSelectFollowByActors, actorURI, targetURI))
}

func (db *DB) scanFollow(row *sql.Row) (error, *domain.Follow) {
	var follow domain.Follow
	var idStr string
	err := row.Scan(&idStr, &follow.ActorURI, &follow.TargetURI, &follow.URI, &follow.Accepted, &follow.Pending, &follow.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	follow.Id, _ = uuid.Parse(idStr)
	return nil, &follow
}

func (db *DB) AcceptFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptFollowByURI, uri)
		return err
	})
}

func (db *DB) DeleteFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByURI, uri)
		return err
	})
}

func (db *DB) DeleteFollowByActors(actorURI, targetURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByActors, actorURI, targetURI)
		return err
	})
}

// ReadFollowersOf returns the accepted follows targeting the given actor
func (db *DB) ReadFollowersOf(targetURI string) (error, *[]domain.Follow) {
	rows, err := db.db.Query(sqlSelectFollowersOf, targetURI)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var followers []domain.Follow
	for rows.Next() {
		var follow domain.Follow
		var idStr string
		if err := rows.Scan(&idStr, &follow.ActorURI, &follow.TargetURI, &follow.URI, &follow.Accepted, &follow.Pending, &follow.CreatedAt); err != nil {
			return err, &followers
		}
		follow.Id, _ = uuid.Parse(idStr)
		followers = append(followers, follow)
	}
	if err = rows.Err(); err != nil {
		return err, &followers
	}
	return nil, &followers
}

// Activity queries
const (
	sqlInsertActivity      = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, local, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActivityByURI = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, local, created_at FROM activities WHERE activity_uri = ?`
)

func (db *DB) CreateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(),
			activity.ActivityURI,
			activity.ActivityType,
			activity.ActorURI,
			activity.ObjectURI,
			activity.RawJSON,
			activity.Local,
			activity.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	row := db.db.QueryRow(sqlSelectActivityByURI, uri)
	var activity domain.Activity
	var idStr string
	err := row.Scan(
		&idStr,
		&activity.ActivityURI,
		&activity.ActivityType,
		&activity.ActorURI,
		&activity.ObjectURI,
		&activity.RawJSON,
		&activity.Local,
		&activity.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	activity.Id, _ = uuid.Parse(idStr)
	return nil, &activity
}

// Instance queries
const (
	sqlUpsertInstance = `INSERT INTO instances(id, domain, software, version, last_alive_at, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET software = excluded.software, version = excluded.version, last_alive_at = excluded.last_alive_at`
	sqlSelectInstanceByDomain = `SELECT id, domain, software, version, last_alive_at, created_at FROM instances WHERE domain = ?`
)

func (db *DB) UpsertInstance(inst *domain.RemoteInstance) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertInstance,
			inst.Id.String(),
			inst.Domain,
			inst.Software,
			inst.Version,
			inst.LastAliveAt,
			inst.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadInstanceByDomain(domainName string) (error, *domain.RemoteInstance) {
	row := db.db.QueryRow(sqlSelectInstanceByDomain, domainName)
	var inst domain.RemoteInstance
	var idStr string
	err := row.Scan(&idStr, &inst.Domain, &inst.Software, &inst.Version, &inst.LastAliveAt, &inst.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	inst.Id, _ = uuid.Parse(idStr)
	return nil, &inst
}

// MarkInstanceAlive refreshes the liveness timestamp for a domain,
// creating the record if it is the first contact
func (db *DB) MarkInstanceAlive(domainName string) error {
	err, existing := db.ReadInstanceByDomain(domainName)
	if err != nil || existing == nil {
		return db.UpsertInstance(&domain.RemoteInstance{
			Id:          uuid.New(),
			Domain:      domainName,
			LastAliveAt: time.Now(),
			CreatedAt:   time.Now(),
		})
	}
	existing.LastAliveAt = time.Now()
	return db.UpsertInstance(existing)
}
