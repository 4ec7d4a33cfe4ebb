package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// Post queries
const (
	sqlInsertPost      = `INSERT INTO posts(id, community_id, creator_uri, object_uri, title, body, url, local, removed, deleted, locked, updated_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPostByURI = `SELECT id, community_id, creator_uri, object_uri, title, body, url, local, removed, deleted, locked, updated_at, created_at FROM posts WHERE object_uri = ?`
	sqlSelectPostById  = `SELECT id, community_id, creator_uri, object_uri, title, body, url, local, removed, deleted, locked, updated_at, created_at FROM posts WHERE id = ?`
	sqlUpdatePost      = `UPDATE posts SET title = ?, body = ?, url = ?, locked = ?, updated_at = ? WHERE object_uri = ?`
	sqlRemovePost      = `UPDATE posts SET removed = ? WHERE object_uri = ?`
	sqlTombstonePost   = `UPDATE posts SET deleted = 1 WHERE object_uri = ?`

	sqlSelectRecentPostsByCommunity = `SELECT id, community_id, creator_uri, object_uri, title, body, url, local, removed, deleted, locked, updated_at, created_at FROM posts
		WHERE community_id = ? AND removed = 0 AND deleted = 0 ORDER BY created_at DESC LIMIT ?`
)

func (db *DB) CreatePost(p *domain.Post) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPost,
			p.Id.String(),
			p.CommunityId.String(),
			p.CreatorURI,
			p.ObjectURI,
			p.Title,
			p.Body,
			p.URL,
			p.Local,
			p.Removed,
			p.Deleted,
			p.Locked,
			p.UpdatedAt,
			p.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPostByURI(uri string) (error, *domain.Post) {
	return db.scanPost(db.db.QueryRow(sqlSelectPostByURI, uri))
}

func (db *DB) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	return db.scanPost(db.db.QueryRow(sqlSelectPostById, id.String()))
}

func (db *DB) scanPost(row *sql.Row) (error, *domain.Post) {
	var p domain.Post
	var idStr, communityIdStr string
	err := row.Scan(
		&idStr,
		&communityIdStr,
		&p.CreatorURI,
		&p.ObjectURI,
		&p.Title,
		&p.Body,
		&p.URL,
		&p.Local,
		&p.Removed,
		&p.Deleted,
		&p.Locked,
		&p.UpdatedAt,
		&p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	p.Id, _ = uuid.Parse(idStr)
	p.CommunityId, _ = uuid.Parse(communityIdStr)
	return nil, &p
}

func (db *DB) UpdatePost(p *domain.Post) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePost, p.Title, p.Body, p.URL, p.Locked, p.UpdatedAt, p.ObjectURI)
		return err
	})
}

func (db *DB) SetPostRemoved(uri string, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRemovePost, removed, uri)
		return err
	})
}

func (db *DB) TombstonePost(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlTombstonePost, uri)
		return err
	})
}

func (db *DB) ReadRecentPostsByCommunity(communityId uuid.UUID, limit int) (error, *[]domain.Post) {
	rows, err := db.db.Query(sqlSelectRecentPostsByCommunity, communityId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		var idStr, communityIdStr string
		if err := rows.Scan(&idStr, &communityIdStr, &p.CreatorURI, &p.ObjectURI, &p.Title, &p.Body, &p.URL, &p.Local, &p.Removed, &p.Deleted, &p.Locked, &p.UpdatedAt, &p.CreatedAt); err != nil {
			return err, &posts
		}
		p.Id, _ = uuid.Parse(idStr)
		p.CommunityId, _ = uuid.Parse(communityIdStr)
		posts = append(posts, p)
	}
	if err = rows.Err(); err != nil {
		return err, &posts
	}
	return nil, &posts
}

// Comment queries
const (
	sqlInsertComment      = `INSERT INTO comments(id, post_id, parent_id, creator_uri, object_uri, body, local, removed, deleted, updated_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectCommentByURI = `SELECT id, post_id, parent_id, creator_uri, object_uri, body, local, removed, deleted, updated_at, created_at FROM comments WHERE object_uri = ?`
	sqlSelectCommentById  = `SELECT id, post_id, parent_id, creator_uri, object_uri, body, local, removed, deleted, updated_at, created_at FROM comments WHERE id = ?`
	sqlUpdateComment      = `UPDATE comments SET body = ?, updated_at = ? WHERE object_uri = ?`
	sqlRemoveComment      = `UPDATE comments SET removed = ? WHERE object_uri = ?`
	sqlTombstoneComment   = `UPDATE comments SET deleted = 1 WHERE object_uri = ?`
)

func (db *DB) CreateComment(c *domain.Comment) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var parentId interface{}
		if c.ParentId != uuid.Nil {
			parentId = c.ParentId.String()
		}
		_, err := tx.Exec(sqlInsertComment,
			c.Id.String(),
			c.PostId.String(),
			parentId,
			c.CreatorURI,
			c.ObjectURI,
			c.Body,
			c.Local,
			c.Removed,
			c.Deleted,
			c.UpdatedAt,
			c.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadCommentByURI(uri string) (error, *domain.Comment) {
	return db.scanComment(db.db.QueryRow(sqlSelectCommentByURI, uri))
}

func (db *DB) ReadCommentById(id uuid.UUID) (error, *domain.Comment) {
	return db.scanComment(db.db.QueryRow(sqlSelectCommentById, id.String()))
}

func (db *DB) scanComment(row *sql.Row) (error, *domain.Comment) {
	var c domain.Comment
	var idStr, postIdStr string
	var parentIdStr sql.NullString
	err := row.Scan(
		&idStr,
		&postIdStr,
		&parentIdStr,
		&c.CreatorURI,
		&c.ObjectURI,
		&c.Body,
		&c.Local,
		&c.Removed,
		&c.Deleted,
		&c.UpdatedAt,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	c.Id, _ = uuid.Parse(idStr)
	c.PostId, _ = uuid.Parse(postIdStr)
	if parentIdStr.Valid {
		c.ParentId, _ = uuid.Parse(parentIdStr.String)
	}
	return nil, &c
}

func (db *DB) UpdateComment(c *domain.Comment) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateComment, c.Body, c.UpdatedAt, c.ObjectURI)
		return err
	})
}

func (db *DB) SetCommentRemoved(uri string, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRemoveComment, removed, uri)
		return err
	})
}

func (db *DB) TombstoneComment(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlTombstoneComment, uri)
		return err
	})
}

// Vote queries
const (
	sqlUpsertVote = `INSERT INTO votes(id, actor_uri, object_uri, score, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(actor_uri, object_uri) DO UPDATE SET score = excluded.score`
	sqlDeleteVote  = `DELETE FROM votes WHERE actor_uri = ? AND object_uri = ?`
	sqlSelectVote  = `SELECT id, actor_uri, object_uri, score, created_at FROM votes WHERE actor_uri = ? AND object_uri = ?`
	sqlSelectScore = `SELECT COALESCE(SUM(score), 0) FROM votes WHERE object_uri = ?`
)

func (db *DB) UpsertVote(v *domain.Vote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertVote,
			v.Id.String(),
			v.ActorURI,
			v.ObjectURI,
			v.Score,
			v.CreatedAt,
		)
		return err
	})
}

func (db *DB) DeleteVote(actorURI, objectURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteVote, actorURI, objectURI)
		return err
	})
}

func (db *DB) ReadVote(actorURI, objectURI string) (error, *domain.Vote) {
	row := db.db.QueryRow(sqlSelectVote, actorURI, objectURI)
	var v domain.Vote
	var idStr string
	err := row.Scan(&idStr, &v.ActorURI, &v.ObjectURI, &v.Score, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	v.Id, _ = uuid.Parse(idStr)
	return nil, &v
}

func (db *DB) ReadScore(objectURI string) (error, int) {
	var score int
	err := db.db.QueryRow(sqlSelectScore, objectURI).Scan(&score)
	return err, score
}

// Private message queries
const (
	sqlInsertPrivateMessage      = `INSERT INTO private_messages(id, object_uri, creator_uri, recipient_uri, content, deleted, updated_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPrivateMessageByURI = `SELECT id, object_uri, creator_uri, recipient_uri, content, deleted, updated_at, created_at FROM private_messages WHERE object_uri = ?`
	sqlUpdatePrivateMessage      = `UPDATE private_messages SET content = ?, updated_at = ? WHERE object_uri = ?`
	sqlTombstonePrivateMessage   = `UPDATE private_messages SET deleted = 1 WHERE object_uri = ?`
)

func (db *DB) CreatePrivateMessage(pm *domain.PrivateMessage) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPrivateMessage,
			pm.Id.String(),
			pm.ObjectURI,
			pm.CreatorURI,
			pm.RecipientURI,
			pm.Content,
			pm.Deleted,
			pm.UpdatedAt,
			pm.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPrivateMessageByURI(uri string) (error, *domain.PrivateMessage) {
	row := db.db.QueryRow(sqlSelectPrivateMessageByURI, uri)
	var pm domain.PrivateMessage
	var idStr string
	err := row.Scan(&idStr, &pm.ObjectURI, &pm.CreatorURI, &pm.RecipientURI, &pm.Content, &pm.Deleted, &pm.UpdatedAt, &pm.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	pm.Id, _ = uuid.Parse(idStr)
	return nil, &pm
}

func (db *DB) UpdatePrivateMessage(pm *domain.PrivateMessage) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePrivateMessage, pm.Content, pm.UpdatedAt, pm.ObjectURI)
		return err
	})
}

func (db *DB) TombstonePrivateMessage(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlTombstonePrivateMessage, uri)
		return err
	})
}

// Report queries
const (
	sqlInsertReport          = `INSERT INTO reports(id, object_uri, reporter_uri, reason, resolved, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlResolveReportByObject = `UPDATE reports SET resolved = 1 WHERE object_uri = ?`
	sqlSelectReportByObject  = `SELECT id, object_uri, reporter_uri, reason, resolved, created_at FROM reports WHERE object_uri = ? ORDER BY created_at DESC LIMIT 1`
)

func (db *DB) CreateReport(r *domain.Report) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertReport,
			r.Id.String(),
			r.ObjectURI,
			r.ReporterURI,
			r.Reason,
			r.Resolved,
			r.CreatedAt,
		)
		return err
	})
}

func (db *DB) ResolveReportsByObjectURI(objectURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlResolveReportByObject, objectURI)
		return err
	})
}

func (db *DB) ReadReportByObjectURI(objectURI string) (error, *domain.Report) {
	row := db.db.QueryRow(sqlSelectReportByObject, objectURI)
	var r domain.Report
	var idStr string
	err := row.Scan(&idStr, &r.ObjectURI, &r.ReporterURI, &r.Reason, &r.Resolved, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	r.Id, _ = uuid.Parse(idStr)
	return nil, &r
}

// Dead delivery queries
const (
	sqlInsertDeadDelivery  = `INSERT INTO dead_deliveries(id, activity_uri, inbox_uri, attempts, last_error, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlCountDeadDeliveries = `SELECT COUNT(1) FROM dead_deliveries`
)

func (db *DB) CreateDeadDelivery(d *domain.DeadDelivery) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertDeadDelivery,
			d.Id.String(),
			d.ActivityURI,
			d.InboxURI,
			d.Attempts,
			d.LastError,
			d.CreatedAt,
		)
		return err
	})
}

func (db *DB) CountDeadDeliveries() (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountDeadDeliveries).Scan(&count)
	return err, count
}
