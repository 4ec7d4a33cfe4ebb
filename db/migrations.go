package db

import (
	"database/sql"
	"log"
)

const (
	// Communities (group actors, local and federated)
	sqlCreateCommunitiesTable = `CREATE TABLE IF NOT EXISTS communities (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		title TEXT,
		description TEXT,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		inbox_uri TEXT,
		followers_uri TEXT,
		local INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		public_key_pem TEXT,
		private_key_pem TEXT,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, domain)
	)`

	sqlCreateCommunitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_communities_actor_uri ON communities(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_communities_name ON communities(name);
	`

	sqlCreateModeratorsTable = `CREATE TABLE IF NOT EXISTS community_moderators (
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(community_id, actor_uri)
	)`

	sqlCreateBansTable = `CREATE TABLE IF NOT EXISTS community_bans (
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(community_id, actor_uri)
	)`

	// Posts and comments
	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL,
		creator_uri TEXT NOT NULL,
		object_uri TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		url TEXT,
		local INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		locked INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_object_uri ON posts(object_uri);
		CREATE INDEX IF NOT EXISTS idx_posts_community_id ON posts(community_id);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL,
		parent_id TEXT,
		creator_uri TEXT NOT NULL,
		object_uri TEXT UNIQUE NOT NULL,
		body TEXT NOT NULL,
		local INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateCommentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_comments_object_uri ON comments(object_uri);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	`

	sqlCreateVotesTable = `CREATE TABLE IF NOT EXISTS votes (
		id TEXT NOT NULL PRIMARY KEY,
		actor_uri TEXT NOT NULL,
		object_uri TEXT NOT NULL,
		score INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_uri, object_uri)
	)`

	sqlCreatePrivateMessagesTable = `CREATE TABLE IF NOT EXISTS private_messages (
		id TEXT NOT NULL PRIMARY KEY,
		object_uri TEXT UNIQUE NOT NULL,
		creator_uri TEXT NOT NULL,
		recipient_uri TEXT NOT NULL,
		content TEXT NOT NULL,
		deleted INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateReportsTable = `CREATE TABLE IF NOT EXISTS reports (
		id TEXT NOT NULL PRIMARY KEY,
		object_uri TEXT NOT NULL,
		reporter_uri TEXT NOT NULL,
		reason TEXT,
		resolved INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Remote accounts cache table
	sqlCreateRemoteAccountsTable = `CREATE TABLE IF NOT EXISTS remote_accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT,
		public_key_pem TEXT NOT NULL,
		deleted INTEGER DEFAULT 0,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateRemoteAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_actor_uri ON remote_accounts(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_domain ON remote_accounts(domain);
	`

	// Follow relationships table (actor URIs, either side may be local)
	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		actor_uri TEXT NOT NULL,
		target_uri TEXT NOT NULL,
		uri TEXT NOT NULL,
		accepted INTEGER DEFAULT 0,
		pending INTEGER DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_uri, target_uri)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_actor_uri ON follows(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_follows_target_uri ON follows(target_uri);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	// Activities log table (deduplication under at-least-once delivery)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		local INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`

	sqlCreateDeadDeliveriesTable = `CREATE TABLE IF NOT EXISTS dead_deliveries (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT NOT NULL,
		inbox_uri TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		last_error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateInstancesTable = `CREATE TABLE IF NOT EXISTS instances (
		id TEXT NOT NULL PRIMARY KEY,
		domain TEXT UNIQUE NOT NULL,
		software TEXT,
		version TEXT,
		last_alive_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
)

// RunMigrations creates the federation tables and their indices
func (db *DB) RunMigrations() error {
	tables := []string{
		sqlCreateCommunitiesTable,
		sqlCreateModeratorsTable,
		sqlCreateBansTable,
		sqlCreatePostsTable,
		sqlCreateCommentsTable,
		sqlCreateVotesTable,
		sqlCreatePrivateMessagesTable,
		sqlCreateReportsTable,
		sqlCreateRemoteAccountsTable,
		sqlCreateFollowsTable,
		sqlCreateActivitiesTable,
		sqlCreateDeadDeliveriesTable,
		sqlCreateInstancesTable,
	}

	indices := []string{
		sqlCreateCommunitiesIndices,
		sqlCreatePostsIndices,
		sqlCreateCommentsIndices,
		sqlCreateRemoteAccountsIndices,
		sqlCreateFollowsIndices,
		sqlCreateActivitiesIndices,
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range tables {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Indices are created outside the table transaction so a failure
	// doesn't roll back the schema itself
	for _, stmt := range indices {
		if _, err := db.db.Exec(stmt); err != nil {
			log.Printf("Warning: index creation failed: %v", err)
		}
	}

	return nil
}
