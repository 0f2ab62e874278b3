package store

// Schema mirrors the column and uniqueness contracts the sync engine depends
// on: every catalog row hangs off exactly one server, and (server, remote id)
// pairs are unique per entity. The engine still checks existence before every
// insert rather than leaning on the UNIQUE constraints.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS servers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		port INTEGER DEFAULT 80,
		status TEXT DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL,
		category_name TEXT NOT NULL,
		parent_id INTEGER DEFAULT NULL,
		content_type TEXT NOT NULL CHECK(content_type IN ('live', 'vod', 'series')),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		visible INTEGER DEFAULT 1,
		FOREIGN KEY (server_id) REFERENCES servers (id) ON DELETE CASCADE,
		UNIQUE(server_id, category_id, content_type)
	)`,

	`CREATE TABLE IF NOT EXISTS live_streams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id INTEGER NOT NULL,
		category_id INTEGER,
		stream_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		stream_type TEXT DEFAULT 'live',
		stream_icon TEXT,
		epg_channel_id TEXT,
		tv_archive INTEGER DEFAULT 0,
		direct_source TEXT,
		tv_archive_duration INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		visible INTEGER DEFAULT 1,
		FOREIGN KEY (server_id) REFERENCES servers (id) ON DELETE CASCADE,
		UNIQUE(server_id, stream_id)
	)`,

	`CREATE TABLE IF NOT EXISTS vod_streams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id INTEGER NOT NULL,
		category_id INTEGER,
		stream_id INTEGER NOT NULL,
		name TEXT,
		stream_icon TEXT,
		rating REAL,
		rating_5based REAL,
		added TEXT,
		container_extension TEXT,
		custom_sid TEXT,
		direct_source TEXT,
		plot TEXT,
		"cast" TEXT,
		director TEXT,
		genre TEXT,
		release_date TEXT,
		year INTEGER,
		duration_secs INTEGER,
		duration TEXT,
		video_quality TEXT,
		tmdb_id TEXT,
		o_name TEXT,
		cover_big TEXT,
		movie_image TEXT,
		youtube_trailer TEXT,
		actors TEXT,
		description TEXT,
		age TEXT,
		country TEXT,
		backdrop_path TEXT,
		bitrate INTEGER,
		status TEXT,
		runtime TEXT,
		FOREIGN KEY (server_id) REFERENCES servers (id) ON DELETE CASCADE,
		UNIQUE(server_id, stream_id)
	)`,

	`CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id INTEGER NOT NULL,
		series_id INTEGER NOT NULL,
		name TEXT,
		cover TEXT,
		plot TEXT,
		"cast" TEXT,
		director TEXT,
		genre TEXT,
		release_date TEXT,
		last_modified TEXT,
		rating REAL,
		rating_5based REAL,
		backdrop_path TEXT,
		youtube_trailer TEXT,
		tmdb_id TEXT,
		episode_run_time TEXT,
		category_id INTEGER,
		category_ids TEXT,
		FOREIGN KEY (server_id) REFERENCES servers (id) ON DELETE CASCADE,
		UNIQUE(server_id, series_id)
	)`,

	`CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id INTEGER NOT NULL,
		series_id INTEGER NOT NULL,
		season_num INTEGER,
		episode_id INTEGER NOT NULL,
		title TEXT,
		plot TEXT,
		duration TEXT,
		airdate TEXT,
		container_extension TEXT,
		episode_num INTEGER,
		rating REAL,
		crew TEXT,
		tmdb_id TEXT,
		movie_image TEXT,
		duration_secs INTEGER,
		video TEXT,
		audio TEXT,
		bitrate INTEGER,
		custom_sid TEXT,
		added TEXT,
		direct_source TEXT,
		season INTEGER,
		FOREIGN KEY (server_id) REFERENCES servers (id) ON DELETE CASCADE,
		UNIQUE(server_id, episode_id)
	)`,

	`CREATE TABLE IF NOT EXISTS epg_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		stop_time TIMESTAMP NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		lang TEXT,
		category TEXT,
		icon TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(channel_id, start_time, title)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_live_server_category ON live_streams(server_id, category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_live_epg_channel ON live_streams(epg_channel_id)`,
	`CREATE INDEX IF NOT EXISTS idx_vod_server_category ON vod_streams(server_id, category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_vod_name ON vod_streams(name)`,
	`CREATE INDEX IF NOT EXISTS idx_vod_tmdb ON vod_streams(tmdb_id)`,
	`CREATE INDEX IF NOT EXISTS idx_series_server_category ON series(server_id, category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_series_name ON series(name)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_series ON episodes(series_id)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_season ON episodes(series_id, season_num)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_server_type ON categories(server_id, content_type)`,
	`CREATE INDEX IF NOT EXISTS idx_epg_channel_time ON epg_data(channel_id, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_epg_time_range ON epg_data(start_time, stop_time)`,
}
