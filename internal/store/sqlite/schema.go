package sqlite

// Timestamps are unix nanoseconds. title_key and source_key hold the title and
// source id case-folded in Go: SQLite's lower() only folds ASCII. JSON columns hold arrays and objects that
// are always read and written whole, except category_ids which is unioned in
// place with json_each/json_insert.
const schema = `
CREATE TABLE IF NOT EXISTS navigations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	slug       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id              TEXT PRIMARY KEY,
	navigation_id   TEXT NOT NULL REFERENCES navigations(id),
	parent_id       TEXT REFERENCES categories(id),
	title           TEXT NOT NULL,
	slug            TEXT NOT NULL,
	product_count   INTEGER NOT NULL DEFAULT 0,
	last_scraped_at INTEGER,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	UNIQUE (navigation_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_categories_slug ON categories(slug);

CREATE TABLE IF NOT EXISTS products (
	id              TEXT PRIMARY KEY,
	source_id       TEXT UNIQUE,
	source_url      TEXT NOT NULL UNIQUE,
	slug            TEXT NOT NULL,
	title           TEXT NOT NULL,
	price           REAL NOT NULL CHECK (price >= 0),
	currency        TEXT NOT NULL DEFAULT 'GBP',
	image_url       TEXT,
	category_ids    TEXT NOT NULL DEFAULT '[]',
	title_key       TEXT NOT NULL DEFAULT '',
	source_key      TEXT NOT NULL DEFAULT '',
	last_scraped_at INTEGER,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_slug ON products(slug);
CREATE INDEX IF NOT EXISTS idx_products_last_scraped ON products(last_scraped_at);

CREATE TABLE IF NOT EXISTS product_details (
	product_id    TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
	description   TEXT,
	specs         TEXT NOT NULL DEFAULT '{}',
	ratings_avg   REAL,
	reviews_count INTEGER NOT NULL DEFAULT 0,
	author        TEXT,
	image_urls    TEXT NOT NULL DEFAULT '[]',
	conditions    TEXT NOT NULL DEFAULT '[]',
	in_stock      INTEGER NOT NULL DEFAULT 1,
	rrp           REAL,
	series        TEXT,
	scraped_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	id          TEXT PRIMARY KEY,
	target_url  TEXT NOT NULL,
	target_type TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	error_log   TEXT,
	item_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scrape_jobs_started ON scrape_jobs(started_at);
`
