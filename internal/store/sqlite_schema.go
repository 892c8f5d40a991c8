package store

// SQLite schema DDL constants

const schemaObjects = `
CREATE TABLE IF NOT EXISTS objects (
    id TEXT PRIMARY KEY,
    speckle_type TEXT NOT NULL DEFAULT 'Base',
    application_id TEXT,
    description TEXT,
    author TEXT,
    total_children_count INTEGER NOT NULL DEFAULT 0,
    children_count_by_depth TEXT,
    data TEXT,
    created_at DATETIME NOT NULL
)`

const schemaClosures = `
CREATE TABLE IF NOT EXISTS object_children_closure (
    parent TEXT NOT NULL,
    child TEXT NOT NULL,
    min_depth INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (parent, child)
)`

const schemaStreamCommits = `
CREATE TABLE IF NOT EXISTS stream_commits (
    stream_id TEXT NOT NULL,
    commit_id TEXT NOT NULL,
    PRIMARY KEY (stream_id, commit_id)
)`

// Index definitions
const indexClosureParentDepth = `CREATE INDEX IF NOT EXISTS idx_closure_parent_depth ON object_children_closure(parent, min_depth)`
const indexClosureChild = `CREATE INDEX IF NOT EXISTS idx_closure_child ON object_children_closure(child)`
const indexStreamCommitsStream = `CREATE INDEX IF NOT EXISTS idx_stream_commits_stream ON stream_commits(stream_id)`
const indexObjectsSpeckleType = `CREATE INDEX IF NOT EXISTS idx_objects_speckle_type ON objects(speckle_type)`

// SQLite pragmas for concurrent ingestion over one pool
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaFK = `PRAGMA foreign_keys=ON`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaObjects,
		schemaClosures,
		schemaStreamCommits,
		indexClosureParentDepth,
		indexClosureChild,
		indexStreamCommitsStream,
		indexObjectsSpeckleType,
	}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
