package store

// schemaSQL defines the segment table. One segment per message; the session
// field scopes every query to a single conversation. %d is the embedding
// dimension for the HNSW index.
const schemaSQL = `
    DEFINE TABLE IF NOT EXISTS segment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session ON segment TYPE string;
    DEFINE FIELD IF NOT EXISTS text ON segment TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON segment TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS ts ON segment TYPE int;
    DEFINE FIELD IF NOT EXISTS ord ON segment TYPE int;
    DEFINE FIELD IF NOT EXISTS created ON segment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS segment_session ON segment FIELDS session;
    DEFINE INDEX IF NOT EXISTS segment_embedding ON segment FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`
