package mysql

const insertSearchLogSQL = `
INSERT INTO search_logs
  (query, model, strategy, filters, result_count, listing_ids, took_ms, reason, created_at)
VALUES
  (:query, :model, :strategy, :filters, :result_count, :listing_ids, :took_ms, :reason, :created_at)
`

// Newest first; aligns with idx_search_logs_created.
const recentSearchLogsSQL = `
SELECT query, model, strategy, filters, result_count, listing_ids, took_ms, reason, created_at
FROM search_logs
ORDER BY created_at DESC, id DESC
LIMIT ?
`
