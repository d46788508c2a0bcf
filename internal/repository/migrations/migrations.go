package migrations

import (
	"fmt"
)

const TraceCollection = "trace_log"

// PostgreSQL migrations
var PostgresSchema = `
CREATE TABLE IF NOT EXISTS trace_log (
    id UUID PRIMARY KEY,
    request_id TEXT NOT NULL,
    kind VARCHAR(10) NOT NULL, -- 'request', 'response' or 'error'
    timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
    method VARCHAR(16),
    url TEXT,
    status_code INTEGER,
    error TEXT,
    headers JSONB,
    body BYTEA,
    duration_ms DOUBLE PRECISION,
    operation_name TEXT,
    query TEXT,
    variables JSONB
);

CREATE INDEX IF NOT EXISTS idx_trace_log_request_id ON trace_log(request_id);
CREATE INDEX IF NOT EXISTS idx_trace_log_kind ON trace_log(kind);
CREATE INDEX IF NOT EXISTS idx_trace_log_timestamp ON trace_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_trace_log_operation ON trace_log(operation_name) WHERE operation_name IS NOT NULL;
`

// OracleStatements are run one by one; go-ora does not accept scripts.
// ORA-00955 (name already used) is ignored so migrations are repeatable.
var OracleStatements = []string{
	`CREATE TABLE trace_log (
        id VARCHAR2(36) PRIMARY KEY,
        request_id VARCHAR2(255) NOT NULL,
        kind VARCHAR2(10) NOT NULL,
        timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
        method VARCHAR2(16),
        url CLOB,
        status_code NUMBER,
        error CLOB,
        headers CLOB,
        body BLOB,
        duration_ms BINARY_DOUBLE,
        operation_name VARCHAR2(255),
        query CLOB,
        variables CLOB
    )`,
	`CREATE INDEX idx_trace_log_request_id ON trace_log(request_id)`,
	`CREATE INDEX idx_trace_log_kind ON trace_log(kind)`,
	`CREATE INDEX idx_trace_log_timestamp ON trace_log(timestamp)`,
}

// Couchbase indexes
func GetCouchbaseIndexes(bucketName string) []string {
	return []string{
		fmt.Sprintf("CREATE PRIMARY INDEX IF NOT EXISTS ON `%s`", bucketName),
		fmt.Sprintf("CREATE INDEX idx_trace_request_id IF NOT EXISTS ON `%s`(request_id)", bucketName),
		fmt.Sprintf("CREATE INDEX idx_trace_kind IF NOT EXISTS ON `%s`(kind)", bucketName),
		fmt.Sprintf("CREATE INDEX idx_trace_timestamp IF NOT EXISTS ON `%s`(timestamp)", bucketName),
	}
}
