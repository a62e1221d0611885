package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{"v1", "v2"} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "plants"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext: %v", err)
		}
	}
	if len(conn.Tables["state"]) != 1 {
		t.Fatalf("expected upsert to keep one row, got %v", conn.Tables["state"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "plants" || string(dest[1].([]byte)) != "v2" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBFailureToggles(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailTables = map[string]bool{"plant_events": true}
	if _, err := conn.ExecContext(ctx, "INSERT INTO plant_events(seq) VALUES($1)", []driver.NamedValue{{Value: int64(1)}}); err == nil {
		t.Fatalf("expected table failure")
	}
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	if _, err := conn.QueryContext(ctx, "DROP TABLE state", nil); err == nil {
		t.Fatalf("expected parse failure")
	}
}
