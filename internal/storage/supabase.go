package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore persists job records through the Supabase REST API.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

// NewSupabaseStore wraps a configured Supabase client.
func NewSupabaseStore(client *supabase.Client, table string) *SupabaseStore {
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	return &SupabaseStore{client: client, table: table}
}

// Insert stores a new job row.
func (s *SupabaseStore) Insert(_ context.Context, rec Record) error {
	if _, _, err := s.client.From(s.table).Insert(rec, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("storage: supabase insert job: %w", err)
	}
	return nil
}

// Update patches the set columns of a job row.
func (s *SupabaseStore) Update(_ context.Context, jobID string, u Update) error {
	columns, err := updateColumns(u)
	if err != nil {
		return err
	}
	values := make(map[string]any, len(columns)+1)
	for _, col := range columns {
		values[col.name] = col.value
	}
	// JSON columns are sent as documents, not as quoted strings.
	for _, name := range []string{"request_data", "result_data", "stage_details"} {
		if raw, ok := values[name].(*string); ok && raw != nil {
			values[name] = json.RawMessage(*raw)
		}
	}
	values["updated_at"] = "now()"

	data, _, err := s.client.From(s.table).
		Update(values, "representation", "").
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("storage: supabase update job: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("storage: supabase parse update: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a job row.
func (s *SupabaseStore) Get(_ context.Context, jobID string) (Record, error) {
	data, _, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return Record{}, fmt.Errorf("storage: supabase get job: %w", err)
	}

	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return Record{}, fmt.Errorf("storage: supabase parse job: %w", err)
	}
	if len(rows) == 0 {
		return Record{}, ErrNotFound
	}
	return rows[0], nil
}

// Close satisfies the Store interface; the REST client holds no connections.
func (s *SupabaseStore) Close() {}
