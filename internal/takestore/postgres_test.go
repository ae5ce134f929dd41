package takestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows over in-memory rows.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return assign(r.data[r.idx-1], dest)
}

// assign copies row values into scan destinations.
func assign(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
				if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS takes") || !strings.Contains(sql, "BYTEA") {
					t.Errorf("Migrate SQL = %s", sql)
				}
				return pgconn.CommandTag{}, nil
			},
		}
		if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("connection refused")
			},
		}
		err := NewPostgresStore(db).Migrate(context.Background())
		if err == nil || !strings.HasPrefix(err.Error(), "takestore: migrate:") {
			t.Errorf("Migrate err = %v", err)
		}
	})
}

func TestPostgresStore_Put(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var (
			capturedSQL  string
			capturedArgs []any
		)
		db := &mockDB{
			execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				capturedSQL, capturedArgs = sql, args
				return pgconn.NewCommandTag("INSERT 0 1"), nil
			},
		}
		s := NewPostgresStore(db)
		s.now = fixedClock()

		tk := &Take{SessionID: "s1", WAV: testWAV(t, 441)}
		if err := s.Put(context.Background(), tk); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if !strings.Contains(capturedSQL, "INSERT INTO takes") || !strings.Contains(capturedSQL, "ON CONFLICT (id)") {
			t.Errorf("SQL = %s", capturedSQL)
		}
		if len(capturedArgs) != 8 {
			t.Fatalf("args = %d, want 8", len(capturedArgs))
		}
		if capturedArgs[0] != tk.ID || capturedArgs[1] != "s1" || capturedArgs[2] != 22050 || capturedArgs[4] != 441 {
			t.Errorf("args = %v", capturedArgs[:6])
		}
	})

	t.Run("invalid wav never reaches db", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				t.Error("Exec called for invalid take")
				return pgconn.CommandTag{}, nil
			},
		}
		if err := NewPostgresStore(db).Put(context.Background(), &Take{WAV: []byte("RIFF")}); err == nil {
			t.Fatal("Put should fail")
		}
	})

	t.Run("db error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("disk full")
			},
		}
		err := NewPostgresStore(db).Put(context.Background(), &Take{ID: "t1", WAV: testWAV(t, 1)})
		if err == nil || !strings.Contains(err.Error(), `takestore: put "t1"`) {
			t.Errorf("Put err = %v", err)
		}
	})
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	body := []byte("wav-bytes")

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
				if args[0] != "t1" {
					t.Errorf("id arg = %v", args[0])
				}
				return &mockRow{scanFunc: func(dest ...any) error {
					return assign([]any{"t1", "s1", 22050, 1, 100, 244, body, created}, dest)
				}}
			},
		}
		tk, err := NewPostgresStore(db).Get(context.Background(), "t1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if tk.ID != "t1" || tk.SessionID != "s1" || tk.Frames != 100 || string(tk.WAV) != "wav-bytes" || !tk.CreatedAt.Equal(created) {
			t.Errorf("Get = %+v", tk)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, err := NewPostgresStore(&mockDB{}).Get(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("db error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(context.Context, string, ...any) pgx.Row {
				return &mockRow{scanFunc: func(...any) error { return errors.New("timeout") }}
			},
		}
		_, err := NewPostgresStore(db).Get(context.Background(), "t1")
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want wrapped db error", err)
		}
	})
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	t.Run("by session", func(t *testing.T) {
		t.Parallel()
		rows := &mockRows{data: [][]any{
			{"t1", "s1", 22050, 1, 10, 64, created},
			{"t2", "s1", 22050, 1, 20, 84, created.Add(time.Second)},
		}}
		var capturedSQL string
		db := &mockDB{
			queryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
				capturedSQL = sql
				if len(args) != 1 || args[0] != "s1" {
					t.Errorf("args = %v", args)
				}
				return rows, nil
			},
		}
		takes, err := NewPostgresStore(db).List(context.Background(), "s1")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(takes) != 2 || takes[0].ID != "t1" || takes[1].Frames != 20 {
			t.Errorf("List = %+v", takes)
		}
		if strings.Contains(capturedSQL, "wav,") || !strings.Contains(capturedSQL, "WHERE session_id = $1") {
			t.Errorf("SQL = %s", capturedSQL)
		}
		if !rows.closed {
			t.Error("rows not closed")
		}
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
				if len(args) != 0 || strings.Contains(sql, "WHERE") {
					t.Errorf("unexpected filter: %s %v", sql, args)
				}
				return &mockRows{}, nil
			},
		}
		takes, err := NewPostgresStore(db).List(context.Background(), "")
		if err != nil || len(takes) != 0 {
			t.Errorf("List = %v, %v", takes, err)
		}
	})

	t.Run("rows error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{err: errors.New("conn reset")}, nil
			},
		}
		if _, err := NewPostgresStore(db).List(context.Background(), ""); err == nil {
			t.Error("List should surface rows.Err")
		}
	})
}

func TestPostgresStore_Delete(t *testing.T) {
	t.Parallel()
	var capturedArgs []any
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if !strings.Contains(sql, "DELETE FROM takes") {
				t.Errorf("SQL = %s", sql)
			}
			capturedArgs = args
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	if err := NewPostgresStore(db).Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(capturedArgs) != 1 || capturedArgs[0] != "t1" {
		t.Errorf("args = %v", capturedArgs)
	}
}
