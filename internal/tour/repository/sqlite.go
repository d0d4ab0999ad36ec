package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tour-engine/internal/tour/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ============================================================
// Property Store
// ============================================================

// PropertyStore is the read side the tour engine consumes.
type PropertyStore interface {
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	ListProperties(ctx context.Context) ([]Summary, error)
}

// Summary is a property listing entry.
type Summary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Has3DTour  bool   `json:"has3DTour"`
	Has3DModel bool   `json:"has3DModel"`
	Rooms      int    `json:"rooms"`
	Models     int    `json:"models"`
}

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init applies the embedded migrations in name order.
func (r *Repository) Init(ctx context.Context) error {
	if err := r.runMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (r *Repository) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, title, has_3d_tour, has_3d_model
        FROM properties
        WHERE id = ?
    `, id)

	var p models.Property
	if err := row.Scan(&p.ID, &p.Title, &p.Has3DTour, &p.Has3DModel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}

	rooms, err := r.loadRooms(ctx, id)
	if err != nil {
		return nil, err
	}
	p.TourRooms = rooms

	list, err := r.loadModels(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Models3D = list
	return &p, nil
}

func (r *Repository) ListProperties(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT p.id, p.title, p.has_3d_tour, p.has_3d_model,
               (SELECT COUNT(*) FROM rooms WHERE property_id = p.id),
               (SELECT COUNT(*) FROM models WHERE property_id = p.id)
        FROM properties p
        ORDER BY p.created_at, p.id
    `)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Has3DTour, &s.Has3DModel, &s.Rooms, &s.Models); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveProperty replaces the property with its rooms and models.
func (r *Repository) SaveProperty(ctx context.Context, p *models.Property) error {
	if p.ID == "" {
		return errors.New("property: empty id")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO properties (id, title, has_3d_tour, has_3d_model)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            has_3d_tour = excluded.has_3d_tour,
            has_3d_model = excluded.has_3d_model
    `, p.ID, p.Title, p.Has3DTour, p.Has3DModel)
	if err != nil {
		return fmt.Errorf("save property: %w", err)
	}

	for _, table := range []string{"rooms", "models"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE property_id = ?", p.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, room := range p.TourRooms {
		connections, features, devices, err := encodeLists(room)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO rooms (property_id, id, position, name, panorama_image, is_main, description,
                               image_quality, connections, features, supported_devices)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `, p.ID, room.ID, i, room.Name, room.PanoramaImage, room.IsMain, room.Description,
			room.ImageQuality, connections, features, devices)
		if err != nil {
			return fmt.Errorf("save room %s: %w", room.ID, err)
		}
	}

	for i, m := range p.Models3D {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode model %s: %w", m.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO models (property_id, id, position, payload)
            VALUES (?, ?, ?, ?)
        `, p.ID, m.ID, i, string(payload))
		if err != nil {
			return fmt.Errorf("save model %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func (r *Repository) DeleteProperty(ctx context.Context, id string) error {
	for _, q := range []string{
		"DELETE FROM rooms WHERE property_id = ?",
		"DELETE FROM models WHERE property_id = ?",
		"DELETE FROM properties WHERE id = ?",
	} {
		if _, err := r.db.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete property %s: %w", id, err)
		}
	}
	return nil
}

func (r *Repository) loadRooms(ctx context.Context, propertyID string) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, panorama_image, is_main, description, image_quality,
               connections, features, supported_devices
        FROM rooms
        WHERE property_id = ?
        ORDER BY position
    `, propertyID)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var room models.Room
		var connections, features, devices string
		if err := rows.Scan(&room.ID, &room.Name, &room.PanoramaImage, &room.IsMain, &room.Description,
			&room.ImageQuality, &connections, &features, &devices); err != nil {
			return nil, err
		}
		if err := decodeList(connections, &room.Connections); err != nil {
			return nil, fmt.Errorf("room %s connections: %w", room.ID, err)
		}
		if err := decodeList(features, &room.Features); err != nil {
			return nil, fmt.Errorf("room %s features: %w", room.ID, err)
		}
		if err := decodeList(devices, &room.SupportedDevices); err != nil {
			return nil, fmt.Errorf("room %s devices: %w", room.ID, err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *Repository) loadModels(ctx context.Context, propertyID string) ([]models.Model3D, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT payload FROM models WHERE property_id = ? ORDER BY position
    `, propertyID)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	defer rows.Close()

	var out []models.Model3D
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m models.Model3D
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func encodeLists(room models.Room) (connections, features, devices string, err error) {
	enc := func(v []string) (string, error) {
		if v == nil {
			v = []string{}
		}
		b, err := json.Marshal(v)
		return string(b), err
	}
	if connections, err = enc(room.Connections); err != nil {
		return
	}
	if features, err = enc(room.Features); err != nil {
		return
	}
	devices, err = enc(room.SupportedDevices)
	return
}

// decodeList leaves dst nil for an empty list.
func decodeList(raw string, dst *[]string) error {
	var v []string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	if len(v) > 0 {
		*dst = v
	}
	return nil
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// OpenSQLite opens the database at dbPath, creating its directory.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
