// Package store database for frames, categories, events and screen types
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aouyang1/inkframe/store/migrations"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// Frames

const frameColumns = `id, id_code, name, ip_address, wake_up_times, active_wake_up_times, screen_type, category_id, active_category_id`

func scanFrame(s scanner) (Frame, error) {
	var f Frame
	var category, active sql.NullInt64
	err := s.Scan(&f.ID, &f.Code, &f.Name, &f.IPAddress, &f.WakeTimes, &f.ActiveWakeTimes, &f.ScreenType, &category, &active)
	f.CategoryID = intPtr(category)
	f.ActiveCategoryID = intPtr(active)
	return f, err
}

func (d *Database) queryFrames(query string, args ...any) ([]Frame, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return frames, nil
}

func (d *Database) ListFrames() ([]Frame, error) {
	return d.queryFrames(`SELECT ` + frameColumns + ` FROM photo_frame ORDER BY id_code`)
}

func (d *Database) GetFrame(id int64) (*Frame, error) {
	f, err := scanFrame(d.db.QueryRow(`SELECT `+frameColumns+` FROM photo_frame WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("frame %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return &f, nil
}

// InsertFrame stores f with its active wake times set to the default wake times
// and no active category.
func (d *Database) InsertFrame(f *Frame) (int64, error) {
	res, err := d.db.Exec(`
		INSERT INTO photo_frame (id_code, name, ip_address, wake_up_times, active_wake_up_times, screen_type, category_id, active_category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		f.Code, f.Name, f.IPAddress, f.WakeTimes, f.WakeTimes, f.ScreenType, nullInt(f.CategoryID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get frame id: %w", err)
	}
	f.ID = id
	f.ActiveWakeTimes = f.WakeTimes
	f.ActiveCategoryID = nil
	return id, nil
}

// UpdateFrame replaces the editable fields of f. Like an insert, it resets the active
// wake times to the defaults and clears any active category override.
func (d *Database) UpdateFrame(f *Frame) error {
	res, err := d.db.Exec(`
		UPDATE photo_frame
		SET id_code = ?, name = ?, ip_address = ?, wake_up_times = ?, active_wake_up_times = ?,
		    screen_type = ?, category_id = ?, active_category_id = NULL
		WHERE id = ?`,
		f.Code, f.Name, f.IPAddress, f.WakeTimes, f.WakeTimes, f.ScreenType, nullInt(f.CategoryID), f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update frame: %w", err)
	}
	if err := expectRow(res, "frame", f.ID); err != nil {
		return err
	}
	f.ActiveWakeTimes = f.WakeTimes
	f.ActiveCategoryID = nil
	return nil
}

func (d *Database) DeleteFrame(id int64) error {
	res, err := d.db.Exec(`DELETE FROM photo_frame WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete frame: %w", err)
	}
	return expectRow(res, "frame", id)
}

// ApplyFrameStates writes the active category and wake times for every state in one
// transaction.
func (d *Database) ApplyFrameStates(states []FrameState) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range states {
		_, err := tx.Exec(
			`UPDATE photo_frame SET active_category_id = ?, active_wake_up_times = ? WHERE id = ?`,
			nullInt(s.ActiveCategoryID), s.ActiveWakeTimes, s.FrameID,
		)
		if err != nil {
			return fmt.Errorf("failed to update frame %s: %w", s.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Categories

func splitFolders(s string) []string {
	var folders []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			folders = append(folders, f)
		}
	}
	return folders
}

func (d *Database) ListCategories() ([]Category, error) {
	rows, err := d.db.Query(`SELECT id, name, linked_folders FROM category ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		var folders string
		if err := rows.Scan(&c.ID, &c.Name, &folders); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.LinkedFolders = splitFolders(folders)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return categories, nil
}

func (d *Database) GetCategory(id int64) (*Category, error) {
	var c Category
	var folders string
	err := d.db.QueryRow(`SELECT id, name, linked_folders FROM category WHERE id = ?`, id).Scan(&c.ID, &c.Name, &folders)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.LinkedFolders = splitFolders(folders)
	return &c, nil
}

func (d *Database) InsertCategory(c *Category) (int64, error) {
	if len(c.LinkedFolders) == 0 {
		return 0, errors.New("category needs at least one linked folder")
	}
	res, err := d.db.Exec(`INSERT INTO category (name, linked_folders) VALUES (?, ?)`, c.Name, strings.Join(c.LinkedFolders, ","))
	if err != nil {
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get category id: %w", err)
	}
	c.ID = id
	return id, nil
}

func (d *Database) DeleteCategory(id int64) error {
	res, err := d.db.Exec(`DELETE FROM category WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return expectRow(res, "category", id)
}

// Screen types

func (d *Database) ListScreenTypes() ([]ScreenType, error) {
	rows, err := d.db.Query(`SELECT id, name, script_filename, orientation FROM screen_type ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query screen types: %w", err)
	}
	defer rows.Close()

	var types []ScreenType
	for rows.Next() {
		var st ScreenType
		if err := rows.Scan(&st.ID, &st.Name, &st.ScriptFilename, &st.Orientation); err != nil {
			return nil, fmt.Errorf("failed to scan screen type: %w", err)
		}
		types = append(types, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return types, nil
}

func (d *Database) GetScreenTypeByName(name string) (*ScreenType, error) {
	var st ScreenType
	err := d.db.QueryRow(`SELECT id, name, script_filename, orientation FROM screen_type WHERE name = ?`, name).
		Scan(&st.ID, &st.Name, &st.ScriptFilename, &st.Orientation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("screen type %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screen type: %w", err)
	}
	return &st, nil
}

// InsertScreenType adds st unless a screen type with the same name exists. It reports
// whether a row was created.
func (d *Database) InsertScreenType(st *ScreenType) (bool, error) {
	res, err := d.db.Exec(
		`INSERT OR IGNORE INTO screen_type (name, script_filename, orientation) VALUES (?, ?, ?)`,
		st.Name, st.ScriptFilename, st.Orientation,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert screen type: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	st.ID, _ = res.LastInsertId()
	return true, nil
}

func (d *Database) DeleteScreenType(name string) error {
	if _, err := d.db.Exec(`DELETE FROM screen_type WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete screen type: %w", err)
	}
	return nil
}

// Events

func (d *Database) linkedFrameIDs(table, column string, id int64) ([]int64, error) {
	rows, err := d.db.Query(`SELECT frame_id FROM `+table+` WHERE `+column+` = ? ORDER BY frame_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var fid int64
		if err := rows.Scan(&fid); err != nil {
			return nil, fmt.Errorf("failed to scan frame id: %w", err)
		}
		ids = append(ids, fid)
	}
	return ids, rows.Err()
}

func relinkFrames(tx *sql.Tx, table, column string, id int64, frameIDs []int64) error {
	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE `+column+` = ?`, id); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	for _, fid := range frameIDs {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO `+table+` (`+column+`, frame_id) VALUES (?, ?)`, id, fid); err != nil {
			return fmt.Errorf("failed to link frame %d: %w", fid, err)
		}
	}
	return nil
}

func scanEvent(s scanner) (Event, error) {
	var e Event
	var start string
	var end sql.NullString
	var category sql.NullInt64
	if err := s.Scan(&e.ID, &e.Name, &start, &end, &e.WakeTimes, &category); err != nil {
		return e, err
	}
	md, err := ParseMonthDay(start)
	if err != nil {
		return e, err
	}
	e.Start = md
	if end.Valid && end.String != "" {
		md, err := ParseMonthDay(end.String)
		if err != nil {
			return e, err
		}
		e.End = &md
	}
	e.CategoryID = intPtr(category)
	return e, nil
}

const eventColumns = `id, name, start_day_month, end_day_month, event_times, category_id`

func (d *Database) ListEvents() ([]Event, error) {
	rows, err := d.db.Query(`SELECT ` + eventColumns + ` FROM event ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			// a malformed row must not hide the others
			slog.Warn("skipping unreadable event", "error", err)
			continue
		}
		events = append(events, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for i := range events {
		ids, err := d.linkedFrameIDs("event_frame", "event_id", events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].FrameIDs = ids
	}
	return events, nil
}

func (d *Database) GetEvent(id int64) (*Event, error) {
	e, err := scanEvent(d.db.QueryRow(`SELECT `+eventColumns+` FROM event WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if e.FrameIDs, err = d.linkedFrameIDs("event_frame", "event_id", id); err != nil {
		return nil, err
	}
	return &e, nil
}

func endString(md *MonthDay) any {
	if md == nil {
		return nil
	}
	return md.String()
}

func (d *Database) InsertEvent(e *Event) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO event (name, start_day_month, end_day_month, event_times, category_id) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.Start.String(), endString(e.End), e.WakeTimes, nullInt(e.CategoryID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event id: %w", err)
	}
	if err := relinkFrames(tx, "event_frame", "event_id", id, e.FrameIDs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	e.ID = id
	return id, nil
}

func (d *Database) UpdateEvent(e *Event) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE event SET name = ?, start_day_month = ?, end_day_month = ?, event_times = ?, category_id = ? WHERE id = ?`,
		e.Name, e.Start.String(), endString(e.End), e.WakeTimes, nullInt(e.CategoryID), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if err := expectRow(res, "event", e.ID); err != nil {
		return err
	}
	if err := relinkFrames(tx, "event_frame", "event_id", e.ID, e.FrameIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *Database) DeleteEvent(id int64) error {
	res, err := d.db.Exec(`DELETE FROM event WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return expectRow(res, "event", id)
}

// EventFrames returns the frames linked to an event.
func (d *Database) EventFrames(eventID int64) ([]Frame, error) {
	return d.queryFrames(`
		SELECT `+prefixed("f", frameColumns)+`
		FROM photo_frame f JOIN event_frame ef ON ef.frame_id = f.id
		WHERE ef.event_id = ?
		ORDER BY f.id_code`, eventID)
}

// External events

const externalEventColumns = `id, name, linkname, event_times, category_id`

func scanExternalEvent(s scanner) (ExternalEvent, error) {
	var e ExternalEvent
	var category sql.NullInt64
	err := s.Scan(&e.ID, &e.Name, &e.LinkName, &e.WakeTimes, &category)
	e.CategoryID = intPtr(category)
	return e, err
}

func (d *Database) ListExternalEvents() ([]ExternalEvent, error) {
	rows, err := d.db.Query(`SELECT ` + externalEventColumns + ` FROM external_event ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query external events: %w", err)
	}

	var events []ExternalEvent
	for rows.Next() {
		e, err := scanExternalEvent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan external event: %w", err)
		}
		events = append(events, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for i := range events {
		ids, err := d.linkedFrameIDs("external_event_frame", "external_event_id", events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].FrameIDs = ids
	}
	return events, nil
}

func (d *Database) GetExternalEventByLink(linkName string) (*ExternalEvent, error) {
	e, err := scanExternalEvent(d.db.QueryRow(`SELECT `+externalEventColumns+` FROM external_event WHERE linkname = ?`, linkName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("external event %q: %w", linkName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get external event: %w", err)
	}
	if e.FrameIDs, err = d.linkedFrameIDs("external_event_frame", "external_event_id", e.ID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *Database) InsertExternalEvent(e *ExternalEvent) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO external_event (name, linkname, event_times, category_id) VALUES (?, ?, ?, ?)`,
		e.Name, e.LinkName, e.WakeTimes, nullInt(e.CategoryID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert external event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get external event id: %w", err)
	}
	if err := relinkFrames(tx, "external_event_frame", "external_event_id", id, e.FrameIDs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	e.ID = id
	return id, nil
}

func (d *Database) UpdateExternalEvent(e *ExternalEvent) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE external_event SET name = ?, linkname = ?, event_times = ?, category_id = ? WHERE id = ?`,
		e.Name, e.LinkName, e.WakeTimes, nullInt(e.CategoryID), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update external event: %w", err)
	}
	if err := expectRow(res, "external event", e.ID); err != nil {
		return err
	}
	if err := relinkFrames(tx, "external_event_frame", "external_event_id", e.ID, e.FrameIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *Database) DeleteExternalEvent(id int64) error {
	res, err := d.db.Exec(`DELETE FROM external_event WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete external event: %w", err)
	}
	return expectRow(res, "external event", id)
}

// ExternalEventFrames returns the frames linked to an external event.
func (d *Database) ExternalEventFrames(externalEventID int64) ([]Frame, error) {
	return d.queryFrames(`
		SELECT `+prefixed("f", frameColumns)+`
		FROM photo_frame f JOIN external_event_frame xf ON xf.frame_id = f.id
		WHERE xf.external_event_id = ?
		ORDER BY f.id_code`, externalEventID)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func expectRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
