package store

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aouyang1/inkframe/store/migrations"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "nested", "inkframe.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(v int64) *int64 { return &v }

func TestNewDatabase_SeedsDefaults(t *testing.T) {
	db := newTestDB(t)

	st, err := db.GetScreenTypeByName("6 Color Spectra 7.3 inch Horizontal")
	if err != nil {
		t.Fatalf("GetScreenTypeByName() error = %v", err)
	}
	if st.ScriptFilename != "6color73i.py" || st.Orientation != "Horizontal" {
		t.Errorf("seeded screen type = %+v", st)
	}

	categories, err := db.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(categories) != 1 || categories[0].Name != "default" {
		t.Fatalf("categories = %+v, want one default", categories)
	}
	if !slices.Equal(categories[0].LinkedFolders, []string{"Local - default"}) {
		t.Errorf("LinkedFolders = %v", categories[0].LinkedFolders)
	}

	version, dirty, err := migrations.Version(db.db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Version() = %d, %v, want 1, false", version, dirty)
	}
}

func TestNewDatabase_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkframe.db")
	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	if _, err := db.InsertFrame(&Frame{Code: "A01", Name: "Hall", ScreenType: "x"}); err != nil {
		t.Fatalf("InsertFrame() error = %v", err)
	}
	db.Close()

	db, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("second NewDatabase() error = %v", err)
	}
	defer db.Close()

	frames, err := db.ListFrames()
	if err != nil {
		t.Fatalf("ListFrames() error = %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("len(frames) = %d, want 1", len(frames))
	}
}

func TestFrames_CRUD(t *testing.T) {
	db := newTestDB(t)
	catID, err := db.InsertCategory(&Category{Name: "beach", LinkedFolders: []string{"Shared - Beach"}})
	if err != nil {
		t.Fatalf("InsertCategory() error = %v", err)
	}

	f := &Frame{Code: "K01", Name: "Kitchen", IPAddress: "10.0.0.5", WakeTimes: "6,18", ScreenType: "x", CategoryID: ptr(catID)}
	id, err := db.InsertFrame(f)
	if err != nil {
		t.Fatalf("InsertFrame() error = %v", err)
	}

	got, err := db.GetFrame(id)
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	if got.ActiveWakeTimes != "6,18" {
		t.Errorf("ActiveWakeTimes = %q, want defaults", got.ActiveWakeTimes)
	}
	if got.CategoryID == nil || *got.CategoryID != catID || got.ActiveCategoryID != nil {
		t.Errorf("categories = %v / %v", got.CategoryID, got.ActiveCategoryID)
	}

	if err := db.ApplyFrameStates([]FrameState{{FrameID: id, Code: "K01", ActiveCategoryID: ptr(catID), ActiveWakeTimes: "9"}}); err != nil {
		t.Fatalf("ApplyFrameStates() error = %v", err)
	}

	got.WakeTimes = "7"
	if err := db.UpdateFrame(got); err != nil {
		t.Fatalf("UpdateFrame() error = %v", err)
	}
	got, _ = db.GetFrame(id)
	if got.ActiveWakeTimes != "7" || got.ActiveCategoryID != nil {
		t.Errorf("after update = %+v, want active state reset", got)
	}

	if _, err := db.InsertFrame(&Frame{Code: "K01", Name: "dup", ScreenType: "x"}); err == nil {
		t.Error("InsertFrame() with duplicate code error = nil")
	}

	if err := db.DeleteFrame(id); err != nil {
		t.Fatalf("DeleteFrame() error = %v", err)
	}
	if _, err := db.GetFrame(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFrame() after delete error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteFrame(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteFrame() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCategory_ClearsFrameReferences(t *testing.T) {
	db := newTestDB(t)
	catID, _ := db.InsertCategory(&Category{Name: "xmas", LinkedFolders: []string{"Local - Xmas"}})
	id, _ := db.InsertFrame(&Frame{Code: "B02", Name: "Bedroom", ScreenType: "x", CategoryID: ptr(catID)})

	if err := db.DeleteCategory(catID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	got, err := db.GetFrame(id)
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	if got.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil", *got.CategoryID)
	}
}

func TestEvents_LinksFrames(t *testing.T) {
	db := newTestDB(t)
	a, _ := db.InsertFrame(&Frame{Code: "AAA", Name: "A", ScreenType: "x"})
	b, _ := db.InsertFrame(&Frame{Code: "BBB", Name: "B", ScreenType: "x"})
	end := MonthDay{Month: 7, Day: 10}

	e := &Event{Name: "summer", Start: MonthDay{Month: 7, Day: 1}, End: &end, WakeTimes: "8,20", FrameIDs: []int64{a}}
	id, err := db.InsertEvent(e)
	if err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}

	events, err := db.ListEvents()
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 || !slices.Equal(events[0].FrameIDs, []int64{a}) {
		t.Fatalf("events = %+v", events)
	}
	if events[0].End == nil || *events[0].End != end {
		t.Errorf("End = %v, want %v", events[0].End, end)
	}

	e.FrameIDs = []int64{a, b}
	e.End = nil
	if err := db.UpdateEvent(e); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	frames, err := db.EventFrames(id)
	if err != nil {
		t.Fatalf("EventFrames() error = %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("len(EventFrames()) = %d, want 2", len(frames))
	}
	got, _ := db.GetEvent(id)
	if got.End != nil {
		t.Errorf("End = %v, want nil", got.End)
	}

	if err := db.DeleteFrame(b); err != nil {
		t.Fatalf("DeleteFrame() error = %v", err)
	}
	got, _ = db.GetEvent(id)
	if !slices.Equal(got.FrameIDs, []int64{a}) {
		t.Errorf("FrameIDs after frame delete = %v", got.FrameIDs)
	}
}

func TestExternalEvents_ByLink(t *testing.T) {
	db := newTestDB(t)
	a, _ := db.InsertFrame(&Frame{Code: "AAA", Name: "A", ScreenType: "x"})

	if _, err := db.InsertExternalEvent(&ExternalEvent{Name: "party", LinkName: "party", WakeTimes: "20", FrameIDs: []int64{a}}); err != nil {
		t.Fatalf("InsertExternalEvent() error = %v", err)
	}

	got, err := db.GetExternalEventByLink("party")
	if err != nil {
		t.Fatalf("GetExternalEventByLink() error = %v", err)
	}
	if !slices.Equal(got.FrameIDs, []int64{a}) {
		t.Errorf("FrameIDs = %v", got.FrameIDs)
	}
	frames, err := db.ExternalEventFrames(got.ID)
	if err != nil || len(frames) != 1 || frames[0].Code != "AAA" {
		t.Errorf("ExternalEventFrames() = %v, %v", frames, err)
	}

	if _, err := db.GetExternalEventByLink("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetExternalEventByLink(nope) error = %v, want ErrNotFound", err)
	}
}

func TestInsertScreenType_IgnoresDuplicate(t *testing.T) {
	db := newTestDB(t)

	created, err := db.InsertScreenType(&ScreenType{Name: "4in Vertical", ScriptFilename: "4in.py", Orientation: "Vertical"})
	if err != nil || !created {
		t.Fatalf("InsertScreenType() = %v, %v", created, err)
	}
	created, err = db.InsertScreenType(&ScreenType{Name: "4in Vertical", ScriptFilename: "other.py", Orientation: "Vertical"})
	if err != nil || created {
		t.Fatalf("duplicate InsertScreenType() = %v, %v, want false, nil", created, err)
	}

	types, _ := db.ListScreenTypes()
	if len(types) != 2 {
		t.Errorf("len(types) = %d, want 2", len(types))
	}
}
