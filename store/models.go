package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frame is an e-paper display identified by a 3 character code.
type Frame struct {
	ID               int64  `json:"id"`
	Code             string `json:"id_code"`
	Name             string `json:"name"`
	IPAddress        string `json:"ip_address"`
	WakeTimes        string `json:"wake_up_times"`
	ActiveWakeTimes  string `json:"active_wake_up_times"`
	ScreenType       string `json:"screen_type"`
	CategoryID       *int64 `json:"category_id"`        // default category
	ActiveCategoryID *int64 `json:"active_category_id"` // event override, nil when none
}

// EffectiveCategoryID resolves the category used for dispatch: the active override when
// set, otherwise the frame's default category. It returns nil when neither is set.
func (f Frame) EffectiveCategoryID() *int64 {
	if f.ActiveCategoryID != nil {
		return f.ActiveCategoryID
	}
	return f.CategoryID
}

// Category is a named, ordered set of image folder labels.
type Category struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	LinkedFolders []string `json:"linked_folders"`
}

// Event is a recurring annual override of linked frames' category and wake times.
type Event struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Start      MonthDay  `json:"start_day_month"`
	End        *MonthDay `json:"end_day_month"`
	WakeTimes  string    `json:"event_times"`
	CategoryID *int64    `json:"category_id"`
	FrameIDs   []int64   `json:"frame_ids"`
}

// ExternalEvent is an override switched on and off through its link name.
type ExternalEvent struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	LinkName   string  `json:"linkname"`
	WakeTimes  string  `json:"event_times"`
	CategoryID *int64  `json:"category_id"`
	FrameIDs   []int64 `json:"frame_ids"`
}

// ScreenType names the render script and orientation for a kind of display.
type ScreenType struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ScriptFilename string `json:"script_filename"`
	Orientation    string `json:"orientation"`
}

// FrameState is the derived state an activation writes for one frame.
type FrameState struct {
	FrameID          int64
	Code             string
	ActiveCategoryID *int64
	ActiveWakeTimes  string
}

// MonthDay is a yearless calendar date such as 07-01.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay accepts "MM-DD" with or without zero padding.
func ParseMonthDay(s string) (MonthDay, error) {
	monthStr, dayStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return MonthDay{}, fmt.Errorf("invalid month-day %q: want MM-DD", s)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return MonthDay{}, fmt.Errorf("invalid month in %q", s)
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > daysIn(time.Month(month)) {
		return MonthDay{}, fmt.Errorf("invalid day in %q", s)
	}
	return MonthDay{Month: time.Month(month), Day: day}, nil
}

func daysIn(m time.Month) int {
	// leap year so 02-29 is accepted
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Matches reports whether t falls on this month and day.
func (md MonthDay) Matches(t time.Time) bool {
	return t.Month() == md.Month && t.Day() == md.Day
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

func (md MonthDay) MarshalText() ([]byte, error) {
	return []byte(md.String()), nil
}

func (md *MonthDay) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthDay(string(text))
	if err != nil {
		return err
	}
	*md = parsed
	return nil
}
