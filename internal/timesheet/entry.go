package timesheet

// Category is the timesheet bucket an entry is booked against.
type Category string

const (
	CategoryMeeting     Category = "meeting"
	CategoryOneOnOne    Category = "one-on-one"
	CategoryDevelopment Category = "development"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMeeting, CategoryOneOnOne, CategoryDevelopment:
		return true
	}
	return false
}

// Entry is one dated block of hours to submit to the HR system. One entry
// may aggregate several hours of the same category.
type Entry struct {
	Date     Date     `json:"date" validate:"required"`
	Hours    float64  `json:"hours" validate:"finite,gte=0"`
	Category Category `json:"category" validate:"category"`
	Note     string   `json:"note,omitempty"`
}

// RemoteEntry is an entry as it exists in the HR system.
type RemoteEntry struct {
	ID       string
	Date     Date
	Hours    float64
	TaskID   int
	Note     string
	Approved bool
}

// TotalHours sums the hours of entries.
func TotalHours(entries []Entry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Hours
	}
	return total
}
