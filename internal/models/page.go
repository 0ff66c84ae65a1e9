package models

import (
	"time"

	"gorm.io/datatypes"
)

// Page themes selectable in the editor.
const (
	ThemeDefault  = "default"
	ThemeMidnight = "midnight"
	ThemeSunset   = "sunset"
	ThemeForest   = "forest"
	ThemeMono     = "mono"
)

// PageThemes lists all valid theme names.
var PageThemes = []string{ThemeDefault, ThemeMidnight, ThemeSunset, ThemeForest, ThemeMono}

// ValidTheme reports whether name is a known page theme.
func ValidTheme(name string) bool {
	for _, t := range PageThemes {
		if t == name {
			return true
		}
	}
	return false
}

// Page is a user's public link-in-bio profile. At most one per user.
type Page struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user, one page each.
	User   *User  `gorm:"foreignKey:UserID"`    // Owning user record.

	Username    string `gorm:"type:text;not null;uniqueIndex"` // Public handle, lowercase.
	DisplayName string `gorm:"type:text"`                      // Title shown on the page.
	Bio         string `gorm:"type:text"`                      // Short description.
	Theme       string `gorm:"type:text;not null;default:default"` // One of PageThemes.

	// Links holds the ordered link entries as
	// [{"title": "...", "url": "...", "icon": "...", "order": 0}].
	Links datatypes.JSON `gorm:"type:jsonb"`

	Published bool   `gorm:"not null;default:false"` // Whether the page is publicly visible.
	Views     uint64 `gorm:"not null;default:0"`     // View counter.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// PageLink is one entry in a page's link list.
type PageLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

// ViewEvent records a single public view of a page.
type ViewEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PageID uint64 `gorm:"not null;index"` // Viewed page.
	UserID uint64 `gorm:"not null;index"` // Page owner, denormalized for analytics scans.

	OccurredAt time.Time `gorm:"not null;index"` // View timestamp.
}
