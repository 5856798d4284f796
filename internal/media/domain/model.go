package domain

import (
	"io"
	"time"
)

// ProductImage is one occupied slot of a product. Videos are stored here too.
type ProductImage struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ProductID int64     `json:"product_id" gorm:"column:product_id;not null;uniqueIndex:ux_product_images_position,priority:1"`
	URL       string    `json:"url" gorm:"column:url;type:text;not null"`
	Position  int       `json:"position" gorm:"column:position;not null;uniqueIndex:ux_product_images_position,priority:2"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductImage) TableName() string { return "product_images" }

// PendingFile is a selected file that has not been uploaded yet.
type PendingFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type PendingUpload struct {
	File     *PendingFile
	Position int
}

type UploadResult struct {
	URL      string
	Position int
}

// ReconcileRequest describes the desired media of a product. FeaturedSlot is
// a 0-based index into the slot array.
type ReconcileRequest struct {
	ProductID    int64
	Existing     []string
	Pending      []*PendingFile
	FeaturedSlot int
}

// SlotView is the client representation of one slot.
type SlotView struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type,omitempty"`
}

// NewSlotViews renders MaxSlots entries with nil holes.
func NewSlotViews(slots SlotArray[string]) []*SlotView {
	views := make([]*SlotView, MaxSlots)
	for _, entry := range slots.CompactedEntries() {
		view := &SlotView{Position: entry.Position, URL: entry.Value, Type: ReferenceType(entry.Value)}
		if view.Type == TypeVideo {
			view.MimeType = VideoMimeType(entry.Value)
		}
		views[entry.Position-1] = view
	}
	return views
}
