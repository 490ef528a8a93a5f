package store

import (
	"time"

	"github.com/veritasai/veritas/internal/core/model"
)

// Record is one completed analysis kept for the history listing and the
// export endpoints. Demo marks results served from the bundled dataset.
type Record struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	Source    string               `json:"source"`
	Demo      bool                 `json:"demo"`
	Result    model.AnalysisResult `json:"result"`
}

// Store keeps recent analysis records. Implementations must be safe for
// concurrent use by the HTTP handlers.
type Store interface {
	Save(rec Record)
	Get(id string) (Record, bool)
	List() []Record
}
