package importer

import (
	"github.com/google/uuid"

	"github.com/prospectlab/prospector/domain/mining"
)

// ImportRequest is the POST /import-all body. ListName is optional;
// without it prospects are imported tagless of any list.
type ImportRequest struct {
	ListName string   `json:"list_name,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ImportResponse acknowledges a started import. Clients poll the job for
// progress.
type ImportResponse struct {
	Status        string       `json:"status"`
	JobID         uuid.UUID    `json:"job_id"`
	TotalToImport int          `json:"total_to_import"`
	TagsApplied   []string     `json:"tags_applied,omitempty"`
	ListCreated   *mining.List `json:"list_created,omitempty"`
}
