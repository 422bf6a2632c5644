package reports

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"co2nex/carbon-audit/audit-backend/internal/audit/biomass"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/reports/alerts"
)

var (
	ErrNotFound     = errors.New("audit report not found")
	ErrInvalidInput = errors.New("invalid audit request")
)

// AuditRecord is a persisted audit report.
type AuditRecord struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	ProjectID   string       `json:"project_id" db:"project_id"`
	RegionID    string       `json:"region_id" db:"region_id"`
	AsOf        time.Time    `json:"as_of" db:"as_of"`
	Complete    bool         `json:"complete" db:"complete"`
	Report      ReportJSON   `json:"report" db:"report"`
	Archived    ArchivedKeys `json:"archived,omitempty" db:"archived"`
	Alerts      AlertList    `json:"alerts,omitempty" db:"alerts"`
	TriggeredBy string       `json:"triggered_by" db:"triggered_by"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// Trigger sources recorded on AuditRecord.TriggeredBy.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// ReportJSON stores an AuditReport in a JSONB column.
type ReportJSON struct {
	*report.AuditReport
}

// Value implements driver.Valuer
func (r ReportJSON) Value() (driver.Value, error) {
	if r.AuditReport == nil {
		return nil, nil
	}
	return json.Marshal(r.AuditReport)
}

// Scan implements sql.Scanner
func (r *ReportJSON) Scan(value interface{}) error {
	if value == nil {
		r.AuditReport = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported report column type %T", value)
	}
	r.AuditReport = new(report.AuditReport)
	return json.Unmarshal(data, r.AuditReport)
}

// MarshalJSON renders the embedded report, or null.
func (r ReportJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AuditReport)
}

// UnmarshalJSON decodes into a fresh report.
func (r *ReportJSON) UnmarshalJSON(data []byte) error {
	r.AuditReport = new(report.AuditReport)
	return json.Unmarshal(data, r.AuditReport)
}

// ArchivedKeys maps export format to object key.
type ArchivedKeys map[string]string

// Value implements driver.Valuer
func (a ArchivedKeys) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *ArchivedKeys) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, isString := value.(string); isString {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, a)
}

// AlertList stores the alerts raised by an audit in a JSONB column.
type AlertList []alerts.Alert

// Value implements driver.Valuer
func (a AlertList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AlertList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported alerts column type %T", value)
	}
}

// RunAuditRequest is the body of POST /audits.
type RunAuditRequest struct {
	ProjectID      string          `json:"project_id" binding:"required"`
	ProjectName    string          `json:"project_name"`
	Classification string          `json:"classification"`
	Landowner      string          `json:"landowner"`
	RegionID       string          `json:"region_id"`
	Polygon        json.RawMessage `json:"polygon" binding:"required"`
	// AsOf is YYYY-MM-DD. Empty means today.
	AsOf    string         `json:"as_of"`
	Plots   []biomass.Plot `json:"plots,omitempty"`
	Exports []string       `json:"exports,omitempty"`
}

// ListFilters narrows List.
type ListFilters struct {
	ProjectID string
	Page      int
	PageSize  int
}

// ListResponse is a page of audit records.
type ListResponse struct {
	Audits     []*AuditRecord `json:"audits"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalCount int            `json:"total_count"`
}
