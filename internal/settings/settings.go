// Package settings exposes the event configuration record to the rest
// of the application. The admission and team engines consume the
// registration window read-only to gate time-bounded transitions.
package settings

import (
	"gorm.io/gorm"

	"hackreg/backend/internal/models"
)

// RegistrationTimes are the deadlines gating registration, admission
// confirmation and travel reimbursement. All values are epoch ms.
type RegistrationTimes struct {
	TimeOpen           int64 `json:"time_open"`
	TimeClose          int64 `json:"time_close"`
	TimeCloseSpecial   int64 `json:"time_close_special"`
	TimeConfirm        int64 `json:"time_confirm"`
	TimeConfirmSpecial int64 `json:"time_confirm_special"`
	TimeTR             int64 `json:"time_tr"`
}

// Service reads and updates the singleton settings row.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RegistrationTimes returns the current registration window.
func (s *Service) RegistrationTimes() (RegistrationTimes, error) {
	var row models.Settings
	if err := s.db.First(&row).Error; err != nil {
		return RegistrationTimes{}, err
	}
	return RegistrationTimes{
		TimeOpen:           row.TimeOpen,
		TimeClose:          row.TimeClose,
		TimeCloseSpecial:   row.TimeCloseSpecial,
		TimeConfirm:        row.TimeConfirm,
		TimeConfirmSpecial: row.TimeConfirmSpecial,
		TimeTR:             row.TimeTR,
	}, nil
}

// Public returns the full settings record.
func (s *Service) Public() (models.Settings, error) {
	var row models.Settings
	err := s.db.First(&row).Error
	return row, err
}

// Update overwrites the editable settings fields.
func (s *Service) Update(in models.Settings) (models.Settings, error) {
	var row models.Settings
	if err := s.db.First(&row).Error; err != nil {
		return row, err
	}
	err := s.db.Model(&row).Updates(map[string]interface{}{
		"time_open":            in.TimeOpen,
		"time_close":           in.TimeClose,
		"time_close_special":   in.TimeCloseSpecial,
		"time_confirm":         in.TimeConfirm,
		"time_confirm_special": in.TimeConfirmSpecial,
		"time_tr":              in.TimeTR,
		"waitlist_text":        in.WaitlistText,
		"acceptance_text":      in.AcceptanceText,
		"confirmation_text":    in.ConfirmationText,
		"show_rejection":       in.ShowRejection,
	}).Error
	return row, err
}
