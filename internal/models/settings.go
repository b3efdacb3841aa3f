package models

import "gorm.io/gorm"

// ReimbursementAmounts maps each travel reimbursement class to the
// amount (EUR) granted per participant.
type ReimbursementAmounts struct {
	Finland      int `gorm:"default:20" json:"finland"`
	Baltics      int `gorm:"default:40" json:"baltics"`
	Nordics      int `gorm:"default:60" json:"nordics"`
	Europe       int `gorm:"default:80" json:"europe"`
	RestOfWorld  int `gorm:"default:150" json:"rest_of_world"`
	GoldenTicket int `gorm:"default:200" json:"golden_ticket"`
}

// Settings is the single-row configuration record for the event.
// All timestamps are epoch milliseconds.
type Settings struct {
	gorm.Model
	TimeOpen           int64 `json:"time_open"`
	TimeClose          int64 `json:"time_close"`
	TimeCloseSpecial   int64 `json:"time_close_special"`
	TimeConfirm        int64 `json:"time_confirm"`
	TimeConfirmSpecial int64 `json:"time_confirm_special"`
	TimeTR             int64 `json:"time_tr"` // travel reimbursement deadline

	WaitlistText     string `json:"waitlist_text"`
	AcceptanceText   string `json:"acceptance_text"`
	ConfirmationText string `json:"confirmation_text"`
	ShowRejection    bool   `json:"show_rejection"`

	Reimbursement ReimbursementAmounts `gorm:"embedded;embeddedPrefix:reimbursement_" json:"reimbursement_class"`
}
