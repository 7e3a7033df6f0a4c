package models

import "time"

// RawEmail represents a raw email message fetched from the mail source
type RawEmail struct {
	ID         string // Message-ID header, or folder:uid when missing
	UID        uint32
	Folder     string
	Subject    string
	Sender     string // sender address
	SenderName string
	Date       time.Time
	BodyText   string
	BodyHTML   string
}
