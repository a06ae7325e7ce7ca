package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixChallan = "DC"
	PrefixReturn  = "MR"
	PrefixOrder   = "SO"
	PrefixInvoice = "INV"
	PrefixJournal = "JV"
)

// NewDocumentNumber builds e.g. DC-20240301-1A2B3C4D.
func NewDocumentNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}
