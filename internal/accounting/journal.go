package accounting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTooFewLines   = errors.New("a journal entry needs at least two lines")
	ErrLineSide      = errors.New("each line needs exactly one of debit or credit")
	ErrNegativeLine  = errors.New("debit and credit cannot be negative")
	ErrLinePrecision = errors.New("debit and credit carry at most 4 decimal places")
	ErrUnbalanced    = errors.New("total debit must equal total credit")
	ErrAccountCode   = errors.New("account code is required")
	ErrEntryNotFound = errors.New("journal entry not found")
)

type LineInput struct {
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// ValidateLines returns the entry total when the lines balance.
func ValidateLines(lines []LineInput) (decimal.Decimal, error) {
	if len(lines) < 2 {
		return decimal.Zero, ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for i, ln := range lines {
		if strings.TrimSpace(ln.AccountCode) == "" {
			return decimal.Zero, fmt.Errorf("line %d: %w", i+1, ErrAccountCode)
		}
		if ln.Debit.IsNegative() || ln.Credit.IsNegative() {
			return decimal.Zero, fmt.Errorf("line %d: %w", i+1, ErrNegativeLine)
		}
		if !models.FitsMoneyScale(ln.Debit) || !models.FitsMoneyScale(ln.Credit) {
			return decimal.Zero, fmt.Errorf("line %d: %w", i+1, ErrLinePrecision)
		}
		if ln.Debit.IsPositive() == ln.Credit.IsPositive() {
			return decimal.Zero, fmt.Errorf("line %d: %w", i+1, ErrLineSide)
		}
		debit = debit.Add(ln.Debit)
		credit = credit.Add(ln.Credit)
	}
	if !debit.Equal(credit) {
		return decimal.Zero, fmt.Errorf("%w (debit %s, credit %s)", ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return debit, nil
}

type EntryInput struct {
	Date      time.Time
	Memo      string
	Reference string
	Lines     []LineInput
}

func CreateEntry(db *gorm.DB, actor auth.Actor, in EntryInput) (*models.JournalEntry, error) {
	total, err := ValidateLines(in.Lines)
	if err != nil {
		return nil, err
	}
	entry := models.JournalEntry{
		EntryNumber: models.NewDocumentNumber(models.PrefixJournal, in.Date),
		Date:        in.Date,
		Memo:        in.Memo,
		Reference:   in.Reference,
		CreatedBy:   actor.ID,
	}
	for _, ln := range in.Lines {
		entry.Lines = append(entry.Lines, models.JournalLine{
			AccountCode: strings.TrimSpace(ln.AccountCode),
			Description: ln.Description,
			Debit:       ln.Debit,
			Credit:      ln.Credit,
		})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityJournalEntry,
			EntityID:    entry.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Journal entry %s posted (%s)", entry.EntryNumber, total.StringFixed(2)),
			After:       entry,
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func DeleteEntry(db *gorm.DB, actor auth.Actor, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var entry models.JournalEntry
		err := tx.Preload("Lines").First(&entry, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&models.JournalLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.JournalEntry{}, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityJournalEntry,
			EntityID:    entry.ID,
			Action:      models.AuditActionDelete,
			Description: "Journal entry deleted: " + entry.EntryNumber,
			Before:      entry,
		})
	})
}

// AccountBalance is one row of the trial balance.
type AccountBalance struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// TrialBalance sums the lines per account for entries dated up to asOf.
func TrialBalance(db *gorm.DB, asOf time.Time) ([]AccountBalance, error) {
	var rows []AccountBalance
	err := db.Model(&models.JournalLine{}).
		Select("journal_lines.account_code, COALESCE(SUM(journal_lines.debit),0) AS debit, COALESCE(SUM(journal_lines.credit),0) AS credit").
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.entry_id").
		Where("journal_entries.date <= ?", asOf).
		Group("journal_lines.account_code").
		Order("journal_lines.account_code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Balance = rows[i].Debit.Sub(rows[i].Credit)
	}
	return rows, nil
}
