package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"simpleswap/pkg/runner"
)

// Balances maps a balance key (vault_a, user_b, ...) to a raw token amount
type Balances map[string]uint64

// Value implements driver.Valuer
func (b Balances) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner
func (b *Balances) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("balances: unsupported column type")
	}

	out := make(Balances)
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*b = out
	return nil
}

// TokenAmount is a raw u64 token amount stored as numeric(20,0), since bigint tops out at MaxInt64
type TokenAmount uint64

// Value implements driver.Valuer
func (a TokenAmount) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(a), 10), nil
}

// Scan implements sql.Scanner
func (a *TokenAmount) Scan(value interface{}) error {
	var text string
	switch v := value.(type) {
	case nil:
		*a = 0
		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	case int64:
		if v < 0 {
			return fmt.Errorf("token amount: negative value %d", v)
		}
		*a = TokenAmount(v)
		return nil
	default:
		return fmt.Errorf("token amount: unsupported column type %T", value)
	}

	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("token amount: %w", err)
	}
	*a = TokenAmount(n)
	return nil
}

// StepRecord is one executed scenario step
type StepRecord struct {
	ID             uint        `gorm:"primarykey" json:"id"`
	RunID          string      `gorm:"column:run_id;size:64;index;not null" json:"run_id"`
	ProgramID      string      `gorm:"column:program_id;size:44;not null" json:"program_id"`
	Step           string      `gorm:"column:step;size:32;not null" json:"step"`
	Signature      string      `gorm:"column:signature;size:88" json:"signature"`
	Simulated      bool        `gorm:"column:simulated;default:false" json:"simulated"`
	Success        bool        `gorm:"column:success;not null" json:"success"`
	Error          string      `gorm:"column:error;type:text" json:"error"`
	Amount         TokenAmount `gorm:"column:amount;type:numeric(20,0);default:0" json:"amount"`
	ExpectedOutput TokenAmount `gorm:"column:expected_output;type:numeric(20,0);default:0" json:"expected_output"`
	Balances       Balances    `gorm:"column:balances;type:jsonb" json:"balances"`
	StartedAt      time.Time   `gorm:"column:started_at;not null" json:"started_at"`
	DurationMs     int64       `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (StepRecord) TableName() string {
	return "swap_steps"
}

// NewStepRecord converts a runner result into its row
func NewStepRecord(runID, programID string, result runner.StepResult) StepRecord {
	rec := StepRecord{
		RunID:          runID,
		ProgramID:      programID,
		Step:           string(result.Step),
		Simulated:      result.Simulated,
		Success:        result.Succeeded(),
		Amount:         TokenAmount(result.Amount),
		ExpectedOutput: TokenAmount(result.ExpectedOutput),
		StartedAt:      result.StartedAt,
		DurationMs:     result.Duration.Milliseconds(),
	}
	if !result.Signature.IsZero() {
		rec.Signature = result.Signature.String()
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	if len(result.Balances) > 0 {
		rec.Balances = Balances(result.Balances)
	}
	return rec
}
