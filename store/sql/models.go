package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type tokenRecordRow struct {
	bun.BaseModel `bun:"table:ledger_tokens,alias:lt"`

	ID            string     `bun:"id,pk"`
	TokenKey      string     `bun:"token_key,notnull"`
	UserID        string     `bun:"user_id,notnull"`
	Platform      string     `bun:"platform,notnull"`
	Payload       []byte     `bun:"payload,notnull"`
	PayloadFormat string     `bun:"payload_format,notnull"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
