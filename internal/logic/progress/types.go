package progress

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"randomness-oracle-sol/internal/pkg/types"
)

// SlotStatus slot 的处理状态
type SlotStatus int

const (
	SlotUnknown   SlotStatus = 0 // Redis 不存在
	SlotProcessed SlotStatus = 1 // 整批更新成功，检查点已推进
)

// UpdateRecord 一次成功的账户更新
type UpdateRecord struct {
	Account   types.Pubkey
	Slot      uint64 // 触发本次更新的观测高度
	Value     [32]byte
	Signature string
	UpdatedAt time.Time
}

func (r *UpdateRecord) fields() map[string]any {
	return map[string]any{
		"slot":       r.Slot,
		"value":      hex.EncodeToString(r.Value[:]),
		"signature":  r.Signature,
		"updated_at": r.UpdatedAt.Unix(),
	}
}

func parseUpdateRecord(account types.Pubkey, vals map[string]string) (*UpdateRecord, error) {
	slot, err := strconv.ParseUint(vals["slot"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse slot of %s: %w", account, err)
	}
	raw, err := hex.DecodeString(vals["value"])
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("parse value of %s: invalid hex %q", account, vals["value"])
	}
	updatedAt, err := strconv.ParseInt(vals["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at of %s: %w", account, err)
	}

	rec := &UpdateRecord{
		Account:   account,
		Slot:      slot,
		Signature: vals["signature"],
		UpdatedAt: time.Unix(updatedAt, 0),
	}
	copy(rec.Value[:], raw)
	return rec, nil
}
