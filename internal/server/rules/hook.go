package rules

import (
	"fmt"
	"regexp"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
)

// promotedGuard is the accepted shape of a derived guard. The client sends
// 64 hex characters; anything from 32 lowercase alphanumerics up is accepted.
var promotedGuard = regexp.MustCompile(`^` + common.GuardPrefix + `[a-z0-9]{32,}$`)

// IsPromotedShape reports whether guard looks like a derived token.
func IsPromotedShape(guard string) bool {
	return promotedGuard.MatchString(guard)
}

// BeforeCreate validates a record before it is persisted.
func BeforeCreate(r *models.Record) error {
	if r.ModuleUserID == "" {
		return fmt.Errorf("%w: module_user_id is required", common.ErrorValidation)
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("%w: payload is required", common.ErrorValidation)
	}
	if err := checkCipherPair(r.Payload, r.CipherIV); err != nil {
		return err
	}
	if !IsPlaceholder(r.Guard) && !IsPromotedShape(r.Guard) {
		return fmt.Errorf("%w: invalid guard", common.ErrorValidation)
	}
	return nil
}

// BeforeUpdate enforces the guard state machine on an update of stored.
//
// A patch without a guard passes untouched. With a guard: a promoted stored
// guard only accepts the identical value; a placeholder only accepts a value
// of the promoted shape.
func BeforeUpdate(stored *models.Record, patch models.RecordPatch) error {
	if err := checkCipherPair(patch.Payload, patch.CipherIV); err != nil {
		return err
	}
	if !patch.HasGuard() {
		return nil
	}

	next := *patch.Guard
	if !IsPlaceholder(stored.Guard) {
		if next == stored.Guard {
			return nil
		}
		return fmt.Errorf("%w: guard change not allowed", common.ErrorForbidden)
	}

	if !IsPromotedShape(next) {
		return fmt.Errorf("%w: invalid promotion", common.ErrorForbidden)
	}
	return nil
}

// checkCipherPair enforces that payload and nonce are written together and
// that neither is empty when written. Absent (nil) on both sides passes.
func checkCipherPair(payload, iv []byte) error {
	if payload == nil && iv == nil {
		return nil
	}
	if len(payload) == 0 || len(iv) == 0 {
		return fmt.Errorf("%w: payload and cipher_iv must be set together", common.ErrorValidation)
	}
	return nil
}
