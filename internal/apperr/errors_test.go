package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("create payer: %w", Validation("denomination_mismatch", "computed %d, declared %d", 1100, 1000))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, &Error{Kind: KindValidation, Code: "denomination_mismatch"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindValidation, Code: "missing_reason"}))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "denomination_mismatch", CodeOf(err))
	assert.Contains(t, err.Error(), "computed 1100, declared 1000")
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("connection refused")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestInternalUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause, "insert payer")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
}
